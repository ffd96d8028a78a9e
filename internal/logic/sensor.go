package logic

// Calibration maps raw ADC samples onto a 0-100 humidity scale.
// RawLow maps to 0% and RawHigh to 100%. RawLow may be greater than RawHigh
// for probes that read high when dry.
type Calibration struct {
	RawLow  int
	RawHigh int
}

// Percent converts a raw sample into a humidity percentage clamped to [0,100].
func (c Calibration) Percent(raw int) int {
	span := int64(c.RawHigh) - int64(c.RawLow)
	if span == 0 {
		// Degenerate calibration: treat the single point as a step.
		if raw >= c.RawHigh {
			return 100
		}
		return 0
	}
	p := (int64(raw) - int64(c.RawLow)) * 100 / span
	return clampPercent64(p)
}

func clampPercent(v int) int {
	return clampPercent64(int64(v))
}

func clampPercent64(v int64) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(v)
}
