// Package adc reads raw soil-moisture samples from an analog-to-digital converter.
// The real implementation reads a Linux IIO channel from sysfs.
// The fake implementation allows testing without hardware.
package adc

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DefaultPath is the first channel of the first IIO device (e.g. an ADS1115
// or MCP3008 bound to the kernel IIO driver).
const DefaultPath = "/sys/bus/iio/devices/iio:device0/in_voltage0_raw"

// Sampler produces raw ADC samples.
type Sampler interface {
	// Sample returns one raw reading in the converter's native range.
	Sample() (int, error)

	// Close releases any resources.
	Close() error
}

// RealSampler reads raw values from an IIO sysfs attribute.
type RealSampler struct {
	path string
	max  int
}

// NewRealSampler checks that the channel is readable and returns a sampler.
// Readings above max are reported as errors.
func NewRealSampler(path string, max int) (*RealSampler, error) {
	s := &RealSampler{path: path, max: max}
	if _, err := s.Sample(); err != nil {
		return nil, fmt.Errorf("open adc: %w", err)
	}
	return s, nil
}

// Sample reads the channel once.
func (s *RealSampler) Sample() (int, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", s.path, err)
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", s.path, err)
	}
	if v < 0 || (s.max > 0 && v > s.max) {
		return 0, fmt.Errorf("sample %d out of range [0,%d]", v, s.max)
	}
	return v, nil
}

// Close is a no-op; the attribute is reopened on every read.
func (s *RealSampler) Close() error {
	return nil
}

// FakeSampler is a test double that returns scripted samples.
type FakeSampler struct {
	// Samples contains scripted raw values. Each call to Sample() consumes the next one.
	Samples []int

	// index tracks current position in Samples
	index int

	// Errors maps sample indexes to errors returned instead of the value.
	Errors map[int]error

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeSampler creates a FakeSampler with the given samples.
func NewFakeSampler(samples []int) *FakeSampler {
	return &FakeSampler{Samples: samples}
}

// Sample returns the next scripted value.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeSampler) Sample() (int, error) {
	if len(f.Samples) == 0 {
		return 0, errors.New("no samples configured")
	}
	i := f.index
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	if err, ok := f.Errors[i]; ok {
		return 0, err
	}
	return f.Samples[i], nil
}

// Close marks the sampler as closed.
func (f *FakeSampler) Close() error {
	f.Closed = true
	return nil
}
