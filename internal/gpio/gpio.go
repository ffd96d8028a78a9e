// Package gpio provides the manual button input and the pump relay output
// with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Button reads the manual override button.
type Button interface {
	// Pressed returns the raw logical level of the button (true = pressed).
	// The line is wired with a pull-up, so the physical low level reads as pressed.
	// No debouncing is applied here.
	Pressed() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Relay drives the pump relay.
type Relay interface {
	// Set energizes (true) or releases (false) the relay. Polarity is fixed
	// when the relay is opened.
	Set(on bool) error

	// Close releases the relay and GPIO resources.
	Close() error
}

// Default pin definitions (BCM numbering)
const (
	DefaultPinButton = 4
	DefaultPinRelay  = 5
)

// DefaultChip is the GPIO character device on a Raspberry Pi.
const DefaultChip = "gpiochip0"
