// Package relay switches the relay under test. Two hardware paths exist: a
// directly wired GPIO output line, and a Tasmota smart switch driven over its
// HTTP command interface. The fake implementation allows testing without
// hardware.
package relay

// Switcher controls the relay under test.
type Switcher interface {
	// Set drives the relay to the given state.
	Set(on bool) error

	// Toggle flips the relay and returns the new state.
	Toggle() (bool, error)

	// State returns the current relay state.
	State() (bool, error)

	// Close releases relay resources.
	Close() error
}

// Default GPIO wiring (BCM numbering).
const (
	DefaultChip = "gpiochip0"
	DefaultPin  = 17
)
