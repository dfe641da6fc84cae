//go:build linux

package relay

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// LineSwitcher drives the relay coil through a GPIO output line using the
// Linux GPIO character device.
type LineSwitcher struct {
	chip  *gpiocdev.Chip
	line  *gpiocdev.Line
	state bool
}

// NewLineSwitcher requests the given pin as an output, initially off.
func NewLineSwitcher(chipName string, pin int) (*LineSwitcher, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request relay pin %d: %w", pin, err)
	}

	return &LineSwitcher{chip: chip, line: line}, nil
}

// Set drives the relay pin.
func (s *LineSwitcher) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := s.line.SetValue(v); err != nil {
		return fmt.Errorf("set relay pin: %w", err)
	}
	s.state = on
	return nil
}

// Toggle flips the relay and returns the new state.
func (s *LineSwitcher) Toggle() (bool, error) {
	if err := s.Set(!s.state); err != nil {
		return false, err
	}
	return s.state, nil
}

// State returns the last driven state. The line is requested as an output,
// so the kernel value mirrors what Set wrote.
func (s *LineSwitcher) State() (bool, error) {
	return s.state, nil
}

// Close releases GPIO resources. The pin is reconfigured to input first so
// the relay drops out cleanly and the pin matches boot defaults.
func (s *LineSwitcher) Close() error {
	var errs []error

	if s.line != nil {
		if err := s.line.Reconfigure(gpiocdev.AsInput); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure relay pin: %w", err))
		}
		if err := s.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close relay pin: %w", err))
		}
	}
	if s.chip != nil {
		if err := s.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
