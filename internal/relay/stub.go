//go:build !linux

package relay

import "errors"

// LineSwitcher is not available on non-Linux platforms.
type LineSwitcher struct{}

// NewLineSwitcher returns an error on non-Linux platforms.
func NewLineSwitcher(chipName string, pin int) (*LineSwitcher, error) {
	return nil, errors.New("relay: gpio not supported on this platform (requires Linux)")
}

// Set is not implemented on non-Linux platforms.
func (s *LineSwitcher) Set(on bool) error {
	return errors.New("relay: gpio not supported")
}

// Toggle is not implemented on non-Linux platforms.
func (s *LineSwitcher) Toggle() (bool, error) {
	return false, errors.New("relay: gpio not supported")
}

// State is not implemented on non-Linux platforms.
func (s *LineSwitcher) State() (bool, error) {
	return false, errors.New("relay: gpio not supported")
}

// Close is not implemented on non-Linux platforms.
func (s *LineSwitcher) Close() error {
	return nil
}
