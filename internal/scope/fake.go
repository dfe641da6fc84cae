package scope

import (
	"context"
	"errors"

	"github.com/sweeney/relay-analyzer/internal/waveform"
)

// FakeSource is a test double that returns scripted captures.
type FakeSource struct {
	// Captures contains scripted captures to return.
	// Each call to Acquire() consumes the next capture.
	Captures []waveform.Capture

	// index tracks current position in Captures
	index int

	// Armed counts calls to Arm.
	Armed int

	// Closed tracks if Close was called
	Closed bool

	// ArmError, if set, will be returned by Arm()
	ArmError error

	// AcquireError, if set, will be returned by Acquire()
	AcquireError error
}

// NewFakeSource creates a FakeSource with the given captures.
func NewFakeSource(captures ...waveform.Capture) *FakeSource {
	return &FakeSource{Captures: captures}
}

// Arm records the arming call.
func (f *FakeSource) Arm(ctx context.Context) error {
	if f.ArmError != nil {
		return f.ArmError
	}
	f.Armed++
	return nil
}

// Acquire returns the next scripted capture.
// If captures are exhausted, returns the last capture repeatedly.
func (f *FakeSource) Acquire(ctx context.Context) (waveform.Capture, error) {
	if f.AcquireError != nil {
		return nil, f.AcquireError
	}

	if len(f.Captures) == 0 {
		return nil, errors.New("no captures configured")
	}

	c := f.Captures[f.index]
	if f.index < len(f.Captures)-1 {
		f.index++
	}
	return c, nil
}

// Close marks the source as closed.
func (f *FakeSource) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the source to the beginning of its captures.
func (f *FakeSource) Reset() {
	f.index = 0
	f.Armed = 0
	f.Closed = false
}
