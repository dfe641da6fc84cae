package relay

// FakeSwitcher is a test double that records switching operations.
type FakeSwitcher struct {
	// On is the current relay state.
	On bool

	// Sets records every state passed to Set or produced by Toggle.
	Sets []bool

	// SetError, if set, will be returned by Set and Toggle.
	SetError error

	// StateError, if set, will be returned by State.
	StateError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeSwitcher creates a FakeSwitcher starting in the off state.
func NewFakeSwitcher() *FakeSwitcher {
	return &FakeSwitcher{}
}

// Set records the requested state.
func (f *FakeSwitcher) Set(on bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.On = on
	f.Sets = append(f.Sets, on)
	return nil
}

// Toggle flips the recorded state.
func (f *FakeSwitcher) Toggle() (bool, error) {
	if err := f.Set(!f.On); err != nil {
		return false, err
	}
	return f.On, nil
}

// State returns the recorded state.
func (f *FakeSwitcher) State() (bool, error) {
	if f.StateError != nil {
		return false, f.StateError
	}
	return f.On, nil
}

// Close marks the switcher as closed.
func (f *FakeSwitcher) Close() error {
	f.Closed = true
	return nil
}

// Reset clears recorded operations.
func (f *FakeSwitcher) Reset() {
	f.On = false
	f.Sets = nil
	f.SetError = nil
	f.StateError = nil
	f.Closed = false
}
