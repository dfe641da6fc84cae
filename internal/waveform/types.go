// Package waveform contains pure analysis logic for relay transition captures.
// This package has NO external dependencies (no scope I/O, MQTT, OS, or clocks).
// A capture is always materialized in full before analysis.
package waveform

import "fmt"

// Sample is a single oscilloscope measurement.
type Sample struct {
	T float64 // time in seconds
	V float64 // voltage in volts
}

// Capture is a time-ordered series of samples spanning one relay transition.
// Time must be strictly increasing.
type Capture []Sample

// TransitionType classifies the direction of a transition.
type TransitionType string

const (
	Rising  TransitionType = "RISING"
	Falling TransitionType = "FALLING"
)

// BounceRegion describes one contiguous span of rapid threshold re-crossings
// after the main transition settled.
type BounceRegion struct {
	// Start is the time of the first reversal crossing in the region.
	Start float64
	// End is the time of the last crossing in the region.
	End float64
	// Crossings is the number of reversal crossings in the region.
	Crossings int
}

// Duration returns the span of the region in seconds.
func (r BounceRegion) Duration() float64 {
	return r.End - r.Start
}

// Result is the immutable outcome of analyzing one capture.
// It is a pure function of the capture and the config.
type Result struct {
	Type TransitionType

	// TransitionTime is the 10%-90% transition time in seconds.
	// Only meaningful when TransitionTimeValid is true; a truncated capture
	// that never crosses both thresholds reports false here.
	TransitionTime      float64
	TransitionTimeValid bool

	// BounceCount is the total number of reversal crossings across all regions.
	BounceCount int
	// BounceDuration is the summed duration of all bounce regions in seconds.
	BounceDuration float64
	// Regions lists bounce regions in time order.
	Regions []BounceRegion

	// StartVoltage and EndVoltage are settle-window means, not single samples.
	StartVoltage float64
	EndVoltage   float64

	// LowThreshold and HighThreshold are the crossing thresholds in volts,
	// ordered numerically (low < high regardless of direction).
	LowThreshold  float64
	HighThreshold float64
}

// Config holds analyzer tuning. The zero value of any field means "use the
// package default" — the defaults suit mechanical relays but carry no
// invariant, so every field is independently overridable.
type Config struct {
	// SettleFraction is the fraction of samples at each end of the capture
	// averaged to estimate steady-state voltage.
	SettleFraction float64
	// LowFraction and HighFraction position the timing thresholds within the
	// full swing (0.10 and 0.90 give the usual 10%-90% transition time).
	LowFraction  float64
	HighFraction float64
	// BounceWindow is the maximum gap in seconds between crossings still
	// counted as the same bounce region.
	BounceWindow float64
	// MinSamples is the minimum capture length accepted.
	MinSamples int
	// NoiseFloor is the minimum voltage swing in volts distinguishable from
	// noise; captures below it are rejected.
	NoiseFloor float64
}

// Package defaults, chosen empirically for mechanical relays.
const (
	DefaultSettleFraction = 0.05
	DefaultLowFraction    = 0.10
	DefaultHighFraction   = 0.90
	DefaultBounceWindow   = 1e-3
	DefaultMinSamples     = 10
	DefaultNoiseFloor     = 0.5
)

// DefaultConfig returns a Config with every field set to its default.
func DefaultConfig() Config {
	return Config{
		SettleFraction: DefaultSettleFraction,
		LowFraction:    DefaultLowFraction,
		HighFraction:   DefaultHighFraction,
		BounceWindow:   DefaultBounceWindow,
		MinSamples:     DefaultMinSamples,
		NoiseFloor:     DefaultNoiseFloor,
	}
}

// withDefaults fills zero-valued fields with package defaults.
func (c Config) withDefaults() Config {
	if c.SettleFraction == 0 {
		c.SettleFraction = DefaultSettleFraction
	}
	if c.LowFraction == 0 {
		c.LowFraction = DefaultLowFraction
	}
	if c.HighFraction == 0 {
		c.HighFraction = DefaultHighFraction
	}
	if c.BounceWindow == 0 {
		c.BounceWindow = DefaultBounceWindow
	}
	if c.MinSamples == 0 {
		c.MinSamples = DefaultMinSamples
	}
	if c.NoiseFloor == 0 {
		c.NoiseFloor = DefaultNoiseFloor
	}
	return c
}

// Validate reports whether the config is internally consistent.
func (c Config) Validate() error {
	c = c.withDefaults()
	if c.SettleFraction <= 0 || c.SettleFraction > 0.5 {
		return fmt.Errorf("settle fraction %v out of range (0, 0.5]", c.SettleFraction)
	}
	if c.LowFraction <= 0 || c.LowFraction >= 1 {
		return fmt.Errorf("low fraction %v out of range (0, 1)", c.LowFraction)
	}
	if c.HighFraction <= 0 || c.HighFraction >= 1 {
		return fmt.Errorf("high fraction %v out of range (0, 1)", c.HighFraction)
	}
	if c.LowFraction >= c.HighFraction {
		return fmt.Errorf("low fraction %v must be below high fraction %v", c.LowFraction, c.HighFraction)
	}
	if c.BounceWindow < 0 {
		return fmt.Errorf("bounce window %v must not be negative", c.BounceWindow)
	}
	if c.MinSamples < 2 {
		return fmt.Errorf("min samples %d must be at least 2", c.MinSamples)
	}
	if c.NoiseFloor < 0 {
		return fmt.Errorf("noise floor %v must not be negative", c.NoiseFloor)
	}
	return nil
}

// InvalidCaptureError reports a capture the analyzer cannot work with:
// too few samples, time not strictly increasing, or a voltage swing below
// the noise floor. It is fatal to the analysis call.
type InvalidCaptureError struct {
	Reason string
}

func (e *InvalidCaptureError) Error() string {
	return "invalid capture: " + e.Reason
}
