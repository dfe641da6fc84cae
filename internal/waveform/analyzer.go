package waveform

import (
	"fmt"
	"math"
)

// Analyze examines one relay transition capture and returns its
// characteristics: direction, 10%-90% transition time, and contact bounce.
//
// Analyze is deterministic and has no side effects. A capture that never
// crosses both timing thresholds is not an error: the result comes back with
// TransitionTimeValid=false and empty bounce fields so the caller can decide
// what to do with the partial measurement.
func Analyze(capture Capture, cfg Config) (Result, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return Result{}, fmt.Errorf("analyze: %w", err)
	}

	if len(capture) < cfg.MinSamples {
		return Result{}, &InvalidCaptureError{
			Reason: fmt.Sprintf("%d samples, need at least %d", len(capture), cfg.MinSamples),
		}
	}
	for i := 1; i < len(capture); i++ {
		if capture[i].T <= capture[i-1].T {
			return Result{}, &InvalidCaptureError{
				Reason: fmt.Sprintf("time not strictly increasing at sample %d (%v after %v)",
					i, capture[i].T, capture[i-1].T),
			}
		}
	}

	n := settleCount(len(capture), cfg.SettleFraction)
	startV := meanVoltage(capture[:n])
	endV := meanVoltage(capture[len(capture)-n:])

	swing := endV - startV
	if math.Abs(swing) < cfg.NoiseFloor {
		return Result{}, &InvalidCaptureError{
			Reason: fmt.Sprintf("voltage swing %.4fV below noise floor %.4fV", math.Abs(swing), cfg.NoiseFloor),
		}
	}

	res := Result{
		Type:         Rising,
		StartVoltage: startV,
		EndVoltage:   endV,
	}
	if swing < 0 {
		res.Type = Falling
	}

	// Thresholds sit at LowFraction/HighFraction of the swing measured from
	// the start voltage. The one nearer the start voltage is crossed first.
	near := startV + cfg.LowFraction*swing
	far := startV + cfg.HighFraction*swing
	res.LowThreshold = math.Min(near, far)
	res.HighThreshold = math.Max(near, far)

	// crossed reports whether v is past the threshold in the transition
	// direction.
	crossed := func(v, threshold float64) bool {
		if res.Type == Rising {
			return v > threshold
		}
		return v < threshold
	}

	// The crossing search stops before the end settle window: that stretch is
	// assumed steady, so a crossing found only there means the capture
	// truncated mid-transition and the timing is not trustworthy.
	searchEnd := len(capture) - n

	nearIdx := -1
	for i := 0; i < searchEnd; i++ {
		if crossed(capture[i].V, near) {
			nearIdx = i
			break
		}
	}
	if nearIdx < 0 {
		// Truncated capture: the signal never left the starting level far
		// enough to time. Partial result, not an error.
		return res, nil
	}

	farIdx := -1
	for i := nearIdx; i < searchEnd; i++ {
		if crossed(capture[i].V, far) {
			farIdx = i
			break
		}
	}
	if farIdx < 0 {
		return res, nil
	}

	res.TransitionTime = capture[farIdx].T - capture[nearIdx].T
	res.TransitionTimeValid = true

	res.Regions = detectBounce(capture, farIdx, far, res.Type, cfg.BounceWindow)
	for _, r := range res.Regions {
		res.BounceCount += r.Crossings
		res.BounceDuration += r.Duration()
	}

	return res, nil
}

// detectBounce scans the capture after the main transition completed at
// farIdx, grouping reversal crossings of the far threshold into regions.
// Crossings closer together than window share a region; a larger gap closes
// the region.
func detectBounce(capture Capture, farIdx int, far float64, typ TransitionType, window float64) []BounceRegion {
	// settled reports whether v is at or past the settled level.
	settled := func(v float64) bool {
		if typ == Rising {
			return v >= far
		}
		return v <= far
	}

	var regions []BounceRegion
	var cur *BounceRegion
	lastCross := 0.0

	for i := farIdx + 1; i < len(capture); i++ {
		prev := settled(capture[i-1].V)
		now := settled(capture[i].V)
		if prev == now {
			continue
		}
		t := capture[i].T

		if prev && !now {
			// Reversal: the signal dropped back across the settled level.
			if cur != nil && t-lastCross <= window {
				cur.Crossings++
				cur.End = t
			} else {
				if cur != nil {
					regions = append(regions, *cur)
				}
				cur = &BounceRegion{Start: t, End: t, Crossings: 1}
			}
		} else if cur != nil {
			// Recovery back to the settled level extends the open region.
			cur.End = t
		}
		lastCross = t
	}

	if cur != nil {
		regions = append(regions, *cur)
	}
	return regions
}

// settleCount converts the settle fraction into a sample count, clamped to
// [1, len/2] so short captures still get distinct start and end windows.
func settleCount(length int, fraction float64) int {
	n := int(float64(length) * fraction)
	if n < 1 {
		n = 1
	}
	if n > length/2 {
		n = length / 2
	}
	return n
}

func meanVoltage(samples []Sample) float64 {
	sum := 0.0
	for _, s := range samples {
		sum += s.V
	}
	return sum / float64(len(samples))
}
