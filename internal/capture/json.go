package capture

import (
	"encoding/json"
	"time"

	"github.com/sweeney/relay-analyzer/internal/waveform"
)

// ResultJSON is the JSON representation of one analysis, published over MQTT
// and served by the status endpoint. Field names are stable schema.
type ResultJSON struct {
	Source              string       `json:"source,omitempty"`
	Timestamp           string       `json:"timestamp"`
	TransitionType      string       `json:"transition_type"`
	TransitionTimeMs    *float64     `json:"transition_time_ms,omitempty"`
	TransitionTimeValid bool         `json:"transition_time_valid"`
	BounceCount         int          `json:"bounce_count"`
	BounceDurationMs    float64      `json:"bounce_duration_ms"`
	BounceRegions       []RegionJSON `json:"bounce_regions,omitempty"`
	StartVoltage        float64      `json:"start_voltage"`
	EndVoltage          float64      `json:"end_voltage"`
	LowThreshold        float64      `json:"low_threshold"`
	HighThreshold       float64      `json:"high_threshold"`
}

// RegionJSON is the JSON representation of one bounce region.
type RegionJSON struct {
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
	Crossings    int     `json:"crossings"`
	DurationMs   float64 `json:"duration_ms"`
}

// BuildResultJSON converts an analysis result to its wire representation.
// TransitionTimeMs is omitted entirely when the time was not computed, so a
// missing measurement can never read as zero.
func BuildResultJSON(source string, analyzedAt time.Time, res waveform.Result) ResultJSON {
	out := ResultJSON{
		Source:              source,
		Timestamp:           analyzedAt.UTC().Format(time.RFC3339),
		TransitionType:      string(res.Type),
		TransitionTimeValid: res.TransitionTimeValid,
		BounceCount:         res.BounceCount,
		BounceDurationMs:    res.BounceDuration * 1000,
		StartVoltage:        res.StartVoltage,
		EndVoltage:          res.EndVoltage,
		LowThreshold:        res.LowThreshold,
		HighThreshold:       res.HighThreshold,
	}
	if res.TransitionTimeValid {
		ms := res.TransitionTime * 1000
		out.TransitionTimeMs = &ms
	}
	for _, r := range res.Regions {
		out.BounceRegions = append(out.BounceRegions, RegionJSON{
			StartSeconds: r.Start,
			EndSeconds:   r.End,
			Crossings:    r.Crossings,
			DurationMs:   r.Duration() * 1000,
		})
	}
	return out
}

// FormatResultJSON marshals the wire representation of one analysis.
func FormatResultJSON(source string, analyzedAt time.Time, res waveform.Result) ([]byte, error) {
	return json.Marshal(BuildResultJSON(source, analyzedAt, res))
}
