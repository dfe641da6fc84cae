package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/relay-analyzer/internal/capture"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string              `json:"event,omitempty"`
	Reason        string              `json:"reason,omitempty"`
	UptimeSeconds int64               `json:"uptime_seconds"`
	StartTime     string              `json:"start_time"`
	Timestamp     string              `json:"timestamp"`
	MQTT          MQTTStatus          `json:"mqtt"`
	Scope         ScopeStatus         `json:"scope"`
	Counts        CountsJSON          `json:"analysis_counts"`
	LastRising    *capture.ResultJSON `json:"last_rising,omitempty"`
	LastFalling   *capture.ResultJSON `json:"last_falling,omitempty"`
	Config        ConfigJSON          `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ScopeStatus reports oscilloscope connection state.
type ScopeStatus struct {
	Ready bool   `json:"ready"`
	Addr  string `json:"addr,omitempty"`
}

// CountsJSON is the JSON representation of analysis counts.
type CountsJSON struct {
	Analyzed int `json:"analyzed"`
	Rising   int `json:"rising"`
	Falling  int `json:"falling"`
	Bounced  int `json:"bounced"`
	Partial  int `json:"partial"`
	Invalid  int `json:"invalid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	CycleMs     int64  `json:"cycle_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
	ScopeAddr   string `json:"scope_addr,omitempty"`
	RelayMode   string `json:"relay_mode,omitempty"`
	WatchDir    string `json:"watch_dir,omitempty"`
	OutputDir   string `json:"output_dir,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Scope:         ScopeStatus{Ready: snap.ScopeReady, Addr: snap.Config.ScopeAddr},
		Counts: CountsJSON{
			Analyzed: snap.Counts.Analyzed,
			Rising:   snap.Counts.Rising,
			Falling:  snap.Counts.Falling,
			Bounced:  snap.Counts.Bounced,
			Partial:  snap.Counts.Partial,
			Invalid:  snap.Counts.Invalid,
		},
		Config: ConfigJSON{
			CycleMs:     snap.Config.CycleMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			ScopeAddr:   snap.Config.ScopeAddr,
			RelayMode:   snap.Config.RelayMode,
			WatchDir:    snap.Config.WatchDir,
			OutputDir:   snap.Config.OutputDir,
		},
	}

	if snap.LastRising != nil {
		j := capture.BuildResultJSON(snap.LastRising.Source, snap.LastRising.At, snap.LastRising.Result)
		inner.LastRising = &j
	}
	if snap.LastFalling != nil {
		j := capture.BuildResultJSON(snap.LastFalling.Source, snap.LastFalling.At, snap.LastFalling.Result)
		inner.LastFalling = &j
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
