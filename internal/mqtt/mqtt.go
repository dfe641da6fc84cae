// Package mqtt publishes analysis results with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/relay-analyzer/internal/capture"
	"github.com/sweeney/relay-analyzer/internal/waveform"
)

// Topic is the MQTT topic for relay analysis events.
const Topic = "bench/relay/analysis/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "bench/relay/analysis/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends an analysis event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event AnalysisEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// AnalysisEvent represents one completed waveform analysis to be published.
type AnalysisEvent struct {
	Timestamp time.Time
	// Source names the capture: a file name in ingest mode, a cycle label in
	// bench mode.
	Source string
	Result waveform.Result
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// AnalysisPayload is the MQTT message payload for analysis events.
type AnalysisPayload struct {
	Analysis capture.ResultJSON `json:"analysis"`
}

// FormatAnalysisPayload creates the JSON payload for an analysis event.
func FormatAnalysisPayload(event AnalysisEvent) ([]byte, error) {
	payload := AnalysisPayload{
		Analysis: capture.BuildResultJSON(event.Source, event.Timestamp, event.Result),
	}
	return json.Marshal(payload)
}

// SystemPayload is the MQTT message payload for system events.
// Used for simple events that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
