package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/relay-analyzer/internal/waveform"
)

func testResult() waveform.Result {
	return waveform.Result{
		Type:                waveform.Rising,
		TransitionTime:      0.0008,
		TransitionTimeValid: true,
		BounceCount:         2,
		BounceDuration:      0.0001,
		Regions: []waveform.BounceRegion{
			{Start: 0.0011, End: 0.0012, Crossings: 2},
		},
		StartVoltage:  0,
		EndVoltage:    5,
		LowThreshold:  0.5,
		HighThreshold: 4.5,
	}
}

func TestFormatAnalysisPayload(t *testing.T) {
	event := AnalysisEvent{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Source:    "relay_rising.csv",
		Result:    testResult(),
	}

	payload, err := FormatAnalysisPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed AnalysisPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Analysis.Source != "relay_rising.csv" {
		t.Errorf("unexpected source: %s", parsed.Analysis.Source)
	}
	if parsed.Analysis.Timestamp != "2026-02-02T22:18:12Z" {
		t.Errorf("unexpected timestamp: %s", parsed.Analysis.Timestamp)
	}
	if parsed.Analysis.TransitionType != "RISING" {
		t.Errorf("unexpected transition type: %s", parsed.Analysis.TransitionType)
	}
	if parsed.Analysis.TransitionTimeMs == nil || *parsed.Analysis.TransitionTimeMs != 0.8 {
		t.Errorf("unexpected transition time: %v", parsed.Analysis.TransitionTimeMs)
	}
	if parsed.Analysis.BounceCount != 2 {
		t.Errorf("unexpected bounce count: %d", parsed.Analysis.BounceCount)
	}
}

func TestFormatAnalysisPayloadPartialResult(t *testing.T) {
	res := testResult()
	res.TransitionTimeValid = false
	res.Regions = nil
	res.BounceCount = 0

	payload, err := FormatAnalysisPayload(AnalysisEvent{
		Timestamp: time.Now(),
		Source:    "relay_truncated.csv",
		Result:    res,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded map[string]map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	inner := decoded["analysis"]
	if _, present := inner["transition_time_ms"]; present {
		t.Error("transition_time_ms should be omitted for partial results")
	}
}

func TestFormatAnalysisPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	event := AnalysisEvent{
		Timestamp: time.Date(2026, 2, 2, 23, 18, 12, 0, loc),
		Source:    "x.csv",
		Result:    testResult(),
	}

	payload, err := FormatAnalysisPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed AnalysisPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Analysis.Timestamp != "2026-02-02T22:18:12Z" {
		t.Errorf("timestamp should be UTC: %s", parsed.Analysis.Timestamp)
	}
}

func TestFormatSystemPayload(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed SystemPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.System.Event != "SHUTDOWN" {
		t.Errorf("unexpected event: %s", parsed.System.Event)
	}
	if parsed.System.Reason != "SIGTERM" {
		t.Errorf("unexpected reason: %s", parsed.System.Reason)
	}
	if parsed.System.Timestamp != "2026-02-02T22:18:12Z" {
		t.Errorf("unexpected timestamp: %s", parsed.System.Timestamp)
	}
}

func TestFormatSystemPayloadOmitsEmptyReason(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "HEARTBEAT",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded map[string]map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, present := decoded["system"]["reason"]; present {
		t.Error("reason should be omitted when empty")
	}
}

func TestFormatSystemPayloadRawPassthrough(t *testing.T) {
	raw := []byte(`{"status":{"event":"STARTUP"}}`)
	payload, err := FormatSystemPayload(SystemEvent{
		Timestamp:  time.Now(),
		Event:      "STARTUP",
		RawPayload: raw,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("raw payload should pass through unchanged: %s", payload)
	}
}

func TestTopics(t *testing.T) {
	if Topic != "bench/relay/analysis/events" {
		t.Errorf("unexpected Topic: %s", Topic)
	}
	if TopicSystem != "bench/relay/analysis/system" {
		t.Errorf("unexpected TopicSystem: %s", TopicSystem)
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()

	event := AnalysisEvent{
		Timestamp: time.Now(),
		Source:    "relay_rising.csv",
		Result:    testResult(),
	}
	if err := f.Publish(event); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if len(f.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(f.Events))
	}
	if f.Events[0].Source != "relay_rising.csv" {
		t.Errorf("unexpected source: %s", f.Events[0].Source)
	}
	if len(f.Payloads) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(f.Payloads))
	}

	var parsed AnalysisPayload
	if err := json.Unmarshal(f.Payloads[0], &parsed); err != nil {
		t.Fatalf("recorded payload is invalid JSON: %v", err)
	}
}

func TestFakePublisherError(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("broker down")

	err := f.Publish(AnalysisEvent{Result: testResult()})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(f.Events) != 0 {
		t.Errorf("failed publish should not record events, got %d", len(f.Events))
	}
}

func TestFakePublisherPublishSystem(t *testing.T) {
	f := NewFakePublisher()

	event := SystemEvent{
		Timestamp: time.Now(),
		Event:     "STARTUP",
		Retained:  true,
	}
	if err := f.PublishSystem(event); err != nil {
		t.Fatalf("PublishSystem: %v", err)
	}

	if len(f.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(f.SystemEvents))
	}
	if !f.SystemEvents[0].Retained {
		t.Error("retained flag not preserved")
	}
	if len(f.SystemPayloads) != 1 {
		t.Fatalf("expected 1 system payload, got %d", len(f.SystemPayloads))
	}
}

func TestFakePublisherPreservesEventOrder(t *testing.T) {
	f := NewFakePublisher()
	sources := []string{"a.csv", "b.csv", "c.csv"}
	for _, src := range sources {
		if err := f.Publish(AnalysisEvent{Source: src, Result: testResult()}); err != nil {
			t.Fatalf("Publish %s: %v", src, err)
		}
	}

	for i, src := range sources {
		if f.Events[i].Source != src {
			t.Errorf("event %d: got %s, want %s", i, f.Events[i].Source, src)
		}
	}
}

func TestFakePublisherReset(t *testing.T) {
	f := NewFakePublisher()
	f.Connected = true
	f.Publish(AnalysisEvent{Result: testResult()})
	f.PublishSystem(SystemEvent{Event: "STARTUP"})
	f.Close()

	f.Reset()

	if len(f.Events) != 0 || len(f.Payloads) != 0 {
		t.Error("Reset did not clear events")
	}
	if len(f.SystemEvents) != 0 || len(f.SystemPayloads) != 0 {
		t.Error("Reset did not clear system events")
	}
	if f.Closed || f.Connected {
		t.Error("Reset did not clear flags")
	}
}
