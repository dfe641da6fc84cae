// Package status provides a thread-safe status tracker for the bench daemon.
// It is read by HTTP handlers and embedded in MQTT system event payloads.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/relay-analyzer/internal/waveform"
)

// Counts tracks analysis outcomes since startup.
type Counts struct {
	Analyzed int
	Rising   int
	Falling  int
	Bounced  int
	Partial  int
	Invalid  int
}

// LastAnalysis is the most recent result for one transition direction.
type LastAnalysis struct {
	Source string
	At     time.Time
	Result waveform.Result
}

// Config contains daemon configuration for display.
type Config struct {
	CycleMs     int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
	ScopeAddr   string
	RelayMode   string
	WatchDir    string
	OutputDir   string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type — safe to use after the lock is released.
type Snapshot struct {
	Counts        Counts
	LastRising    *LastAnalysis
	LastFalling   *LastAnalysis
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	ScopeReady    bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// RecordAnalysis updates counters and the per-direction last result.
// Called after every completed analysis.
func (t *Tracker) RecordAnalysis(source string, at time.Time, res waveform.Result) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.snap.Counts.Analyzed++
	last := &LastAnalysis{Source: source, At: at, Result: res}
	switch res.Type {
	case waveform.Rising:
		t.snap.Counts.Rising++
		t.snap.LastRising = last
	case waveform.Falling:
		t.snap.Counts.Falling++
		t.snap.LastFalling = last
	}
	if res.BounceCount > 0 {
		t.snap.Counts.Bounced++
	}
	if !res.TransitionTimeValid {
		t.snap.Counts.Partial++
	}
}

// RecordInvalid counts a capture the analyzer rejected.
func (t *Tracker) RecordInvalid() {
	t.mu.Lock()
	t.snap.Counts.Invalid++
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetScopeReady sets whether the oscilloscope connection is usable.
func (t *Tracker) SetScopeReady(ready bool) {
	t.mu.Lock()
	t.snap.ScopeReady = ready
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
