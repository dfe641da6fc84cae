package relay

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Command retry policy. Tasmota devices occasionally drop a command while
// busy with WiFi housekeeping.
const (
	commandRetries    = 3
	commandRetryDelay = 500 * time.Millisecond
)

// TasmotaSwitcher controls a Tasmota smart switch over its HTTP command
// endpoint (`/cm?cmnd=...`).
type TasmotaSwitcher struct {
	endpoint string
	relay    int
	client   *http.Client

	// sleep is replaceable in tests to avoid real retry delays.
	sleep func(time.Duration)
}

// NewTasmotaSwitcher creates a switcher for the device at endpoint
// (e.g. "http://192.168.1.50"). relayNumber selects the output on
// multi-channel devices (1 for single-relay plugs).
func NewTasmotaSwitcher(endpoint string, relayNumber int, timeout time.Duration) (*TasmotaSwitcher, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("relay: bad tasmota endpoint %q", endpoint)
	}
	if relayNumber < 1 {
		return nil, fmt.Errorf("relay: relay number %d must be at least 1", relayNumber)
	}
	return &TasmotaSwitcher{
		endpoint: strings.TrimRight(endpoint, "/"),
		relay:    relayNumber,
		client:   &http.Client{Timeout: timeout},
		sleep:    time.Sleep,
	}, nil
}

// Set drives the relay and verifies the reported state.
func (s *TasmotaSwitcher) Set(on bool) error {
	want := "Off"
	if on {
		want = "On"
	}
	state, err := s.command(fmt.Sprintf("Power%d %s", s.relay, want))
	if err != nil {
		return err
	}
	if state != on {
		return fmt.Errorf("relay: set %s but device reports %s", want, stateString(state))
	}
	return nil
}

// Toggle flips the relay and returns the new state.
func (s *TasmotaSwitcher) Toggle() (bool, error) {
	return s.command(fmt.Sprintf("Power%d Toggle", s.relay))
}

// State queries the current relay state.
func (s *TasmotaSwitcher) State() (bool, error) {
	return s.command(fmt.Sprintf("Power%d", s.relay))
}

// Close releases the HTTP client's idle connections.
func (s *TasmotaSwitcher) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// command sends one Tasmota command and parses the power state from the
// reply, retrying transient failures.
func (s *TasmotaSwitcher) command(cmd string) (bool, error) {
	reqURL := s.endpoint + "/cm?cmnd=" + url.QueryEscape(cmd)

	var lastErr error
	for attempt := 0; attempt < commandRetries; attempt++ {
		if attempt > 0 {
			s.sleep(commandRetryDelay)
		}

		resp, err := s.client.Get(reqURL)
		if err != nil {
			lastErr = fmt.Errorf("relay: %q: %w", cmd, err)
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("relay: read reply to %q: %w", cmd, err)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("relay: %q: status %s", cmd, resp.Status)
			continue
		}

		state, err := ParsePowerReply(string(body))
		if err != nil {
			lastErr = fmt.Errorf("relay: %q: %w", cmd, err)
			continue
		}
		return state, nil
	}
	return false, lastErr
}

// powerMatcher attempts to extract the relay state from one reply format.
// Matchers are tried in priority order; the first successful parse wins.
type powerMatcher func(reply string) (state bool, ok bool)

// Reply formats vary across Tasmota firmware versions: JSON on current
// builds, bare ON/OFF on some minimal builds, `POWER = ON` on very old ones.
var powerMatchers = []powerMatcher{
	matchJSONReply,
	matchBareReply,
	matchLegacyReply,
}

// ParsePowerReply extracts the relay state from a Tasmota command reply,
// trying each known format in order.
func ParsePowerReply(reply string) (bool, error) {
	for _, m := range powerMatchers {
		if state, ok := m(reply); ok {
			return state, nil
		}
	}
	return false, fmt.Errorf("unrecognized power reply %q", strings.TrimSpace(reply))
}

// matchJSONReply handles `{"POWER":"ON"}` and `{"POWER2":"OFF"}`.
func matchJSONReply(reply string) (bool, bool) {
	var decoded map[string]any
	if err := json.Unmarshal([]byte(reply), &decoded); err != nil {
		return false, false
	}
	for key, val := range decoded {
		if !strings.HasPrefix(strings.ToUpper(key), "POWER") {
			continue
		}
		if s, isString := val.(string); isString {
			if state, ok := onOff(s); ok {
				return state, true
			}
		}
	}
	return false, false
}

// matchBareReply handles a reply that is just `ON` or `OFF`.
func matchBareReply(reply string) (bool, bool) {
	return onOff(reply)
}

var legacyPowerRe = regexp.MustCompile(`(?i)POWER\d*\s*[=:]\s*(ON|OFF|1|0)`)

// matchLegacyReply handles `POWER = ON` style text replies.
func matchLegacyReply(reply string) (bool, bool) {
	m := legacyPowerRe.FindStringSubmatch(reply)
	if m == nil {
		return false, false
	}
	return onOff(m[1])
}

func onOff(s string) (bool, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ON", "1":
		return true, true
	case "OFF", "0":
		return false, true
	}
	return false, false
}

func stateString(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
