package relay

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestParsePowerReply(t *testing.T) {
	cases := []struct {
		reply   string
		want    bool
		wantErr bool
	}{
		// Current firmware: JSON.
		{`{"POWER":"ON"}`, true, false},
		{`{"POWER":"OFF"}`, false, false},
		{`{"POWER2":"ON"}`, true, false},
		{`{"POWER1":"off"}`, false, false},
		// Minimal builds: bare state.
		{"ON", true, false},
		{"off\n", false, false},
		// Legacy text replies.
		{"POWER = ON", true, false},
		{"POWER1 = OFF", false, false},
		{"POWER: 1", true, false},
		// Unrecognized.
		{"", false, true},
		{"garbage", false, true},
		{`{"Status":{"Module":1}}`, false, true},
	}

	for _, tc := range cases {
		got, err := ParsePowerReply(tc.reply)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParsePowerReply(%q): expected error", tc.reply)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParsePowerReply(%q): %v", tc.reply, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParsePowerReply(%q): got %v, want %v", tc.reply, got, tc.want)
		}
	}
}

func TestMatcherPriority(t *testing.T) {
	// A JSON reply that also contains legacy-looking text must be parsed as
	// JSON first.
	state, err := ParsePowerReply(`{"POWER":"OFF","Warning":"POWER = ON"}`)
	if err != nil {
		t.Fatalf("ParsePowerReply: %v", err)
	}
	if state {
		t.Error("expected JSON matcher to win with OFF")
	}
}

// tasmotaServer fakes the /cm command endpoint with scripted replies.
func tasmotaServer(t *testing.T, replies []string) (*httptest.Server, *[]string) {
	t.Helper()
	var cmds []string
	i := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cm" {
			http.NotFound(w, r)
			return
		}
		cmds = append(cmds, r.URL.Query().Get("cmnd"))
		reply := replies[len(replies)-1]
		if i < len(replies) {
			reply = replies[i]
			i++
		}
		if reply == "FAIL" {
			http.Error(w, "busy", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, &cmds
}

func newTestSwitcher(t *testing.T, endpoint string) *TasmotaSwitcher {
	t.Helper()
	s, err := NewTasmotaSwitcher(endpoint, 1, 2*time.Second)
	if err != nil {
		t.Fatalf("NewTasmotaSwitcher: %v", err)
	}
	s.sleep = func(time.Duration) {}
	return s
}

func TestTasmotaSet(t *testing.T) {
	srv, cmds := tasmotaServer(t, []string{`{"POWER":"ON"}`})
	s := newTestSwitcher(t, srv.URL)

	if err := s.Set(true); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if len(*cmds) != 1 || (*cmds)[0] != "Power1 On" {
		t.Errorf("commands: got %v, want [Power1 On]", *cmds)
	}
}

func TestTasmotaSetStateMismatch(t *testing.T) {
	srv, _ := tasmotaServer(t, []string{`{"POWER":"OFF"}`})
	s := newTestSwitcher(t, srv.URL)

	err := s.Set(true)
	if err == nil {
		t.Fatal("expected error when device reports wrong state")
	}
	if !strings.Contains(err.Error(), "reports OFF") {
		t.Errorf("error should name reported state: %v", err)
	}
}

func TestTasmotaToggleAndState(t *testing.T) {
	srv, cmds := tasmotaServer(t, []string{`{"POWER":"ON"}`, `{"POWER":"ON"}`})
	s := newTestSwitcher(t, srv.URL)

	on, err := s.Toggle()
	if err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if !on {
		t.Error("Toggle: expected ON")
	}

	on, err = s.State()
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if !on {
		t.Error("State: expected ON")
	}

	want := []string{"Power1 Toggle", "Power1"}
	if len(*cmds) != 2 || (*cmds)[0] != want[0] || (*cmds)[1] != want[1] {
		t.Errorf("commands: got %v, want %v", *cmds, want)
	}
}

func TestTasmotaRetriesTransientFailure(t *testing.T) {
	srv, cmds := tasmotaServer(t, []string{"FAIL", "FAIL", `{"POWER":"ON"}`})
	s := newTestSwitcher(t, srv.URL)

	on, err := s.State()
	if err != nil {
		t.Fatalf("State after retries: %v", err)
	}
	if !on {
		t.Error("expected ON after retry")
	}
	if len(*cmds) != 3 {
		t.Errorf("expected 3 attempts, got %d", len(*cmds))
	}
}

func TestTasmotaGivesUpAfterRetries(t *testing.T) {
	srv, cmds := tasmotaServer(t, []string{"FAIL", "FAIL", "FAIL"})
	s := newTestSwitcher(t, srv.URL)

	if _, err := s.State(); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if len(*cmds) != commandRetries {
		t.Errorf("expected %d attempts, got %d", commandRetries, len(*cmds))
	}
}

func TestTasmotaMultiRelayCommands(t *testing.T) {
	srv, cmds := tasmotaServer(t, []string{`{"POWER2":"OFF"}`})
	s, err := NewTasmotaSwitcher(srv.URL, 2, 2*time.Second)
	if err != nil {
		t.Fatalf("NewTasmotaSwitcher: %v", err)
	}
	s.sleep = func(time.Duration) {}

	if err := s.Set(false); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if (*cmds)[0] != "Power2 Off" {
		t.Errorf("command: got %q, want %q", (*cmds)[0], "Power2 Off")
	}
}

func TestNewTasmotaSwitcherValidation(t *testing.T) {
	if _, err := NewTasmotaSwitcher("not a url", 1, time.Second); err == nil {
		t.Error("expected error for bad endpoint")
	}
	if _, err := NewTasmotaSwitcher("http://10.0.0.5", 0, time.Second); err == nil {
		t.Error("expected error for relay number 0")
	}
}

func TestFakeSwitcher(t *testing.T) {
	f := NewFakeSwitcher()

	if err := f.Set(true); err != nil {
		t.Fatalf("Set: %v", err)
	}
	on, err := f.Toggle()
	if err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if on {
		t.Error("Toggle after Set(true): expected OFF")
	}

	state, err := f.State()
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if state {
		t.Error("State: expected OFF")
	}

	if len(f.Sets) != 2 || !f.Sets[0] || f.Sets[1] {
		t.Errorf("Sets: got %v, want [true false]", f.Sets)
	}

	f.Close()
	if !f.Closed {
		t.Error("Closed flag not set")
	}

	f.Reset()
	if f.On || f.Sets != nil || f.Closed {
		t.Error("Reset did not clear state")
	}
}
