package web

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/relay-analyzer/internal/status"
	"github.com/sweeney/relay-analyzer/internal/waveform"
)

// startServer runs a Server on an ephemeral port and returns its base URL.
func startServer(t *testing.T, tracker *status.Tracker) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	srv := New("", tracker)
	go srv.Serve(ln)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	return "http://" + ln.Addr().String()
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func testTracker() *status.Tracker {
	tr := status.NewTracker(time.Now(), status.Config{
		Broker:   "tcp://broker:1883",
		HTTPAddr: ":8080",
	})
	tr.RecordAnalysis("relay_rising.csv", time.Now(), waveform.Result{
		Type:                waveform.Rising,
		TransitionTime:      0.0008,
		TransitionTimeValid: true,
		BounceCount:         2,
		StartVoltage:        0,
		EndVoltage:          5,
	})
	return tr
}

func TestIndexHTML(t *testing.T) {
	base := startServer(t, testTracker())

	code, body := get(t, base+"/")
	if code != http.StatusOK {
		t.Fatalf("GET /: status %d", code)
	}
	for _, want := range []string{
		"Relay Analyzer",
		"Last rising transition",
		"relay_rising.csv",
		"0.800 ms",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("index missing %q", want)
		}
	}
}

func TestIndexJSON(t *testing.T) {
	base := startServer(t, testTracker())

	code, body := get(t, base+"/index.json")
	if code != http.StatusOK {
		t.Fatalf("GET /index.json: status %d", code)
	}

	var parsed status.StatusJSON
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Counts.Analyzed != 1 {
		t.Errorf("analyzed: got %d, want 1", parsed.Status.Counts.Analyzed)
	}
	if parsed.Status.LastRising == nil {
		t.Error("last_rising missing")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	base := startServer(t, testTracker())

	code, body := get(t, base+"/metrics")
	if code != http.StatusOK {
		t.Fatalf("GET /metrics: status %d", code)
	}
	if !strings.Contains(body, "# HELP") {
		t.Error("metrics output missing HELP comments")
	}
}

func TestUnknownPathIs404(t *testing.T) {
	base := startServer(t, testTracker())

	code, _ := get(t, base+"/nope")
	if code != http.StatusNotFound {
		t.Errorf("GET /nope: status %d, want 404", code)
	}
}

func TestPartialResultRendering(t *testing.T) {
	tr := status.NewTracker(time.Now(), status.Config{})
	tr.RecordAnalysis("relay_truncated.csv", time.Now(), waveform.Result{
		Type:                waveform.Rising,
		TransitionTimeValid: false,
	})
	base := startServer(t, tr)

	_, body := get(t, base+"/")
	if !strings.Contains(body, "not computed") {
		t.Error("partial result should render as 'not computed'")
	}
}
