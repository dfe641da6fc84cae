package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
analyzer:
  settle_fraction: 0.08
  bounce_window: 2ms
scope:
  addr: "192.168.1.40:5555"
  channel: 2
  timeout: 5s
relay:
  mode: tasmota
  endpoint: "http://192.168.1.50"
  number: 2
  settle_delay: 250ms
mqtt:
  broker: "tcp://192.168.1.10:1883"
  username: bench
  password_env: RELAY_MQTT_PASS
http:
  addr: ":9090"
bench:
  cycle: 10s
  heartbeat: 1m
  output_dir: /var/lib/relay-analyzer
ingest:
  watch_dir: /srv/captures
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Analyzer.SettleFraction != 0.08 {
		t.Errorf("settle_fraction: got %v", cfg.Analyzer.SettleFraction)
	}
	if cfg.Analyzer.BounceWindow.Std() != 2*time.Millisecond {
		t.Errorf("bounce_window: got %v", cfg.Analyzer.BounceWindow.Std())
	}
	if cfg.Scope.Addr != "192.168.1.40:5555" || cfg.Scope.Channel != 2 {
		t.Errorf("scope: got %+v", cfg.Scope)
	}
	if cfg.Relay.Mode != "tasmota" || cfg.Relay.Number != 2 {
		t.Errorf("relay: got %+v", cfg.Relay)
	}
	if cfg.Relay.SettleDelay.Std() != 250*time.Millisecond {
		t.Errorf("settle_delay: got %v", cfg.Relay.SettleDelay.Std())
	}
	if cfg.Bench.Cycle.Std() != 10*time.Second {
		t.Errorf("cycle: got %v", cfg.Bench.Cycle.Std())
	}
	if cfg.Ingest.WatchDir != "/srv/captures" {
		t.Errorf("watch_dir: got %q", cfg.Ingest.WatchDir)
	}
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Scope.Channel != DefaultScopeChannel {
		t.Errorf("scope.channel default: got %d", cfg.Scope.Channel)
	}
	if cfg.Relay.Mode != "none" {
		t.Errorf("relay.mode default: got %q", cfg.Relay.Mode)
	}
	if cfg.MQTT.ClientID != DefaultClientID {
		t.Errorf("mqtt.client_id default: got %q", cfg.MQTT.ClientID)
	}
	if cfg.HTTP.Addr != DefaultHTTPAddr {
		t.Errorf("http.addr default: got %q", cfg.HTTP.Addr)
	}
	if cfg.Bench.Cycle.Std() != DefaultCycle {
		t.Errorf("bench.cycle default: got %v", cfg.Bench.Cycle.Std())
	}
	if cfg.Ingest.Debounce.Std() != DefaultDebounce {
		t.Errorf("ingest.debounce default: got %v", cfg.Ingest.Debounce.Std())
	}
}

func TestDurationForms(t *testing.T) {
	cfg, err := Parse([]byte("bench:\n  cycle: 2.5\n  heartbeat: 90s\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := cfg.Bench.Cycle.Std(); got != 2500*time.Millisecond {
		t.Errorf("numeric duration: got %v, want 2.5s", got)
	}
	if got := cfg.Bench.Heartbeat.Std(); got != 90*time.Second {
		t.Errorf("string duration: got %v, want 90s", got)
	}
}

func TestValidateErrors(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"bad relay mode", "relay:\n  mode: serial\n", "unknown mode"},
		{"tasmota without endpoint", "relay:\n  mode: tasmota\n", "endpoint is required"},
		{"bad scope channel", "scope:\n  addr: \"x:5555\"\n  channel: 5\n", "out of range"},
		{"zero cycle", "bench:\n  cycle: 0s\n", "cycle must be positive"},
		{"bad analyzer fraction", "analyzer:\n  settle_fraction: 0.9\n", "settle fraction"},
		{"bad duration", "bench:\n  cycle: soon\n", "invalid duration"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MQTT.Broker != "tcp://192.168.1.10:1883" {
		t.Errorf("broker: got %q", cfg.MQTT.Broker)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestPasswordEnv(t *testing.T) {
	t.Setenv("RELAY_TEST_MQTT_PASS", "s3cret")

	m := MQTTConfig{PasswordEnv: "RELAY_TEST_MQTT_PASS"}
	if got := m.Password(); got != "s3cret" {
		t.Errorf("Password: got %q", got)
	}
	if got := (MQTTConfig{}).Password(); got != "" {
		t.Errorf("empty PasswordEnv: got %q", got)
	}
}
