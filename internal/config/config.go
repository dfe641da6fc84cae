// Package config loads the YAML configuration file for the bench daemon.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/relay-analyzer/internal/status"
	"github.com/sweeney/relay-analyzer/internal/waveform"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultScopeChannel = 1
	DefaultScopeTimeout = 10 * time.Second
	DefaultRelayChip    = "gpiochip0"
	DefaultRelayPin     = 17
	DefaultSettleDelay  = 500 * time.Millisecond
	DefaultClientID     = "relay-analyzer"
	DefaultHTTPAddr     = ":8080"
	DefaultCycle        = 30 * time.Second
	DefaultHeartbeat    = 5 * time.Minute
	DefaultOutputDir    = "."
	DefaultDebounce     = 200 * time.Millisecond
)

// Duration is a time.Duration that unmarshals from YAML strings like "500ms"
// as well as bare numbers (interpreted as seconds).
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("invalid duration %q", node.Value)
	}
	if parsed, err := time.ParseDuration(s); err == nil {
		*d = Duration(parsed)
		return nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		*d = Duration(time.Duration(secs * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid duration %q", s)
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the top-level configuration. Fields map 1:1 to config.example.yaml.
type Config struct {
	Analyzer AnalyzerConfig `yaml:"analyzer"`
	Scope    ScopeConfig    `yaml:"scope"`
	Relay    RelayConfig    `yaml:"relay"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	HTTP     HTTPConfig     `yaml:"http"`
	Bench    BenchConfig    `yaml:"bench"`
	Ingest   IngestConfig   `yaml:"ingest"`
}

// AnalyzerConfig tunes the waveform analyzer. Zero-valued fields fall back to
// the waveform package defaults.
type AnalyzerConfig struct {
	// SettleFraction is the fraction of samples at each end of a capture
	// averaged to estimate steady-state voltage.
	SettleFraction float64 `yaml:"settle_fraction"`

	// LowFraction and HighFraction position the timing thresholds within the
	// voltage swing.
	LowFraction  float64 `yaml:"low_fraction"`
	HighFraction float64 `yaml:"high_fraction"`

	// BounceWindow is the maximum gap between crossings still counted as the
	// same bounce region.
	BounceWindow Duration `yaml:"bounce_window"`

	// MinSamples is the minimum capture length accepted.
	MinSamples int `yaml:"min_samples"`

	// NoiseFloor is the minimum voltage swing distinguishable from noise.
	NoiseFloor float64 `yaml:"noise_floor_v"`
}

// Waveform returns the analyzer tuning as a waveform.Config.
func (a AnalyzerConfig) Waveform() waveform.Config {
	return waveform.Config{
		SettleFraction: a.SettleFraction,
		LowFraction:    a.LowFraction,
		HighFraction:   a.HighFraction,
		BounceWindow:   a.BounceWindow.Std().Seconds(),
		MinSamples:     a.MinSamples,
		NoiseFloor:     a.NoiseFloor,
	}
}

// ScopeConfig holds oscilloscope connection settings. An empty Addr disables
// scope acquisition (file-ingest-only operation).
type ScopeConfig struct {
	// Addr is the SCPI endpoint (host:port).
	Addr string `yaml:"addr"`

	// Channel is the scope channel to read (1-4).
	Channel int `yaml:"channel"`

	// Timeout bounds each SCPI exchange.
	Timeout Duration `yaml:"timeout"`
}

// RelayConfig selects how the relay under test is driven.
type RelayConfig struct {
	// Mode is one of: gpio | tasmota | none.
	Mode string `yaml:"mode"`

	// GPIO fields, used when Mode == "gpio".
	Chip string `yaml:"chip"`
	Pin  int    `yaml:"pin"`

	// Tasmota fields, used when Mode == "tasmota".
	// Endpoint is the device base URL, Number the Power output index.
	Endpoint string `yaml:"endpoint"`
	Number   int    `yaml:"number"`

	// SettleDelay is the wait after switching before the capture is read,
	// giving the contacts time to finish moving.
	SettleDelay Duration `yaml:"settle_delay"`
}

// MQTTConfig holds broker connection settings. An empty Broker disables
// publishing.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`

	// PasswordEnv is the name of the environment variable that holds the
	// broker password. The password itself never appears in the file.
	PasswordEnv string `yaml:"password_env"`
}

// Password returns the broker password resolved from the environment.
func (m MQTTConfig) Password() string {
	if m.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(m.PasswordEnv)
}

// HTTPConfig holds status server settings.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// BenchConfig controls the measurement cycle in daemon mode.
type BenchConfig struct {
	// Cycle is the interval between relay toggles.
	Cycle Duration `yaml:"cycle"`

	// Heartbeat is the interval between MQTT status events.
	Heartbeat Duration `yaml:"heartbeat"`

	// OutputDir is where capture and analysis CSVs are written.
	OutputDir string `yaml:"output_dir"`
}

// IngestConfig controls the drop-directory watcher. An empty WatchDir
// disables ingestion.
type IngestConfig struct {
	WatchDir string `yaml:"watch_dir"`

	// Debounce is how long a file must stay quiet before it is processed,
	// so partially written CSVs are not picked up mid-copy.
	Debounce Duration `yaml:"debounce"`
}

// Status returns the subset of settings exposed on the status page.
func (c *Config) Status() status.Config {
	return status.Config{
		CycleMs:     c.Bench.Cycle.Std().Milliseconds(),
		HeartbeatMs: c.Bench.Heartbeat.Std().Milliseconds(),
		Broker:      c.MQTT.Broker,
		HTTPAddr:    c.HTTP.Addr,
		ScopeAddr:   c.Scope.Addr,
		RelayMode:   c.Relay.Mode,
		WatchDir:    c.Ingest.WatchDir,
		OutputDir:   c.Bench.OutputDir,
	}
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config bytes, applies defaults, and validates.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Scope: ScopeConfig{
			Channel: DefaultScopeChannel,
			Timeout: Duration(DefaultScopeTimeout),
		},
		Relay: RelayConfig{
			Mode:        "none",
			Chip:        DefaultRelayChip,
			Pin:         DefaultRelayPin,
			Number:      1,
			SettleDelay: Duration(DefaultSettleDelay),
		},
		MQTT: MQTTConfig{
			ClientID: DefaultClientID,
		},
		HTTP: HTTPConfig{
			Addr: DefaultHTTPAddr,
		},
		Bench: BenchConfig{
			Cycle:     Duration(DefaultCycle),
			Heartbeat: Duration(DefaultHeartbeat),
			OutputDir: DefaultOutputDir,
		},
		Ingest: IngestConfig{
			Debounce: Duration(DefaultDebounce),
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if err := cfg.Analyzer.Waveform().Validate(); err != nil {
		return fmt.Errorf("analyzer: %w", err)
	}
	if cfg.Scope.Addr != "" {
		if cfg.Scope.Channel < 1 || cfg.Scope.Channel > 4 {
			return fmt.Errorf("scope.channel %d out of range 1-4", cfg.Scope.Channel)
		}
		if cfg.Scope.Timeout <= 0 {
			return fmt.Errorf("scope.timeout must be positive")
		}
	}
	switch cfg.Relay.Mode {
	case "gpio", "tasmota", "none", "":
	default:
		return fmt.Errorf("relay.mode: unknown mode %q", cfg.Relay.Mode)
	}
	if cfg.Relay.Mode == "tasmota" {
		if cfg.Relay.Endpoint == "" {
			return fmt.Errorf("relay.endpoint is required in tasmota mode")
		}
		if cfg.Relay.Number < 1 {
			return fmt.Errorf("relay.number %d must be at least 1", cfg.Relay.Number)
		}
	}
	if cfg.Bench.Cycle <= 0 {
		return fmt.Errorf("bench.cycle must be positive")
	}
	if cfg.Bench.Heartbeat <= 0 {
		return fmt.Errorf("bench.heartbeat must be positive")
	}
	if cfg.Ingest.WatchDir != "" && cfg.Ingest.Debounce <= 0 {
		return fmt.Errorf("ingest.debounce must be positive")
	}
	return nil
}
