// Command relay-analyzer measures relay switching behavior: it captures
// transition waveforms, extracts transition time and contact bounce, and
// reports the results over CSV, MQTT, and HTTP.
//
// Three modes:
//
//	relay-analyzer -file capture.csv        analyze one capture and exit
//	relay-analyzer -dir captures/           analyze a directory and exit
//	relay-analyzer -config config.yaml      run the bench daemon
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sweeney/relay-analyzer/internal/capture"
	"github.com/sweeney/relay-analyzer/internal/config"
	"github.com/sweeney/relay-analyzer/internal/ingest"
	"github.com/sweeney/relay-analyzer/internal/metrics"
	"github.com/sweeney/relay-analyzer/internal/mqtt"
	"github.com/sweeney/relay-analyzer/internal/relay"
	"github.com/sweeney/relay-analyzer/internal/scope"
	"github.com/sweeney/relay-analyzer/internal/status"
	"github.com/sweeney/relay-analyzer/internal/waveform"
	"github.com/sweeney/relay-analyzer/internal/web"
)

// Fixed capture file names written in daemon mode. Downstream ingestion
// relies on them, so they carry no timestamps.
const (
	risingFileName  = "relay_rising.csv"
	fallingFileName = "relay_falling.csv"
)

// cycleTimeout bounds one arm-toggle-acquire sequence.
const cycleTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "YAML config file")
	file := flag.String("file", "", "Analyze a single capture CSV and exit")
	dir := flag.String("dir", "", "Analyze every capture CSV in a directory and exit")
	out := flag.String("out", "", "Output directory (default: alongside the input)")
	broker := flag.String("broker", "", "Override mqtt.broker from the config")
	httpAddr := flag.String("http", "", "Override http.addr from the config")
	watch := flag.String("watch", "", "Override ingest.watch_dir from the config")

	flag.Parse()

	cfg, err := loadConfig(*configPath, *broker, *httpAddr, *watch)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}

	switch {
	case *file != "":
		err = runFile(*file, *out, cfg.Analyzer.Waveform())
	case *dir != "":
		err = runDir(*dir, *out, cfg.Analyzer.Waveform())
	default:
		err = runDaemon(cfg)
	}
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// loadConfig reads the config file (defaults-only when no path is given) and
// applies command-line overrides.
func loadConfig(path, broker, httpAddr, watchDir string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.Parse([]byte("{}"))
	}
	if err != nil {
		return nil, err
	}
	if broker != "" {
		cfg.MQTT.Broker = broker
	}
	if httpAddr != "" {
		cfg.HTTP.Addr = httpAddr
	}
	if watchDir != "" {
		cfg.Ingest.WatchDir = watchDir
	}
	return cfg, nil
}

// runFile analyzes one capture, writes its analysis CSV, and prints the
// result JSON to stdout.
func runFile(path, outDir string, wave waveform.Config) error {
	if outDir == "" {
		outDir = filepath.Dir(path)
	}

	c, err := capture.LoadFile(path)
	if err != nil {
		return err
	}
	res, err := waveform.Analyze(c, wave)
	if err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	at := time.Now()
	if err := writeAnalysis(outDir, filepath.Base(path), at, res); err != nil {
		return err
	}

	data, err := capture.FormatResultJSON(filepath.Base(path), at, res)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// runDir analyzes every capture CSV in dir and writes per-file analysis CSVs
// plus the run summary. Invalid captures are logged and skipped so one bad
// file does not abort the batch.
func runDir(dir, outDir string, wave waveform.Config) error {
	if outDir == "" {
		outDir = dir
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	summary := capture.NewSummaryWriter()
	for _, e := range entries {
		if e.IsDir() || !isCaptureCSV(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())

		c, err := capture.LoadFile(path)
		if err != nil {
			log.Printf("skipping %s: %v", e.Name(), err)
			continue
		}
		res, err := waveform.Analyze(c, wave)
		if err != nil {
			log.Printf("skipping %s: %v", e.Name(), err)
			continue
		}

		if err := writeAnalysis(outDir, e.Name(), time.Now(), res); err != nil {
			return err
		}
		summary.Add(e.Name(), res)
		log.Printf("%s: %s transition, %d bounces", e.Name(), res.Type, res.BounceCount)
	}

	if summary.Len() == 0 {
		return fmt.Errorf("no capture files found in %s", dir)
	}

	f, err := os.Create(filepath.Join(outDir, capture.SummaryFileName))
	if err != nil {
		return err
	}
	defer f.Close()
	if err := summary.Write(f); err != nil {
		return err
	}
	log.Printf("wrote %s (%d captures)", capture.SummaryFileName, summary.Len())
	return nil
}

func runDaemon(cfg *config.Config) error {
	wave := cfg.Analyzer.Waveform()

	tracker := status.NewTracker(time.Now(), cfg.Status())

	var src scope.Source
	if cfg.Scope.Addr != "" {
		s, err := scope.DialRigol(cfg.Scope.Addr, cfg.Scope.Channel, cfg.Scope.Timeout.Std())
		if err != nil {
			return fmt.Errorf("init scope: %w", err)
		}
		defer s.Close()
		src = s
		tracker.SetScopeReady(true)
	}

	var sw relay.Switcher
	switch cfg.Relay.Mode {
	case "gpio":
		s, err := relay.NewLineSwitcher(cfg.Relay.Chip, cfg.Relay.Pin)
		if err != nil {
			return fmt.Errorf("init relay: %w", err)
		}
		defer s.Close()
		sw = s
	case "tasmota":
		s, err := relay.NewTasmotaSwitcher(cfg.Relay.Endpoint, cfg.Relay.Number, 5*time.Second)
		if err != nil {
			return fmt.Errorf("init relay: %w", err)
		}
		defer s.Close()
		sw = s
	}

	var publisher mqtt.Publisher
	var connState mqtt.ConnectionStatus
	if cfg.MQTT.Broker != "" {
		p, err := mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.Username, cfg.MQTT.Password())
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer p.Close()
		publisher = p
		connState = p
		tracker.SetMQTTConnected(p.IsConnected())
	}

	d := daemon{
		scope:     src,
		relay:     sw,
		publisher: publisher,
		connState: connState,
		tracker:   tracker,
		wave:      wave,
		settle:    cfg.Relay.SettleDelay.Std(),
		outDir:    cfg.Bench.OutputDir,
		sleep:     time.Sleep,
	}

	// Publish startup event with full status snapshot
	d.publishSystem(mqtt.SystemEvent{
		Timestamp:  time.Now(),
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(tracker.Snapshot(), "STARTUP", ""),
	})

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP.Addr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Ingest.WatchDir != "" {
		w, err := ingest.New(cfg.Ingest.WatchDir, cfg.Ingest.Debounce.Std(), func(path string) {
			d.ingestFile(path, time.Now)
		})
		if err != nil {
			return err
		}
		go func() {
			if err := w.Run(ctx); err != nil {
				log.Printf("ingest error: %v", err)
			}
		}()
	}

	if d.scope == nil || d.relay == nil {
		log.Printf("bench cycle disabled (scope and relay both required)")
	}
	log.Printf("started: cycle=%v heartbeat=%v broker=%s relay=%s",
		cfg.Bench.Cycle.Std(), cfg.Bench.Heartbeat.Std(), cfg.MQTT.Broker, cfg.Relay.Mode)

	ticker := time.NewTicker(cfg.Bench.Cycle.Std())
	defer ticker.Stop()
	heartbeat := time.NewTicker(cfg.Bench.Heartbeat.Std())
	defer heartbeat.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(d, ticker.C, heartbeat.C, sigCh, time.Now)
}

// daemon bundles the dependencies of the bench loop so tests can substitute
// fakes for every hardware and network edge.
type daemon struct {
	scope     scope.Source
	relay     relay.Switcher
	publisher mqtt.Publisher
	connState mqtt.ConnectionStatus
	tracker   *status.Tracker
	wave      waveform.Config
	settle    time.Duration
	outDir    string
	sleep     func(time.Duration)
}

func runLoop(d daemon, tick, heartbeat <-chan time.Time, sig <-chan os.Signal, now func() time.Time) error {
	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			name := signalName(s)
			d.refreshConnState()
			d.publishSystem(mqtt.SystemEvent{
				Timestamp:  now(),
				Event:      "SHUTDOWN",
				Reason:     name,
				Retained:   true,
				RawPayload: status.FormatStatusEvent(d.tracker.Snapshot(), "SHUTDOWN", name),
			})
			return nil

		case <-tick:
			if d.scope == nil || d.relay == nil {
				continue
			}
			d.runCycle(now)

		case <-heartbeat:
			d.refreshConnState()
			snap := d.tracker.Snapshot()
			log.Printf("heartbeat: uptime=%v analyzed=%d invalid=%d",
				snap.Uptime().Truncate(time.Second), snap.Counts.Analyzed, snap.Counts.Invalid)
			d.publishSystem(mqtt.SystemEvent{
				Timestamp:  now(),
				Event:      "HEARTBEAT",
				RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
			})
		}
	}
}

// runCycle performs one measurement: arm the scope, switch the relay, wait
// for the contacts to settle, then pull and analyze the capture.
func (d *daemon) runCycle(now func() time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
	defer cancel()

	if err := d.scope.Arm(ctx); err != nil {
		log.Printf("arm error: %v", err)
		metrics.AcquisitionErrors.Inc()
		d.tracker.SetScopeReady(false)
		return
	}

	on, err := d.relay.Toggle()
	if err != nil {
		log.Printf("relay error: %v", err)
		return
	}
	metrics.RelayCycles.Inc()

	if d.sleep != nil && d.settle > 0 {
		d.sleep(d.settle)
	}

	c, err := d.scope.Acquire(ctx)
	if err != nil {
		log.Printf("acquire error: %v", err)
		metrics.AcquisitionErrors.Inc()
		d.tracker.SetScopeReady(false)
		return
	}
	d.tracker.SetScopeReady(true)

	res, err := waveform.Analyze(c, d.wave)
	if err != nil {
		log.Printf("analysis error: %v", err)
		d.recordInvalid()
		return
	}

	name := fallingFileName
	if res.Type == waveform.Rising {
		name = risingFileName
	}
	// The capture direction should track the relay drive. A mismatch usually
	// means the probe is on the wrong contact.
	if on != (res.Type == waveform.Rising) {
		log.Printf("cycle: relay driven %s but capture classified %s", onOff(on), res.Type)
	}

	if err := saveCapture(d.outDir, name, c); err != nil {
		log.Printf("save capture: %v", err)
	}

	d.finishAnalysis(name, now(), res)
}

// ingestFile runs one dropped capture file through the same pipeline as a
// live acquisition.
func (d *daemon) ingestFile(path string, now func() time.Time) {
	metrics.CapturesIngested.Inc()

	c, err := capture.LoadFile(path)
	if err != nil {
		log.Printf("ingest: %v", err)
		return
	}
	res, err := waveform.Analyze(c, d.wave)
	if err != nil {
		log.Printf("ingest: %s: %v", filepath.Base(path), err)
		d.recordInvalid()
		return
	}
	d.finishAnalysis(filepath.Base(path), now(), res)
}

// finishAnalysis writes the analysis CSV, updates status and metrics, and
// publishes the result event.
func (d *daemon) finishAnalysis(source string, at time.Time, res waveform.Result) {
	if err := writeAnalysis(d.outDir, source, at, res); err != nil {
		log.Printf("write analysis: %v", err)
	}

	d.tracker.RecordAnalysis(source, at, res)
	metrics.ObserveResult(string(res.Type), res.TransitionTime, res.TransitionTimeValid, res.BounceCount)
	log.Printf("%s: %s transition, %d bounces", source, res.Type, res.BounceCount)

	if d.publisher != nil {
		err := d.publisher.Publish(mqtt.AnalysisEvent{Timestamp: at, Source: source, Result: res})
		if err != nil {
			log.Printf("publish error: %v", err)
			metrics.PublishErrors.Inc()
		}
	}
	d.refreshConnState()
}

func (d *daemon) recordInvalid() {
	d.tracker.RecordInvalid()
	metrics.AnalysesTotal.WithLabelValues("UNKNOWN", "invalid").Inc()
}

func (d *daemon) publishSystem(event mqtt.SystemEvent) {
	if d.publisher == nil {
		return
	}
	if err := d.publisher.PublishSystem(event); err != nil {
		log.Printf("failed to publish %s event: %v", event.Event, err)
		metrics.PublishErrors.Inc()
	} else {
		log.Printf("published %s event", event.Event)
	}
}

func (d *daemon) refreshConnState() {
	if d.connState != nil {
		d.tracker.SetMQTTConnected(d.connState.IsConnected())
	}
}

// writeAnalysis writes the per-capture analysis CSV for source into dir.
func writeAnalysis(dir, source string, at time.Time, res waveform.Result) error {
	f, err := os.Create(filepath.Join(dir, capture.AnalysisFileName(source)))
	if err != nil {
		return err
	}
	defer f.Close()
	return capture.WriteAnalysisCSV(f, source, at, res)
}

func saveCapture(dir, name string, c waveform.Capture) error {
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	defer f.Close()
	return capture.Save(f, c)
}

// isCaptureCSV filters directory entries down to capture files, skipping the
// analyzer's own outputs.
func isCaptureCSV(name string) bool {
	if !strings.HasSuffix(name, ".csv") {
		return false
	}
	if strings.HasSuffix(name, "_analysis.csv") {
		return false
	}
	return name != capture.SummaryFileName
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
