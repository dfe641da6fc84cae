// Package ingest watches a drop directory for capture CSVs and hands each
// settled file to a handler. It lets captures recorded elsewhere (scope USB
// export, scp from another bench) flow through the same analysis pipeline as
// live acquisitions.
package ingest

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sweeney/relay-analyzer/internal/capture"
)

// Handler is called once per settled capture file, with its full path.
type Handler func(path string)

// Watcher monitors a directory for new capture CSVs.
type Watcher struct {
	dir      string
	debounce time.Duration
	handler  Handler

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New creates a Watcher for dir. The handler fires once a new CSV has been
// quiet for the debounce interval, so partially written files are not read
// mid-copy.
func New(dir string, debounce time.Duration, handler Handler) (*Watcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("ingest: %s is not a directory", dir)
	}
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		handler:  handler,
		pending:  make(map[string]*time.Timer),
	}, nil
}

// Run processes CSVs already present in the directory, then watches for new
// ones until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("ingest: watch %s: %w", w.dir, err)
	}

	// Pre-existing files first, after the watch is established so nothing
	// dropped in between is missed.
	if err := w.processExisting(); err != nil {
		return err
	}

	log.Printf("ingest: watching %s", w.dir)

	for {
		select {
		case <-ctx.Done():
			w.cancelPending()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !wanted(event.Name) {
				continue
			}
			w.schedule(event.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("ingest: watcher error: %v", err)
		}
	}
}

func (w *Watcher) processExisting() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(w.dir, e.Name())
		if wanted(path) {
			w.handler(path)
		}
	}
	return nil
}

// schedule (re)starts the debounce timer for a file. Every write event resets
// the timer, so the handler fires only after the file stops changing.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.handler(path)
	})
}

func (w *Watcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

// wanted filters out non-CSVs and the analyzer's own outputs, so writing an
// analysis CSV back into a watched directory does not loop.
func wanted(path string) bool {
	name := filepath.Base(path)
	if !strings.HasSuffix(name, ".csv") {
		return false
	}
	if strings.HasSuffix(name, "_analysis.csv") {
		return false
	}
	if name == capture.SummaryFileName {
		return false
	}
	return true
}
