// Package watcher monitors customer upload staging directories and triggers
// an ingestion run once a burst of uploads has settled.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// RunFunc starts one ingestion over a customer's staging directory.
type RunFunc func(ctx context.Context, customerID, folder string)

// Stats reports watcher activity counters.
type Stats struct {
	WatchedCustomers int
	EventsReceived   int64
	RunsTriggered    int64
	Errors           int64
	IsRunning        bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithSettleWindow sets how long a staging directory must stay quiet before
// an ingestion run fires.
func WithSettleWindow(d time.Duration) Option {
	return func(w *Watcher) { w.settleWindow = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) { w.logger = logger }
}

// Watcher debounces filesystem events per customer so one upload batch
// produces one run.
type Watcher struct {
	fsWatcher    *fsnotify.Watcher
	run          RunFunc
	logger       *slog.Logger
	settleWindow time.Duration

	mu      sync.Mutex
	roots   map[string]string // staging dir -> customer id
	timers  map[string]*time.Timer
	stats   Stats
	running bool

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// New creates a Watcher that invokes run after each settled upload burst.
func New(run RunFunc, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher; %w", err)
	}

	w := &Watcher{
		fsWatcher:    fsw,
		run:          run,
		logger:       slog.Default(),
		settleWindow: 2 * time.Second,
		roots:        make(map[string]string),
		timers:       make(map[string]*time.Timer),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// WatchCustomer registers a customer's staging directory, including existing
// subdirectories.
func (w *Watcher) WatchCustomer(customerID, stagingDir string) error {
	absPath, err := filepath.Abs(stagingDir)
	if err != nil {
		return fmt.Errorf("resolving staging path; %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("checking staging path; %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("staging path is not a directory: %s", absPath)
	}

	err = filepath.WalkDir(absPath, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != absPath && strings.HasPrefix(filepath.Base(p), ".") {
			return fs.SkipDir
		}
		if err := w.fsWatcher.Add(p); err != nil {
			w.logger.Warn("failed to watch directory", "path", p, "error", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walking staging directory; %w", err)
	}

	w.mu.Lock()
	w.roots[absPath] = customerID
	w.stats.WatchedCustomers = len(w.roots)
	w.mu.Unlock()

	w.logger.Info("watching staging directory",
		"customer_id", customerID, "path", absPath)
	return nil
}

// Start begins processing events until the context ends or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.stats.IsRunning = true
	w.mu.Unlock()

	go w.processEvents(ctx)
	return nil
}

// Stop halts event processing, cancels pending triggers, and closes the
// filesystem watcher.
func (w *Watcher) Stop() error {
	var stopErr error
	w.stopOnce.Do(func() {
		w.mu.Lock()
		if !w.running {
			w.mu.Unlock()
			stopErr = w.fsWatcher.Close()
			return
		}
		w.running = false
		w.stats.IsRunning = false
		for customerID, timer := range w.timers {
			timer.Stop()
			delete(w.timers, customerID)
		}
		w.mu.Unlock()

		close(w.stopCh)
		<-w.doneCh
		stopErr = w.fsWatcher.Close()
	})
	return stopErr
}

// Stats returns a copy of the current counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
			w.logger.Error("fsnotify error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	w.mu.Lock()
	w.stats.EventsReceived++
	w.mu.Unlock()

	if isTransientArtifact(event.Name) {
		return
	}

	root, customerID := w.rootOf(event.Name)
	if customerID == "" {
		return
	}

	// New subdirectories join the watch so nested uploads keep arriving.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !strings.HasPrefix(filepath.Base(event.Name), ".") {
				if err := w.fsWatcher.Add(event.Name); err != nil {
					w.logger.Warn("failed to watch new directory",
						"path", event.Name, "error", err)
				}
			}
			return
		}
	}

	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	w.schedule(ctx, customerID, root)
}

// schedule resets the customer's settle timer. The run fires only after the
// staging directory has been quiet for the full window.
func (w *Watcher) schedule(ctx context.Context, customerID, root string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	if timer, exists := w.timers[customerID]; exists {
		timer.Stop()
	}
	w.timers[customerID] = time.AfterFunc(w.settleWindow, func() {
		w.trigger(ctx, customerID, root)
	})
}

func (w *Watcher) trigger(ctx context.Context, customerID, root string) {
	w.mu.Lock()
	delete(w.timers, customerID)
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.stats.RunsTriggered++
	w.mu.Unlock()

	w.logger.Info("staging settled, starting ingestion",
		"customer_id", customerID, "path", root)
	w.run(ctx, customerID, root)
}

// rootOf resolves the watched staging root containing path.
func (w *Watcher) rootOf(path string) (string, string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for root, customerID := range w.roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return root, customerID
		}
	}
	return "", ""
}

// isTransientArtifact filters editor and upload temp files that appear and
// disappear during writes.
func isTransientArtifact(path string) bool {
	name := filepath.Base(path)

	if strings.HasPrefix(name, ".") {
		return true
	}
	if strings.HasSuffix(name, ".swp") || strings.HasSuffix(name, ".swo") ||
		strings.HasSuffix(name, "~") {
		return true
	}
	if strings.HasSuffix(name, ".part") || strings.HasSuffix(name, ".upload") ||
		strings.HasSuffix(name, ".tmp") {
		return true
	}
	return false
}
