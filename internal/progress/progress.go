// Package progress tracks the state of one ingestion run and broadcasts it
// to registered observers.
package progress

import (
	"log/slog"
	"sync"
	"time"

	"github.com/christoph-ui/lakecore/internal/metrics"
)

// Status is the run-level state. It advances only forward, except that any
// state may transition to StatusFailed.
type Status string

const (
	StatusPending     Status = "pending"
	StatusCrawling    Status = "crawling"
	StatusClassifying Status = "classifying"
	StatusProcessing  Status = "processing"
	StatusEmbedding   Status = "embedding"
	StatusLoading     Status = "loading"
	StatusComplete    Status = "complete"
	StatusFailed      Status = "failed"
)

// order maps forward-only statuses to their rank.
var order = map[Status]int{
	StatusPending:     0,
	StatusCrawling:    1,
	StatusClassifying: 2,
	StatusProcessing:  3,
	StatusEmbedding:   4,
	StatusLoading:     5,
	StatusComplete:    6,
}

// maxErrors is the soft cap on retained error messages. Older messages roll
// off; counts are never lost.
const maxErrors = 10

// Progress is a snapshot of one ingestion run's state.
type Progress struct {
	RunID       string
	CustomerID  string
	Status      Status
	Total       int
	Processed   int
	Failed      int
	CurrentFile string
	Phase       string
	StartedAt   time.Time
	CompletedAt time.Time
	Categories  map[string]int
	Errors      []string
}

// Percent returns overall completion in [0,100].
func (p Progress) Percent() float64 {
	if p.Status == StatusComplete {
		return 100
	}
	if p.Total == 0 {
		return 0
	}
	return float64(p.Processed+p.Failed) / float64(p.Total) * 100
}

// Observer receives progress snapshots after materially observable state
// changes. Observers must not mutate the snapshot's maps or slices.
type Observer func(Progress)

// Tracker owns the mutable progress state for one run. All mutations happen
// through Tracker methods from the orchestrator task; observers only read.
type Tracker struct {
	mu        sync.Mutex
	p         Progress
	observers []Observer
	logger    *slog.Logger
}

// NewTracker creates a tracker in the pending state.
func NewTracker(runID, customerID string, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		p: Progress{
			RunID:      runID,
			CustomerID: customerID,
			Status:     StatusPending,
			StartedAt:  time.Now(),
			Categories: make(map[string]int),
		},
		logger: logger,
	}
}

// OnProgress registers an observer. Registration is idempotent in effect:
// callbacks are invoked best-effort after each state change and panics are
// swallowed with a warning.
func (t *Tracker) OnProgress(obs Observer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, obs)
}

// SetStatus advances the run status. Backward transitions are ignored;
// StatusFailed is reachable from any state.
func (t *Tracker) SetStatus(s Status) {
	t.mu.Lock()
	if s == StatusFailed {
		t.p.Status = StatusFailed
		if t.p.CompletedAt.IsZero() {
			t.p.CompletedAt = time.Now()
		}
	} else if t.p.Status != StatusFailed && order[s] > order[t.p.Status] {
		t.p.Status = s
		if s == StatusComplete && t.p.CompletedAt.IsZero() {
			t.p.CompletedAt = time.Now()
		}
	}
	t.notifyLocked()
}

// SetTotal records the file total discovered by the crawl.
func (t *Tracker) SetTotal(n int) {
	t.mu.Lock()
	t.p.Total = n
	t.notifyLocked()
}

// FileProcessed records one successfully processed file.
func (t *Tracker) FileProcessed(name string) {
	t.mu.Lock()
	if t.p.Processed+t.p.Failed < t.p.Total {
		t.p.Processed++
	}
	t.p.CurrentFile = name
	t.notifyLocked()
}

// FileFailed records one failed file with its error message.
func (t *Tracker) FileFailed(name, errMsg string) {
	t.mu.Lock()
	if t.p.Processed+t.p.Failed < t.p.Total {
		t.p.Failed++
	}
	t.p.CurrentFile = name
	t.appendErrorLocked(name + ": " + errMsg)
	t.notifyLocked()
}

// SetPhase updates the human-readable phase description.
func (t *Tracker) SetPhase(phase string) {
	t.mu.Lock()
	t.p.Phase = phase
	t.notifyLocked()
}

// SetCurrentFile updates the file currently being worked on.
func (t *Tracker) SetCurrentFile(name string) {
	t.mu.Lock()
	t.p.CurrentFile = name
	t.notifyLocked()
}

// CountCategory increments the per-category counter.
func (t *Tracker) CountCategory(category string) {
	t.mu.Lock()
	t.p.Categories[category]++
	t.notifyLocked()
}

// AppendError records a run-level error string.
func (t *Tracker) AppendError(msg string) {
	t.mu.Lock()
	t.appendErrorLocked(msg)
	t.notifyLocked()
}

// Snapshot returns a copy of the current progress.
func (t *Tracker) Snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) appendErrorLocked(msg string) {
	t.p.Errors = append(t.p.Errors, msg)
	if len(t.p.Errors) > maxErrors {
		t.p.Errors = t.p.Errors[len(t.p.Errors)-maxErrors:]
	}
}

// snapshotLocked deep-copies the progress so observers cannot race the
// tracker's maps.
func (t *Tracker) snapshotLocked() Progress {
	snap := t.p
	snap.Categories = make(map[string]int, len(t.p.Categories))
	for k, v := range t.p.Categories {
		snap.Categories[k] = v
	}
	snap.Errors = append([]string(nil), t.p.Errors...)
	return snap
}

// notifyLocked broadcasts the current snapshot and releases the lock.
// Callbacks run outside the lock; a panicking observer is logged and skipped.
func (t *Tracker) notifyLocked() {
	snap := t.snapshotLocked()
	observers := append([]Observer(nil), t.observers...)
	t.mu.Unlock()

	for _, obs := range observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					metrics.ProgressDroppedCallbacks.Inc()
					t.logger.Warn("progress observer panicked", "panic", r)
				}
			}()
			obs(snap)
		}()
	}
}
