package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runRecorder struct {
	mu   sync.Mutex
	runs []string
}

func (r *runRecorder) fn(_ context.Context, customerID, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, customerID)
}

func (r *runRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestBurstTriggersSingleRun(t *testing.T) {
	rec := &runRecorder{}
	w, err := New(rec.fn, WithSettleWindow(100*time.Millisecond))
	require.NoError(t, err)
	defer w.Stop()

	staging := t.TempDir()
	require.NoError(t, w.WatchCustomer("acme", staging))
	require.NoError(t, w.Start(context.Background()))

	for _, name := range []string{"a.csv", "b.csv", "c.csv"} {
		require.NoError(t, os.WriteFile(filepath.Join(staging, name), []byte("data"), 0644))
		time.Sleep(10 * time.Millisecond)
	}

	require.True(t, waitFor(t, 3*time.Second, func() bool { return rec.count() >= 1 }))

	// The burst coalesced into one run.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
	assert.Equal(t, []string{"acme"}, rec.runs)
}

func TestTransientArtifactsIgnored(t *testing.T) {
	rec := &runRecorder{}
	w, err := New(rec.fn, WithSettleWindow(50*time.Millisecond))
	require.NoError(t, err)
	defer w.Stop()

	staging := t.TempDir()
	require.NoError(t, w.WatchCustomer("acme", staging))
	require.NoError(t, w.Start(context.Background()))

	for _, name := range []string{".hidden", "upload.part", "edit.swp", "save~"} {
		require.NoError(t, os.WriteFile(filepath.Join(staging, name), []byte("x"), 0644))
	}

	time.Sleep(300 * time.Millisecond)
	assert.Zero(t, rec.count())
}

func TestWatchCustomerRejectsMissingDirectory(t *testing.T) {
	w, err := New(func(context.Context, string, string) {})
	require.NoError(t, err)
	defer w.Stop()

	assert.Error(t, w.WatchCustomer("acme", "/nonexistent/staging"))
}

func TestStopCancelsPendingTriggers(t *testing.T) {
	rec := &runRecorder{}
	w, err := New(rec.fn, WithSettleWindow(200*time.Millisecond))
	require.NoError(t, err)

	staging := t.TempDir()
	require.NoError(t, w.WatchCustomer("acme", staging))
	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, os.WriteFile(filepath.Join(staging, "late.csv"), []byte("x"), 0644))
	require.True(t, waitFor(t, time.Second, func() bool { return w.Stats().EventsReceived > 0 }))

	require.NoError(t, w.Stop())
	time.Sleep(300 * time.Millisecond)
	assert.Zero(t, rec.count())
}

func TestIsTransientArtifact(t *testing.T) {
	assert.True(t, isTransientArtifact("/s/.DS_Store"))
	assert.True(t, isTransientArtifact("/s/file.tmp"))
	assert.True(t, isTransientArtifact("/s/file.part"))
	assert.True(t, isTransientArtifact("/s/backup~"))
	assert.False(t, isTransientArtifact("/s/katalog.csv"))
}
