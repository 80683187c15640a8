package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, dir string, processExisting bool) (*InboxWatcher, <-chan []string) {
	t.Helper()
	batches := make(chan []string, 8)
	w, err := NewInboxWatcher(dir, 20*time.Millisecond, func(paths []string) { batches <- paths }, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(processExisting))
	t.Cleanup(func() { _ = w.Stop() })
	return w, batches
}

func nextBatch(t *testing.T, batches <-chan []string) []string {
	t.Helper()
	select {
	case b := <-batches:
		return b
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for a batch")
		return nil
	}
}

func names(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.Base(p)
	}
	return out
}

func TestInboxWatcher_ProcessExisting(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.pdf"), []byte("b"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.pdf"), []byte("a"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".partial"), []byte("x"), 0600))

	_, batches := startWatcher(t, dir, true)

	assert.Equal(t, []string{"a.pdf", "b.pdf"}, names(nextBatch(t, batches)))
}

func TestInboxWatcher_ReportsNewFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.pdf"), []byte("old"), 0600))

	w, batches := startWatcher(t, dir, false)
	assert.True(t, w.IsRunning())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.pdf"), []byte("new"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.pdf"), []byte("h"), 0600))

	assert.Equal(t, []string{"new.pdf"}, names(nextBatch(t, batches)))

	select {
	case b := <-batches:
		t.Fatalf("unexpected batch %v", b)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestInboxWatcher_StopIsIdempotent(t *testing.T) {
	w, _ := startWatcher(t, t.TempDir(), false)
	require.NoError(t, w.Stop())
	assert.False(t, w.IsRunning())
	assert.NoError(t, w.Stop())
}

func TestNewInboxWatcher_RejectsMissingDirectory(t *testing.T) {
	_, err := NewInboxWatcher(filepath.Join(t.TempDir(), "missing"), 0, func([]string) {}, nil)
	assert.Error(t, err)
}
