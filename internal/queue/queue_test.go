package queue

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumerank/internal/errors"
	"resumerank/internal/intake"
)

func pdf(name, body string) intake.Source {
	return intake.NewBytesSource(name, []byte(body))
}

func TestQueue_AddAndDedup(t *testing.T) {
	q := New(Options{})

	a, err := q.Add(pdf("a.pdf", "alpha"))
	require.NoError(t, err)
	assert.Equal(t, StateQueued, a.State)
	assert.Equal(t, uint64(1), a.Seq)
	assert.NotEmpty(t, a.ID)

	// same bytes, different name
	_, err = q.Add(pdf("a-copy.pdf", "alpha"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeDuplicateFile))

	b, err := q.Add(pdf("b.pdf", "bravo"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), b.Seq)

	stats := q.Stats()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.Queued)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 0, stats.Rejected)
}

func TestQueue_AddRejections(t *testing.T) {
	q := New(Options{Validator: intake.NewValidator(4, nil)})

	_, err := q.Add(pdf("big.pdf", "12345"))
	assert.True(t, errors.HasCode(err, errors.ErrCodeFileTooLarge))

	_, err = q.Add(pdf("notes.txt", "1"))
	assert.True(t, errors.HasCode(err, errors.ErrCodeUnsupportedFileType))

	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 2, q.Stats().Rejected)
}

func TestQueue_Capacity(t *testing.T) {
	q := New(Options{MaxItems: 2})

	for i := range 2 {
		_, err := q.Add(pdf(fmt.Sprintf("%d.pdf", i), fmt.Sprintf("body-%d", i)))
		require.NoError(t, err)
	}

	_, err := q.Add(pdf("third.pdf", "body-3"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeQueueFull))
	assert.Equal(t, 2, q.Len())

	// capacity wins over every other rejection reason
	_, err = q.Add(pdf("third.exe", "body-0"))
	assert.True(t, errors.HasCode(err, errors.ErrCodeQueueFull))
}

func TestQueue_ConcurrentAddKeepsInvariants(t *testing.T) {
	q := New(Options{MaxItems: 50})

	var wg sync.WaitGroup
	for i := range 200 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// 100 distinct bodies offered twice each
			_, _ = q.Add(pdf(fmt.Sprintf("f%d.pdf", i), fmt.Sprintf("body-%d", i%100)))
		}(i)
	}
	wg.Wait()

	items := q.Snapshot()
	assert.LessOrEqual(t, len(items), 50)
	seen := make(map[string]bool)
	for _, item := range items {
		assert.False(t, seen[item.Fingerprint.Value], "duplicate fingerprint %s", item.Fingerprint.Value)
		seen[item.Fingerprint.Value] = true
	}
}

func TestQueue_Remove(t *testing.T) {
	q := New(Options{})
	a, _ := q.Add(pdf("a.pdf", "A"))
	b, _ := q.Add(pdf("b.pdf", "B"))
	c, _ := q.Add(pdf("c.pdf", "C"))

	require.True(t, q.MarkUploading(b.ID))
	require.True(t, q.MarkUploading(c.ID))
	require.True(t, q.MarkDone(c.ID))

	tests := []struct {
		name     string
		id       string
		wantCode string
	}{
		{"uploading is not removable", b.ID, errors.ErrCodeItemNotRemovable},
		{"done is not removable", c.ID, errors.ErrCodeItemNotRemovable},
		{"queued is removable", a.ID, ""},
		{"absent id is a no-op", "missing", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := q.Remove(tt.id)
			if tt.wantCode == "" {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.HasCode(err, tt.wantCode))
			}
		})
	}

	assert.False(t, q.Has(a.ID))
	// the fingerprint is released with the item
	_, err := q.Add(pdf("a-again.pdf", "A"))
	assert.NoError(t, err)
}

func TestQueue_FailedIsRemovable(t *testing.T) {
	q := New(Options{})
	a, _ := q.Add(pdf("a.pdf", "A"))
	require.True(t, q.MarkUploading(a.ID))
	require.True(t, q.MarkFailed(a.ID, ""))

	got, ok := q.Get(a.ID)
	require.True(t, ok)
	assert.Equal(t, StateFailed, got.State)
	assert.Equal(t, "Upload failed", got.Error)

	assert.NoError(t, q.Remove(a.ID))
	assert.Equal(t, 0, q.Len())
}

func TestQueue_Transitions(t *testing.T) {
	q := New(Options{})
	a, _ := q.Add(pdf("a.pdf", "A"))

	assert.False(t, q.SetProgress(a.ID, 10), "progress only applies while uploading")
	assert.False(t, q.MarkDone(a.ID))

	assert.True(t, q.MarkUploading(a.ID))
	assert.False(t, q.MarkUploading(a.ID), "second claim must fail")

	assert.True(t, q.SetProgress(a.ID, 150))
	got, _ := q.Get(a.ID)
	assert.Equal(t, 100, got.Progress)
	assert.True(t, q.SetProgress(a.ID, 40))

	assert.True(t, q.MarkDone(a.ID))
	got, _ = q.Get(a.ID)
	assert.Equal(t, StateDone, got.State)
	assert.Equal(t, 100, got.Progress)
	assert.Empty(t, got.Error)
}

func TestQueue_OrphanTransitions(t *testing.T) {
	q := New(Options{})
	a, _ := q.Add(pdf("a.pdf", "A"))
	require.True(t, q.MarkUploading(a.ID))

	q.Clear()

	assert.False(t, q.SetProgress(a.ID, 50))
	assert.False(t, q.MarkDone(a.ID))
	assert.False(t, q.MarkFailed(a.ID, "boom"))
	assert.Equal(t, 0, q.Len())
	assert.Empty(t, q.Snapshot())
}

func TestQueue_ResetForRetry(t *testing.T) {
	q := New(Options{})
	a, _ := q.Add(pdf("a.pdf", "A"))
	b, _ := q.Add(pdf("b.pdf", "B"))
	q.MarkUploading(a.ID)
	q.MarkDone(a.ID)
	q.MarkUploading(b.ID)
	q.MarkFailed(b.ID, "server said no")

	q.ResetForRetry()

	for _, item := range q.Snapshot() {
		assert.Equal(t, StateQueued, item.State)
		assert.Zero(t, item.Progress)
		assert.Empty(t, item.Error)
	}
	assert.Len(t, q.Queued(), 2)
}

func TestQueue_SnapshotOrder(t *testing.T) {
	q := New(Options{})
	names := []string{"c.pdf", "a.pdf", "b.pdf"}
	for _, n := range names {
		_, err := q.Add(pdf(n, n))
		require.NoError(t, err)
	}

	var got []string
	for _, item := range q.Snapshot() {
		got = append(got, item.Name)
	}
	assert.Equal(t, names, got)
}

func TestQueue_Observe(t *testing.T) {
	var codes []string
	q := New(Options{Observe: func(code string) { codes = append(codes, code) }})

	_, _ = q.Add(pdf("a.pdf", "A"))
	_, _ = q.Add(pdf("b.pdf", "A"))
	_, _ = q.Add(pdf("c.doc", "C"))

	assert.Equal(t, []string{"", errors.ErrCodeDuplicateFile, errors.ErrCodeUnsupportedFileType}, codes)
}
