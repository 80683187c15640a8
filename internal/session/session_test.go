package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumerank/internal/config"
	"resumerank/internal/dispatch"
	"resumerank/internal/errors"
	"resumerank/internal/intake"
	"resumerank/internal/types"
)

// fitUploader scores each file by a number embedded in its name
type fitUploader struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]string
}

func newFitUploader() *fitUploader {
	return &fitUploader{calls: map[string]int{}, fail: map[string]string{}}
}

func (u *fitUploader) Upload(ctx context.Context, req dispatch.UploadRequest) (*types.AnalyzeResponse, error) {
	name := req.Source.Name()

	u.mu.Lock()
	u.calls[name]++
	msg, failing := u.fail[name]
	u.mu.Unlock()

	if failing {
		return nil, errors.NewServerError(errors.ErrCodeUploadRejected, msg, nil)
	}

	var fit float64
	_, _ = fmt.Sscanf(strings.TrimSuffix(name, ".pdf"), "fit%f", &fit)
	return &types.AnalyzeResponse{Results: []types.AnalysisResult{{
		CandidateName:        name,
		OverallFitPercentage: fit,
	}}}, nil
}

func (u *fitUploader) count(name string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls[name]
}

func file(name, body string) intake.Source {
	return intake.NewBytesSource(name, []byte(body))
}

func newSession(t *testing.T, up dispatch.Uploader, mutate ...func(*config.Config)) *Session {
	t.Helper()
	cfg := config.Default()
	for _, m := range mutate {
		m(cfg)
	}
	return New(cfg, up, Options{})
}

func TestSession_DuplicateThenDistinct(t *testing.T) {
	up := newFitUploader()
	s := newSession(t, up)

	report := s.AddFiles([]intake.Source{
		file("fit80.pdf", "resume A"),
		file("fit80-copy.pdf", "resume A"),
		file("fit60.pdf", "resume B"),
	})

	assert.Equal(t, []string{"fit80.pdf", "fit60.pdf"}, report.Added)
	assert.Equal(t, []string{"fit80-copy.pdf"}, report.Skipped)
	assert.Empty(t, report.Rejected)
	assert.False(t, report.QueueFull)

	summary, err := s.Submit(context.Background(), "Senior Go engineer")
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	require.Len(t, summary.Ranked, 2)
	assert.Equal(t, "fit80.pdf", summary.Ranked[0].Filename)
	assert.Equal(t, 1, summary.Ranked[0].Rank)
	assert.Equal(t, 2, summary.Ranked[1].Rank)
	assert.Equal(t, 0, up.count("fit80-copy.pdf"))
}

func TestSession_RankDeterminism(t *testing.T) {
	s := newSession(t, newFitUploader())
	s.AddFiles([]intake.Source{
		file("fit40.pdf", "a"),
		file("fit90.pdf", "b"),
		file("fit90.0.pdf", "c"),
		file("fit10.pdf", "d"),
	})

	summary, err := s.Submit(context.Background(), "jd")
	require.NoError(t, err)

	var names []string
	for _, r := range summary.Ranked {
		names = append(names, r.Filename)
	}
	assert.Equal(t, []string{"fit90.pdf", "fit90.0.pdf", "fit40.pdf", "fit10.pdf"}, names)
}

func TestSession_BeginValidation(t *testing.T) {
	s := newSession(t, newFitUploader())

	err := s.Begin("jd")
	assert.True(t, errors.HasCode(err, errors.ErrCodeEmptyQueue))

	s.AddFiles([]intake.Source{file("fit1.pdf", "x")})

	err = s.Begin("   ")
	assert.True(t, errors.HasCode(err, errors.ErrCodeMissingJobDescription))

	require.NoError(t, s.Begin("jd"))
	err = s.Begin("jd")
	assert.True(t, errors.HasCode(err, errors.ErrCodeCycleInProgress))
	assert.True(t, s.Stats().Running)

	require.NoError(t, s.Drain(context.Background()))
	s.Finalize()
	assert.False(t, s.Stats().Running)
}

func TestSession_DrainWithoutCycle(t *testing.T) {
	s := newSession(t, newFitUploader())
	err := s.Drain(context.Background())
	assert.True(t, errors.HasCode(err, errors.ErrCodeNoActiveCycle))
}

func TestSession_AllFailed(t *testing.T) {
	up := newFitUploader()
	up.fail["fit10.pdf"] = "Unreadable PDF"
	up.fail["fit20.pdf"] = "Upload failed"
	s := newSession(t, up)

	s.AddFiles([]intake.Source{file("fit10.pdf", "a"), file("fit20.pdf", "b")})
	summary, err := s.Submit(context.Background(), "jd")

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeAllUploadsFailed))
	assert.True(t, summary.AllFailed())
	assert.Empty(t, summary.Ranked)
	require.Len(t, summary.FailedItems, 2)
	assert.Equal(t, "fit10.pdf", summary.FailedItems[0].Filename)
	assert.Equal(t, "Unreadable PDF", summary.FailedItems[0].Error)

	last, ok := s.LastSummary()
	require.True(t, ok)
	assert.Equal(t, summary, last)
}

func TestSession_PartialFailure(t *testing.T) {
	up := newFitUploader()
	up.fail["fit10.pdf"] = "Unreadable PDF"
	s := newSession(t, up)

	s.AddFiles([]intake.Source{file("fit10.pdf", "a"), file("fit70.pdf", "b")})
	summary, err := s.Submit(context.Background(), "jd")
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Len(t, summary.Ranked, 1)
	assert.Len(t, summary.FailedItems, 1)
}

func TestSession_ResubmitReanalyzesEverything(t *testing.T) {
	up := newFitUploader()
	s := newSession(t, up)
	s.AddFiles([]intake.Source{file("fit50.pdf", "a"), file("fit60.pdf", "b")})

	_, err := s.Submit(context.Background(), "jd one")
	require.NoError(t, err)
	summary, err := s.Submit(context.Background(), "jd two")
	require.NoError(t, err)

	assert.Equal(t, 2, up.count("fit50.pdf"))
	assert.Len(t, summary.Ranked, 2, "earlier results are discarded")
}

func TestSession_CapacityStopsBatch(t *testing.T) {
	s := newSession(t, newFitUploader(), func(c *config.Config) { c.Queue.MaxItems = 2 })

	report := s.AddFiles([]intake.Source{
		file("fit1.pdf", "1"),
		file("fit2.pdf", "2"),
		file("fit3.pdf", "3"),
		file("fit4.pdf", "4"),
	})

	assert.Len(t, report.Added, 2)
	assert.True(t, report.QueueFull)
	require.Len(t, report.Rejected, 1)
	assert.Equal(t, "fit3.pdf", report.Rejected[0].Filename)
	assert.Equal(t, errors.ErrCodeQueueFull, report.Rejected[0].Code)
	assert.Equal(t, 2, s.Stats().Total)
}

func TestSession_RejectionsAreReported(t *testing.T) {
	s := newSession(t, newFitUploader(), func(c *config.Config) { c.Queue.MaxFileSize = 4 })

	report := s.AddFiles([]intake.Source{
		file("notes.txt", "1"),
		file("huge.pdf", "12345"),
		file("fit1.pdf", "ok"),
	})

	assert.Equal(t, []string{"fit1.pdf"}, report.Added)
	require.Len(t, report.Rejected, 2)
	assert.Equal(t, errors.ErrCodeUnsupportedFileType, report.Rejected[0].Code)
	assert.Equal(t, errors.ErrCodeFileTooLarge, report.Rejected[1].Code)
	assert.Equal(t, 2, s.Stats().Rejected)
}

func TestSession_Reset(t *testing.T) {
	s := newSession(t, newFitUploader())
	s.AddFiles([]intake.Source{file("fit1.pdf", "1"), file("fit1-again.pdf", "1")})
	_, err := s.Submit(context.Background(), "jd")
	require.NoError(t, err)

	s.Reset()

	stats := s.Stats()
	assert.Equal(t, 0, stats.Total)
	assert.Equal(t, 0, stats.Skipped)
	assert.Empty(t, s.Snapshot())
	_, ok := s.LastSummary()
	assert.False(t, ok)

	// the same bytes may be queued again after a reset
	report := s.AddFiles([]intake.Source{file("fit1.pdf", "1")})
	assert.Len(t, report.Added, 1)
}

func TestSession_RemoveAndClear(t *testing.T) {
	s := newSession(t, newFitUploader())
	s.AddFiles([]intake.Source{file("fit1.pdf", "1"), file("fit2.pdf", "2")})

	items := s.Snapshot()
	require.Len(t, items, 2)
	require.NoError(t, s.Remove(items[0].ID))
	_, ok := s.Get(items[0].ID)
	assert.False(t, ok)

	s.ClearQueue()
	assert.Equal(t, 0, s.Stats().Total)
}

func TestSession_SubmitQueuedKeepsEarlierResults(t *testing.T) {
	up := newFitUploader()
	s := newSession(t, up)

	s.AddFiles([]intake.Source{file("fit30.pdf", "a")})
	_, err := s.SubmitQueued(context.Background(), "jd")
	require.NoError(t, err)

	_, err = s.SubmitQueued(context.Background(), "jd")
	assert.True(t, errors.HasCode(err, errors.ErrCodeEmptyQueue))

	s.AddFiles([]intake.Source{file("fit95.pdf", "b")})
	summary, err := s.SubmitQueued(context.Background(), "jd")
	require.NoError(t, err)

	assert.Equal(t, 1, up.count("fit30.pdf"), "done items are not uploaded again")
	assert.Equal(t, 2, summary.Total)
	require.Len(t, summary.Ranked, 2)
	assert.Equal(t, "fit95.pdf", summary.Ranked[0].Filename)
	assert.Equal(t, "fit30.pdf", summary.Ranked[1].Filename)
}
