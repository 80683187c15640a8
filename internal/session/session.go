// Package session owns the state of one upload session: the queue, the
// dispatcher draining it and the aggregator ranking what comes back.
// Presentation layers hold a *Session and never touch those parts directly.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"resumerank/internal/config"
	"resumerank/internal/dispatch"
	"resumerank/internal/errors"
	"resumerank/internal/intake"
	"resumerank/internal/observability"
	"resumerank/internal/queue"
	"resumerank/internal/results"
	"resumerank/internal/types"
	"resumerank/internal/utils"
)

// Options carries the collaborators a Session is built with
type Options struct {
	Logger  *errors.Logger
	Metrics *observability.Metrics
	Tracer  trace.Tracer
	// OnChange fires after every queue item transition
	OnChange func()
}

// Stats extends the queue counters with dispatcher state
type Stats struct {
	queue.Stats
	InFlight    int  `json:"in_flight"`
	Concurrency int  `json:"concurrency"`
	Running     bool `json:"running"`
}

// Session is safe for concurrent use. Only one submission cycle runs at a time.
type Session struct {
	queue      *queue.Queue
	dispatcher *dispatch.Dispatcher
	aggregator *results.Aggregator
	topN       int
	logger     *errors.Logger

	mu             sync.Mutex
	running        bool
	jobDescription string
	last           *types.Summary
}

// New builds a session from configuration. uploader performs the actual
// transfer of each file.
func New(cfg *config.Config, uploader dispatch.Uploader, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = errors.Discard()
	}
	metrics := opts.Metrics

	s := &Session{
		aggregator: results.NewAggregator(),
		topN:       cfg.Results.TopN,
		logger:     opts.Logger,
	}

	s.queue = queue.New(queue.Options{
		MaxItems:  cfg.Queue.MaxItems,
		Validator: intake.NewValidator(cfg.Queue.MaxFileSize, cfg.Queue.AllowedExtensions),
		Hasher:    intake.NewHasher(opts.Logger),
		Logger:    opts.Logger,
		Observe: func(code string) {
			metrics.QueueOutcome(context.Background(), code)
		},
	})

	var limiter *rate.Limiter
	if rl := cfg.Client.RateLimit; rl.Enabled && rl.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(rl.RequestsPerSecond), max(rl.Burst, 1))
	}

	s.dispatcher = dispatch.New(s.queue, uploader, dispatch.Options{
		Concurrency:    cfg.Dispatch.Concurrency,
		UploadTimeout:  cfg.Dispatch.UploadTimeout,
		Limiter:        limiter,
		Logger:         opts.Logger,
		Metrics:        metrics,
		Tracer:         opts.Tracer,
		OnResult:       s.aggregator.Add,
		OnInconsistent: func(queue.Item) { s.aggregator.NoteInconsistent() },
		OnChange:       opts.OnChange,
	})

	return s
}

// AddFiles offers files to the queue. Duplicates are skipped, invalid files
// rejected with a reason, and the batch stops at the first capacity refusal.
func (s *Session) AddFiles(srcs []intake.Source) types.AddReport {
	report := types.AddReport{
		Added:    []string{},
		Skipped:  []string{},
		Rejected: []types.Rejection{},
	}

	var addedBytes int64
	for _, src := range srcs {
		item, err := s.queue.Add(src)
		if err == nil {
			report.Added = append(report.Added, item.Name)
			addedBytes += item.Size
			continue
		}

		code := errors.CodeOf(err)
		switch code {
		case errors.ErrCodeDuplicateFile:
			report.Skipped = append(report.Skipped, src.Name())
			s.logger.Debug("Duplicate file skipped", "file", src.Name())
		case errors.ErrCodeQueueFull:
			report.QueueFull = true
			report.Rejected = append(report.Rejected, types.Rejection{
				Filename: src.Name(), Code: code, Reason: errors.MessageOf(err),
			})
		default:
			report.Rejected = append(report.Rejected, types.Rejection{
				Filename: src.Name(), Code: code, Reason: errors.MessageOf(err),
			})
			s.logger.Warn("File rejected", "file", src.Name(), "code", code, "reason", errors.MessageOf(err))
		}
		if report.QueueFull {
			s.logger.Warn("Upload queue is full, remaining files ignored",
				"capacity", s.queue.Capacity(), "ignored", len(srcs)-len(report.Added)-len(report.Skipped)-len(report.Rejected))
			break
		}
	}

	if len(report.Added) > 0 {
		s.logger.Info(fmt.Sprintf("%d files added to queue", len(report.Added)),
			"bytes", utils.FormatFileSize(addedBytes), "queue_size", s.queue.Len())
		s.dispatcher.Notify()
	}
	if len(report.Skipped) > 0 {
		s.logger.Info(fmt.Sprintf("%d duplicates skipped", len(report.Skipped)))
	}
	return report
}

// Remove deletes a queued or failed item
func (s *Session) Remove(id string) error {
	return s.queue.Remove(id)
}

// ClearQueue removes every item
func (s *Session) ClearQueue() {
	s.queue.Clear()
	s.logger.Debug("Upload queue cleared")
}

// Reset returns the session to its initial state: empty queue, no results,
// zeroed counters.
func (s *Session) Reset() {
	s.queue.Clear()
	s.queue.ResetCounters()
	s.aggregator.Reset()

	s.mu.Lock()
	s.last = nil
	s.mu.Unlock()
	s.logger.Debug("Session reset")
}

// Begin starts a submission cycle: every item goes back to queued and
// earlier results are discarded.
func (s *Session) Begin(jobDescription string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.NewStateError(errors.ErrCodeCycleInProgress, "An analysis is already in progress", nil)
	}
	if s.queue.Len() == 0 {
		return errors.NewValidationError(errors.ErrCodeEmptyQueue, "Please select at least one resume file", nil)
	}
	if strings.TrimSpace(jobDescription) == "" {
		return errors.NewValidationError(errors.ErrCodeMissingJobDescription, "Please enter a job description", nil)
	}

	s.queue.ResetForRetry()
	s.aggregator.Reset()
	s.running = true
	s.jobDescription = jobDescription
	s.last = nil

	s.logger.Info(fmt.Sprintf("Starting upload of %d files", s.queue.Len()),
		"concurrency", s.dispatcher.Ceiling())
	return nil
}

// Drain uploads everything queued in the current cycle
func (s *Session) Drain(ctx context.Context) error {
	s.mu.Lock()
	running, jd := s.running, s.jobDescription
	s.mu.Unlock()

	if !running {
		return errors.NewStateError(errors.ErrCodeNoActiveCycle, "No analysis in progress", nil)
	}
	return s.dispatcher.Drain(ctx, jd)
}

// Finalize closes the current cycle and returns its ranked summary
func (s *Session) Finalize() types.Summary {
	stats := s.queue.Stats()

	var failed []types.FailedResume
	for _, item := range s.queue.Snapshot() {
		if item.State == queue.StateFailed {
			failed = append(failed, types.FailedResume{
				SubjectID: item.ID,
				Filename:  item.Name,
				Error:     item.Error,
				Status:    string(item.State),
			})
		}
	}

	summary := s.aggregator.Finalize(results.Counts{
		Total:     stats.Total,
		Succeeded: stats.Done,
		Failed:    stats.Failed,
	}, results.FinalizeOptions{
		TopN:        s.topN,
		Resolve:     s.queue.Has,
		FailedItems: failed,
	})

	s.mu.Lock()
	s.running = false
	s.last = &summary
	s.mu.Unlock()

	if summary.AllFailed() {
		s.logger.Warn("All uploads failed", "total", summary.Total, "failed", summary.Failed)
	} else {
		s.logger.Info(fmt.Sprintf("Analysis complete: %d successful, %d failed", summary.Succeeded, summary.Failed),
			"ranked", len(summary.Ranked), "inconsistent", summary.Inconsistent)
	}
	return summary
}

// Submit runs a whole cycle. When nothing succeeded the summary is returned
// together with an ALL_UPLOADS_FAILED error.
func (s *Session) Submit(ctx context.Context, jobDescription string) (types.Summary, error) {
	if err := s.Begin(jobDescription); err != nil {
		return types.Summary{}, err
	}
	return s.complete(ctx)
}

// SubmitQueued uploads only the items still queued and ranks them together
// with the results this session already holds. Done and failed items are
// left as they are.
func (s *Session) SubmitQueued(ctx context.Context, jobDescription string) (types.Summary, error) {
	s.mu.Lock()
	switch {
	case s.running:
		s.mu.Unlock()
		return types.Summary{}, errors.NewStateError(errors.ErrCodeCycleInProgress, "An analysis is already in progress", nil)
	case s.queue.Stats().Queued == 0:
		s.mu.Unlock()
		return types.Summary{}, errors.NewValidationError(errors.ErrCodeEmptyQueue, "No new resume files to analyze", nil)
	case strings.TrimSpace(jobDescription) == "":
		s.mu.Unlock()
		return types.Summary{}, errors.NewValidationError(errors.ErrCodeMissingJobDescription, "Please enter a job description", nil)
	}
	s.running = true
	s.jobDescription = jobDescription
	s.mu.Unlock()

	return s.complete(ctx)
}

func (s *Session) complete(ctx context.Context) (types.Summary, error) {
	drainErr := s.Drain(ctx)
	summary := s.Finalize()
	if drainErr != nil {
		return summary, drainErr
	}
	if summary.AllFailed() {
		return summary, errors.NewServerError(errors.ErrCodeAllUploadsFailed,
			"All uploads failed. Please try again.", nil).WithContext("failed", summary.Failed)
	}
	return summary, nil
}

// Snapshot returns the queue items in insertion order
func (s *Session) Snapshot() []queue.Item {
	return s.queue.Snapshot()
}

// Get returns one queue item
func (s *Session) Get(id string) (queue.Item, bool) {
	return s.queue.Get(id)
}

func (s *Session) Stats() Stats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return Stats{
		Stats:       s.queue.Stats(),
		InFlight:    s.dispatcher.InFlight(),
		Concurrency: s.dispatcher.Ceiling(),
		Running:     running,
	}
}

// LastSummary returns the summary of the most recent finished cycle
func (s *Session) LastSummary() (types.Summary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return types.Summary{}, false
	}
	return *s.last, true
}
