// Package dispatch drains the upload queue under a concurrency ceiling and
// hands each successful analysis to a result sink.
package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"resumerank/internal/errors"
	"resumerank/internal/observability"
	"resumerank/internal/queue"
	"resumerank/internal/types"
)

const (
	DefaultConcurrency   = 3
	DefaultUploadTimeout = 120 * time.Second
)

// Options configures a Dispatcher
type Options struct {
	Concurrency   int
	UploadTimeout time.Duration
	// Limiter, when set, paces upload launches
	Limiter *rate.Limiter
	Logger  *errors.Logger
	Metrics *observability.Metrics
	Tracer  trace.Tracer

	// OnResult receives the first result of every successful upload
	OnResult func(types.AnalysisResult)
	// OnInconsistent fires when a success response carried no result
	OnInconsistent func(item queue.Item)
	// OnChange fires after every item state transition
	OnChange func()
}

// Dispatcher launches uploads for queued items, never more than the
// configured ceiling at once.
type Dispatcher struct {
	queue    *queue.Queue
	uploader Uploader

	sem      *semaphore.Weighted
	ceiling  int
	inFlight atomic.Int64
	wake     chan struct{}
	timeout  time.Duration
	limiter  *rate.Limiter

	logger  *errors.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer

	onResult       func(types.AnalysisResult)
	onInconsistent func(queue.Item)
	onChange       func()
}

// New creates a dispatcher over q
func New(q *queue.Queue, uploader Uploader, opts Options) *Dispatcher {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = DefaultUploadTimeout
	}
	if opts.Logger == nil {
		opts.Logger = errors.Discard()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("resumerank/dispatch")
	}

	return &Dispatcher{
		queue:          q,
		uploader:       uploader,
		sem:            semaphore.NewWeighted(int64(opts.Concurrency)),
		ceiling:        opts.Concurrency,
		wake:           make(chan struct{}, 1),
		timeout:        opts.UploadTimeout,
		limiter:        opts.Limiter,
		logger:         opts.Logger,
		metrics:        opts.Metrics,
		tracer:         opts.Tracer,
		onResult:       opts.OnResult,
		onInconsistent: opts.OnInconsistent,
		onChange:       opts.OnChange,
	}
}

// Ceiling returns the maximum number of concurrent uploads
func (d *Dispatcher) Ceiling() int { return d.ceiling }

// InFlight returns the number of uploads currently running
func (d *Dispatcher) InFlight() int { return int(d.inFlight.Load()) }

// Idle reports whether nothing is queued and nothing is in flight
func (d *Dispatcher) Idle() bool {
	return d.inFlight.Load() == 0 && d.queue.Stats().Queued == 0
}

// Drain uploads every queued item, including items queued while the drain
// runs, and returns once the queue is idle. When ctx is cancelled no further
// uploads start; Drain waits for running uploads and returns ctx.Err().
func (d *Dispatcher) Drain(ctx context.Context, jobDescription string) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		for _, item := range d.queue.Queued() {
			if err := d.acquire(ctx); err != nil {
				wg.Wait()
				return err
			}
			if !d.queue.MarkUploading(item.ID) {
				// removed or claimed since the snapshot
				d.sem.Release(1)
				continue
			}

			d.inFlight.Add(1)
			d.changed()
			wg.Add(1)
			go func(item queue.Item) {
				defer wg.Done()
				defer d.release()
				d.upload(ctx, item, jobDescription)
			}(item)
		}

		if err := ctx.Err(); err != nil {
			wg.Wait()
			return err
		}

		if d.queue.Stats().Queued > 0 {
			continue
		}
		if d.inFlight.Load() == 0 {
			return nil
		}

		select {
		case <-d.wake:
		case <-ctx.Done():
		}
	}
}

// Notify wakes a running drain, e.g. after new items were queued
func (d *Dispatcher) Notify() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) acquire(ctx context.Context) error {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		d.sem.Release(1)
		return err
	}
	if d.limiter == nil {
		return nil
	}

	if d.limiter.Tokens() < 1 {
		d.metrics.RateLimitHit(ctx, "client")
		d.logger.Debug("Upload launch throttled by client rate limit")
	}
	if err := d.limiter.Wait(ctx); err != nil {
		d.sem.Release(1)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (d *Dispatcher) release() {
	d.sem.Release(1)
	d.inFlight.Add(-1)
	d.Notify()
}

func (d *Dispatcher) changed() {
	if d.onChange != nil {
		d.onChange()
	}
}

func (d *Dispatcher) upload(ctx context.Context, item queue.Item, jobDescription string) {
	start := time.Now()
	d.metrics.UploadStarted(ctx)

	ctx, span := d.tracer.Start(ctx, "dispatch.upload", trace.WithAttributes(
		attribute.String("item.id", item.ID),
		attribute.String("file.name", item.Name),
		attribute.Int64("file.size", item.Size),
	))
	defer span.End()

	uploadCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	d.logger.Debug("Upload started", "item_id", item.ID, "file", item.Name, "in_flight", d.inFlight.Load())

	resp, err := d.uploader.Upload(uploadCtx, UploadRequest{
		ItemID:         item.ID,
		Source:         item.Payload,
		JobDescription: jobDescription,
		Progress: func(pct int) {
			if d.queue.SetProgress(item.ID, pct) {
				d.changed()
			}
		},
	})

	outcome := d.complete(item, resp, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errors.MessageOf(err))
	}
	span.SetAttributes(attribute.String("upload.outcome", outcome))
	d.metrics.UploadFinished(ctx, outcome, time.Since(start), item.Size)
}

// complete applies the upload outcome to the queue and returns its label
func (d *Dispatcher) complete(item queue.Item, resp *types.AnalyzeResponse, err error) string {
	defer d.changed()

	if err != nil {
		if !d.queue.MarkFailed(item.ID, errors.MessageOf(err)) {
			d.orphan(item)
			return observability.OutcomeOrphaned
		}
		d.logger.LogError(err, "Upload failed", "item_id", item.ID, "file", item.Name)
		return observability.OutcomeFailed
	}

	if resp == nil || len(resp.Results) == 0 {
		if !d.queue.MarkDone(item.ID) {
			d.orphan(item)
			return observability.OutcomeOrphaned
		}
		d.logger.Warn("Analysis response carried no result", "item_id", item.ID, "file", item.Name)
		d.metrics.Inconsistency(context.Background())
		if d.onInconsistent != nil {
			d.onInconsistent(item)
		}
		return observability.OutcomeInconsistent
	}

	result := resp.Results[0]
	result.SubjectID = item.ID
	result.Sequence = item.Seq
	if result.Filename == "" {
		result.Filename = item.Name
	}

	if !d.queue.MarkDone(item.ID) {
		d.orphan(item)
		return observability.OutcomeOrphaned
	}
	if d.onResult != nil {
		d.onResult(result)
	}
	d.logger.Debug("Upload completed", "item_id", item.ID, "file", item.Name,
		"fit", result.OverallFitPercentage)
	return observability.OutcomeSucceeded
}

func (d *Dispatcher) orphan(item queue.Item) {
	d.logger.Warn("Dropping result for item no longer in the queue", "item_id", item.ID, "file", item.Name)
}
