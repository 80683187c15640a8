package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"resumerank/internal/config"
)

// Upload outcomes recorded on the uploads counter
const (
	OutcomeSucceeded    = "succeeded"
	OutcomeFailed       = "failed"
	OutcomeInconsistent = "inconsistent"
	OutcomeOrphaned     = "orphaned"
)

// Metrics holds all custom metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// upload metrics
	UploadsTotal    metric.Int64Counter
	UploadDuration  metric.Float64Histogram
	UploadBytes     metric.Int64Histogram
	UploadsInFlight metric.Int64UpDownCounter

	// queue and aggregation metrics
	QueueAdmissions   metric.Int64Counter
	DuplicatesSkipped metric.Int64Counter
	Inconsistencies   metric.Int64Counter

	// infrastructure metrics
	RateLimitHits      metric.Int64Counter
	BreakerTransitions metric.Int64Counter

	toggles config.CustomMetricsConfig
}

// NewMetrics creates every instrument on meter
func NewMetrics(meter metric.Meter, toggles config.CustomMetricsConfig) (*Metrics, error) {
	m := &Metrics{toggles: toggles}

	if err := m.createUploadMetrics(meter); err != nil {
		return nil, err
	}
	if err := m.createQueueMetrics(meter); err != nil {
		return nil, err
	}
	if err := m.createInfrastructureMetrics(meter); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) createUploadMetrics(meter metric.Meter) error {
	var err error

	m.UploadsTotal, err = meter.Int64Counter(
		"resumerank_uploads_total",
		metric.WithDescription("Total number of finished uploads by outcome"),
	)
	if err != nil {
		return fmt.Errorf("failed to create uploads total metric: %w", err)
	}

	m.UploadDuration, err = meter.Float64Histogram(
		"resumerank_upload_duration_seconds",
		metric.WithDescription("Time from upload launch to response"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create upload duration metric: %w", err)
	}

	m.UploadBytes, err = meter.Int64Histogram(
		"resumerank_upload_bytes",
		metric.WithDescription("Size of uploaded files"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return fmt.Errorf("failed to create upload bytes metric: %w", err)
	}

	m.UploadsInFlight, err = meter.Int64UpDownCounter(
		"resumerank_uploads_in_flight",
		metric.WithDescription("Uploads currently holding a concurrency slot"),
	)
	if err != nil {
		return fmt.Errorf("failed to create in-flight metric: %w", err)
	}

	return nil
}

func (m *Metrics) createQueueMetrics(meter metric.Meter) error {
	var err error

	m.QueueAdmissions, err = meter.Int64Counter(
		"resumerank_queue_admissions_total",
		metric.WithDescription("Files offered to the queue, by result code"),
	)
	if err != nil {
		return fmt.Errorf("failed to create queue admissions metric: %w", err)
	}

	m.DuplicatesSkipped, err = meter.Int64Counter(
		"resumerank_duplicates_skipped_total",
		metric.WithDescription("Files skipped because identical content was already queued"),
	)
	if err != nil {
		return fmt.Errorf("failed to create duplicates metric: %w", err)
	}

	m.Inconsistencies, err = meter.Int64Counter(
		"resumerank_aggregation_inconsistencies_total",
		metric.WithDescription("Successful uploads whose response carried no result"),
	)
	if err != nil {
		return fmt.Errorf("failed to create inconsistency metric: %w", err)
	}

	return nil
}

func (m *Metrics) createInfrastructureMetrics(meter metric.Meter) error {
	var err error

	m.RateLimitHits, err = meter.Int64Counter(
		"resumerank_rate_limit_hits_total",
		metric.WithDescription("Total number of rate limit hits"),
	)
	if err != nil {
		return fmt.Errorf("failed to create rate limit hits metric: %w", err)
	}

	m.BreakerTransitions, err = meter.Int64Counter(
		"resumerank_circuit_breaker_transitions_total",
		metric.WithDescription("Circuit breaker state changes"),
	)
	if err != nil {
		return fmt.Errorf("failed to create circuit breaker metric: %w", err)
	}

	return nil
}

// UploadStarted marks a slot as taken
func (m *Metrics) UploadStarted(ctx context.Context) {
	if m == nil || !m.toggles.Uploads.Enabled {
		return
	}
	m.UploadsInFlight.Add(ctx, 1)
}

// UploadFinished records one completed upload attempt
func (m *Metrics) UploadFinished(ctx context.Context, outcome string, duration time.Duration, size int64) {
	if m == nil || !m.toggles.Uploads.Enabled {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))

	m.UploadsInFlight.Add(ctx, -1)
	m.UploadsTotal.Add(ctx, 1, attrs)
	if m.toggles.Uploads.TrackDuration {
		m.UploadDuration.Record(ctx, duration.Seconds(), attrs)
	}
	if m.toggles.Uploads.TrackSizes {
		m.UploadBytes.Record(ctx, size, attrs)
	}
}

// QueueOutcome records the result of one Add; code is empty on success
func (m *Metrics) QueueOutcome(ctx context.Context, code string) {
	if m == nil || !m.toggles.Queue.Enabled {
		return
	}
	if code == "" {
		code = "ADDED"
	}
	m.QueueAdmissions.Add(ctx, 1, metric.WithAttributes(attribute.String("code", code)))
	if code == "DUPLICATE_FILE" {
		m.DuplicatesSkipped.Add(ctx, 1)
	}
}

// Inconsistency records a success response that carried no result
func (m *Metrics) Inconsistency(ctx context.Context) {
	if m == nil || !m.toggles.Queue.Enabled {
		return
	}
	m.Inconsistencies.Add(ctx, 1)
}

// RateLimitHit records a throttled request; side is "client" or "server"
func (m *Metrics) RateLimitHit(ctx context.Context, side string, attributes ...attribute.KeyValue) {
	if m == nil || !m.toggles.Infrastructure.Enabled || !m.toggles.Infrastructure.TrackRateLimits {
		return
	}
	attrs := append([]attribute.KeyValue{attribute.String("side", side)}, attributes...)
	m.RateLimitHits.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// BreakerTransition records a circuit breaker state change
func (m *Metrics) BreakerTransition(ctx context.Context, name, from, to string) {
	if m == nil || !m.toggles.Infrastructure.Enabled || !m.toggles.Infrastructure.TrackCircuitBreaker {
		return
	}
	m.BreakerTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("name", name),
		attribute.String("from", from),
		attribute.String("to", to),
	))
}
