package dispatch

import (
	"context"
	stderrors "errors"

	"github.com/sony/gobreaker/v2"

	"resumerank/internal/config"
	"resumerank/internal/errors"
	"resumerank/internal/observability"
	"resumerank/internal/types"
)

// EndpointBreaker guards the analysis endpoint with the circuit breaker
// pattern. A nil *EndpointBreaker passes every call straight through.
type EndpointBreaker struct {
	cb *gobreaker.CircuitBreaker[*types.AnalyzeResponse]
}

// NewEndpointBreaker returns nil when the breaker is disabled
func NewEndpointBreaker(name string, cfg config.CircuitBreakerConfig, logger *errors.Logger, metrics *observability.Metrics) *EndpointBreaker {
	if !cfg.Enabled {
		return nil
	}
	if logger == nil {
		logger = errors.Discard()
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests || counts.Requests == 0 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isClientRejection(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
				"max_requests", cfg.MaxRequests,
				"failure_threshold", cfg.FailureThreshold)
			metrics.BreakerTransition(context.Background(), name, from.String(), to.String())
		},
	}

	return &EndpointBreaker{
		cb: gobreaker.NewCircuitBreaker[*types.AnalyzeResponse](settings),
	}
}

// Execute runs fn under breaker protection. An open breaker fails fast with
// a CIRCUIT_OPEN network error.
func (b *EndpointBreaker) Execute(fn func() (*types.AnalyzeResponse, error)) (*types.AnalyzeResponse, error) {
	if b == nil || b.cb == nil {
		return fn()
	}

	resp, err := b.cb.Execute(fn)
	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, errors.NewNetworkError(errors.ErrCodeCircuitOpen,
			"Analysis service temporarily unavailable", err)
	}
	return resp, err
}

// GetStats returns circuit breaker statistics
func (b *EndpointBreaker) GetStats() map[string]any {
	if b == nil || b.cb == nil {
		return map[string]any{
			"enabled": false,
		}
	}

	return map[string]any{
		"name":    b.cb.Name(),
		"state":   b.cb.State().String(),
		"counts":  b.cb.Counts(),
		"enabled": true,
	}
}

// IsHealthy returns true if the circuit breaker is in closed state
func (b *EndpointBreaker) IsHealthy() bool {
	if b == nil || b.cb == nil {
		return true
	}
	return b.cb.State() == gobreaker.StateClosed
}
