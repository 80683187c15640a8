package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"resumerank/internal/config"
	"resumerank/internal/dispatch"
	"resumerank/internal/errors"
	"resumerank/internal/observability"
	"resumerank/internal/session"
)

// runtime bundles what every session-driving command needs
type runtime struct {
	cfg      *config.Config
	logger   *errors.Logger
	om       *observability.ObservabilityManager
	uploader *dispatch.HTTPUploader
	session  *session.Session
}

// clientFlags are overrides shared by submit, watch and serve
type clientFlags struct {
	endpoint    string
	concurrency int
	topN        int
}

func (f *clientFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.endpoint, "endpoint", "", "Analysis endpoint URL (overrides config)")
	cmd.Flags().IntVarP(&f.concurrency, "concurrency", "c", 0, "Maximum uploads in flight (overrides config)")
	cmd.Flags().IntVar(&f.topN, "top", 0, "Number of top candidates to detail (overrides config)")
}

// apply writes explicitly set flags into cfg and revalidates it
func (f *clientFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("endpoint") {
		cfg.Client.Endpoint = f.endpoint
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Dispatch.Concurrency = f.concurrency
	}
	if cmd.Flags().Changed("top") {
		cfg.Results.TopN = f.topN
	}
	return cfg.Validate()
}

// newRuntime wires observability, the endpoint breaker, the HTTP uploader
// and a fresh session
func newRuntime(cmd *cobra.Command) (*runtime, error) {
	cfg, err := getConfigFromContext(cmd.Context())
	if err != nil {
		return nil, err
	}
	logger, err := getLoggerFromContext(cmd.Context())
	if err != nil {
		return nil, err
	}

	om, err := observability.NewObservabilityManager(observability.GetObservabilityConfig(cfg, Version), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	metrics := om.GetMetrics()

	breaker := dispatch.NewEndpointBreaker("analysis-endpoint", cfg.Client.CircuitBreaker, logger, metrics)
	uploader := dispatch.NewHTTPUploader(dispatch.HTTPUploaderConfig{
		Endpoint:  cfg.Client.Endpoint,
		APIKey:    cfg.Client.APIKey,
		FileField: cfg.Client.FileField,
		JobField:  cfg.Client.JobField,
		Client:    &http.Client{Transport: om.Transport(nil)},
		Breaker:   breaker,
	})

	sess := session.New(cfg, uploader, session.Options{
		Logger:  logger,
		Metrics: metrics,
		Tracer:  om.Tracer("resumerank.dispatch"),
	})

	logger.Debug("Session ready",
		"endpoint", cfg.Client.Endpoint,
		"concurrency", cfg.Dispatch.Concurrency,
		"circuit_breaker", cfg.Client.CircuitBreaker.Enabled)

	return &runtime{cfg: cfg, logger: logger, om: om, uploader: uploader, session: sess}, nil
}

// close flushes telemetry
func (r *runtime) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.om.Shutdown(ctx); err != nil {
		r.logger.LogError(err, "Failed to shutdown observability")
	}
}
