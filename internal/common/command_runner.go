package common

import (
	"context"
	"io"

	"resumerank/internal/errors"
	"resumerank/internal/session"
)

// SubmissionConfig describes one CLI submission
type SubmissionConfig struct {
	CommandConfig
	Paths              []string
	JobDescriptionFile string
	MaxJobDescription  int64
	// Report receives the formatted add report; nil discards it
	Report io.Writer
}

// RunSubmission collects the given files into the session, runs one analysis
// cycle and writes the ranked summary. The summary is written even when
// every upload failed.
func RunSubmission(ctx context.Context, logger *errors.Logger, sess *session.Session, cfg SubmissionConfig, out *OutputHandler) error {
	if logger == nil {
		logger = errors.Discard()
	}
	fileProcessor := NewFileProcessor(logger)

	jobDescription, err := fileProcessor.ReadJobDescription(cfg.JobDescriptionFile, cfg.MaxJobDescription)
	if err != nil {
		return err
	}

	sources, err := fileProcessor.CollectSources(cfg.Paths...)
	if err != nil {
		return err
	}

	report := sess.AddFiles(sources)
	if cfg.Report != nil {
		reportFormat := cfg.OutputFormat
		if reportFormat != "text" && reportFormat != "markdown" {
			reportFormat = "text"
		}
		reportHandler := NewOutputHandlerTo(cfg.Report, logger)
		if err := reportHandler.HandleOutput(report, CommandConfig{OutputFormat: reportFormat}); err != nil {
			return err
		}
	}

	summary, submitErr := sess.Submit(ctx, jobDescription)
	if submitErr != nil && !errors.HasCode(submitErr, errors.ErrCodeAllUploadsFailed) {
		return submitErr
	}

	if err := out.HandleOutput(summary, cfg.CommandConfig); err != nil {
		return err
	}
	return submitErr
}
