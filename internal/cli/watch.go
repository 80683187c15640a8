package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"resumerank/internal/common"
	"resumerank/internal/errors"
	"resumerank/internal/intake"
	"resumerank/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch DIR --job FILE",
	Short: "Watch an inbox directory and rank resumes as they arrive",
	Long: `Watch a directory for new resume files. Every debounced batch of new or
modified files is queued and uploaded, and the ranking of all candidates seen
so far is printed again. Files already analyzed are not uploaded twice.

Stop with Ctrl+C.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfigFromContext(cmd.Context())
		if err != nil {
			return err
		}
		format, err := common.ResolveOutputFormat(watchConfig.OutputFormat, cfg.App.DefaultFormat, cfg.App.SupportedFormats)
		if err != nil {
			return err
		}
		watchConfig.OutputFormat = format

		if cmd.Flags().Changed("debounce") {
			cfg.Watch.DebounceDelay = watchDebounce
		}
		if cmd.Flags().Changed("process-existing") {
			cfg.Watch.ProcessExisting = watchProcessExisting
		}
		return watchFlags.apply(cmd, cfg)
	},
	RunE: runWatch,
}

var (
	watchConfig          common.SubmissionConfig
	watchFlags           clientFlags
	watchDebounce        time.Duration
	watchProcessExisting bool
)

func init() {
	watchCmd.Flags().StringVarP(&watchConfig.JobDescriptionFile, "job", "j", "", "Job description file")
	watchCmd.Flags().StringVarP(&watchConfig.OutputFile, "output", "o", "", "Output file path, rewritten after every batch (default: stdout)")
	watchCmd.Flags().StringVar(&watchConfig.OutputFormat, "format", "", "Output format: json, text, markdown or yaml")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", time.Second, "Quiet period before a batch is processed (overrides config)")
	watchCmd.Flags().BoolVar(&watchProcessExisting, "process-existing", true, "Analyze files already in the directory (overrides config)")
	watchFlags.register(watchCmd)
	_ = watchCmd.MarkFlagRequired("job")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	fp := common.NewFileProcessor(rt.logger)
	jobDescription, err := fp.ReadJobDescription(watchConfig.JobDescriptionFile, rt.cfg.App.MaxJobDescriptionSize)
	if err != nil {
		return err
	}

	batches := make(chan []string, 16)
	inbox, err := watch.NewInboxWatcher(args[0], rt.cfg.Watch.DebounceDelay, func(paths []string) {
		select {
		case batches <- paths:
		case <-ctx.Done():
		}
	}, rt.logger)
	if err != nil {
		return err
	}
	if err := inbox.Start(rt.cfg.Watch.ProcessExisting); err != nil {
		return err
	}
	defer func() {
		if err := inbox.Stop(); err != nil {
			rt.logger.LogError(err, "Failed to stop inbox watcher")
		}
	}()

	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s for resumes (Ctrl+C to stop)\n", inbox.Dir())

	out := common.NewOutputHandlerTo(cmd.OutOrStdout(), rt.logger)
	report := common.NewOutputHandlerTo(cmd.ErrOrStderr(), rt.logger)

	for {
		select {
		case <-ctx.Done():
			return nil
		case paths := <-batches:
			if err := processInboxBatch(ctx, rt, fp, report, out, jobDescription, paths); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				rt.logger.LogError(err, "Failed to process inbox batch", "files", len(paths))
			}
		}
	}
}

// processInboxBatch queues the files of one batch and, when any were new,
// uploads them and prints the updated ranking
func processInboxBatch(ctx context.Context, rt *runtime, fp *common.FileProcessor, report, out *common.OutputHandler, jobDescription string, paths []string) error {
	sources := make([]intake.Source, 0, len(paths))
	for _, path := range paths {
		found, err := fp.CollectSources(path)
		if err != nil {
			// the file may have been moved away again before the batch fired
			rt.logger.Debug("Skipping inbox file", "path", path, "error", err)
			continue
		}
		sources = append(sources, found...)
	}
	if len(sources) == 0 {
		return nil
	}

	added := rt.session.AddFiles(sources)
	if err := report.HandleOutput(added, common.CommandConfig{OutputFormat: "text"}); err != nil {
		return err
	}
	if len(added.Added) == 0 {
		return nil
	}

	summary, err := rt.session.SubmitQueued(ctx, jobDescription)
	if err != nil && !errors.HasCode(err, errors.ErrCodeAllUploadsFailed) {
		return err
	}
	return out.HandleOutput(summary, watchConfig.CommandConfig)
}
