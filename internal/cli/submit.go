package cli

import (
	"github.com/spf13/cobra"

	"resumerank/internal/common"
)

var submitCmd = &cobra.Command{
	Use:   "submit FILE|DIR... --job FILE",
	Short: "Analyze resume files against a job description and rank them",
	Long: `Queue the given resume files (directories contribute their top-level
files), upload them to the analysis service a few at a time and print the
ranked candidates.

Duplicate files are uploaded once. Files that are too large or not PDF or
image files are reported and skipped. Use "-" as the job file to read the job
description from stdin.`,
	Args: cobra.MinimumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfigFromContext(cmd.Context())
		if err != nil {
			return err
		}
		format, err := common.ResolveOutputFormat(submitConfig.OutputFormat, cfg.App.DefaultFormat, cfg.App.SupportedFormats)
		if err != nil {
			return err
		}
		submitConfig.OutputFormat = format
		return submitFlags.apply(cmd, cfg)
	},
	RunE: runSubmit,
}

var (
	submitConfig common.SubmissionConfig
	submitFlags  clientFlags
)

func init() {
	submitCmd.Flags().StringVarP(&submitConfig.JobDescriptionFile, "job", "j", "", "Job description file, or - for stdin")
	submitCmd.Flags().StringVarP(&submitConfig.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	submitCmd.Flags().StringVar(&submitConfig.OutputFormat, "format", "", "Output format: json, text, markdown or yaml")
	submitFlags.register(submitCmd)
	_ = submitCmd.MarkFlagRequired("job")

	// Add completion for format flag
	_ = submitCmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg, err := getConfigFromContext(cmd.Context())
		if err != nil {
			return []string{}, cobra.ShellCompDirectiveError
		}
		return common.GetSupportedFormats(cfg.App.SupportedFormats), cobra.ShellCompDirectiveNoFileComp
	})
}

func runSubmit(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	cfg := submitConfig
	cfg.Paths = args
	cfg.MaxJobDescription = rt.cfg.App.MaxJobDescriptionSize
	cfg.Report = cmd.ErrOrStderr()

	return common.RunSubmission(cmd.Context(), rt.logger, rt.session, cfg,
		common.NewOutputHandlerTo(cmd.OutOrStdout(), rt.logger))
}
