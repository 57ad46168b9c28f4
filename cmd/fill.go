package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/config"
	"github.com/xkilldash9x/formpilot/internal/observability"
	"github.com/xkilldash9x/formpilot/internal/profile"
)

type fillOptions struct {
	profilePath   string
	method        string
	submit        bool
	output        string
	screenshotDir string
}

// newFillCmd creates and configures the `fill` command.
func newFillCmd(runners runnerProvider, stores storeProvider) *cobra.Command {
	var opts fillOptions

	fillCmd := &cobra.Command{
		Use:   "fill <url>",
		Short: "Detect and fill the form at a URL with a candidate profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("submit") {
				cfg.SetAutomationSubmit(opts.submit)
			}
			if opts.method != "" {
				cfg.SetAutomationDetectionMethod(opts.method)
			}
			return runFill(ctx, observability.GetLogger(), cfg, args[0], opts, runners, stores, cmd.OutOrStdout())
		},
	}

	fillCmd.Flags().StringVarP(&opts.profilePath, "profile", "p", "", "Candidate profile file, YAML or JSON (required)")
	_ = fillCmd.MarkFlagRequired("profile")
	fillCmd.Flags().StringVarP(&opts.method, "method", "m", "", "Detection method: dom, visual, tab or hybrid")
	fillCmd.Flags().BoolVar(&opts.submit, "submit", false, "Submit the form after filling")
	fillCmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write the JSON result to a file instead of stdout")
	fillCmd.Flags().StringVar(&opts.screenshotDir, "screenshot-dir", "", "Save checkpoint screenshots as PNG files in this directory")
	return fillCmd
}

// runFill contains the core, testable logic of the fill command.
func runFill(
	ctx context.Context,
	logger *zap.Logger,
	cfg config.Interface,
	url string,
	opts fillOptions,
	runners runnerProvider,
	stores storeProvider,
	out io.Writer,
) error {
	p, err := profile.Load(opts.profilePath)
	if err != nil {
		return err
	}
	method, err := schemas.ParseStrategy(cfg.Automation().DetectionMethod)
	if err != nil {
		return err
	}

	task := schemas.FillTask{
		ID:              uuid.NewString(),
		URL:             url,
		Profile:         p,
		DetectionMethod: method,
		Submit:          cfg.Automation().Submit,
	}
	logger.Info("Starting fill task", observability.TaskFields(task)...)

	runner, cleanup, err := runners.Create(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize automation: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	result, runErr := runner.Run(ctx, task)
	if result == nil {
		return runErr
	}

	recorder, closeRecorder := openRecorder(ctx, cfg, stores, logger)
	defer closeRecorder()
	if recorder != nil {
		if err := recorder.RecordResult(context.WithoutCancel(ctx), result); err != nil {
			logger.Error("Failed to record result", zap.Error(err))
		}
	}

	if paths, err := saveScreenshots(opts.screenshotDir, result); err != nil {
		logger.Warn("Failed to save screenshots", zap.Error(err))
	} else if len(paths) > 0 {
		logger.Info("Screenshots saved", zap.Strings("paths", paths))
	}

	if err := writeJSON(out, opts.output, result); err != nil {
		return err
	}
	return runErr
}
