package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/config"
	"github.com/xkilldash9x/formpilot/internal/observability"
)

// newDetectCmd creates the `detect` command, which lists the fields of a
// form without filling it.
func newDetectCmd(runners runnerProvider) *cobra.Command {
	var method, output string

	detectCmd := &cobra.Command{
		Use:   "detect <url>",
		Short: "Print the form fields detected at a URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			return runDetect(ctx, observability.GetLogger(), cfg, args[0], schemas.Strategy(method), output, runners, cmd.OutOrStdout())
		},
	}

	detectCmd.Flags().StringVarP(&method, "method", "m", "", "Detection method: dom, visual, tab or hybrid")
	detectCmd.Flags().StringVarP(&output, "output", "o", "", "Write the JSON field list to a file instead of stdout")
	return detectCmd
}

func runDetect(
	ctx context.Context,
	logger *zap.Logger,
	cfg config.Interface,
	url string,
	method schemas.Strategy,
	output string,
	runners runnerProvider,
	out io.Writer,
) error {
	runner, cleanup, err := runners.Create(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize automation: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	fields, err := runner.Inspect(ctx, url, method)
	if err != nil {
		return err
	}
	if fields == nil {
		fields = []schemas.DetectedField{}
	}
	logger.Info("Detection finished", zap.String("url", observability.RedactURL(url)), zap.Int("fields", len(fields)))
	return writeJSON(out, output, fields)
}
