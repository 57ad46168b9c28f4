// File: cmd/history.go
package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/internal/config"
	"github.com/xkilldash9x/formpilot/internal/observability"
	"github.com/xkilldash9x/formpilot/internal/store"
)

// newHistoryCmd creates the `history` command, which lists recorded
// automation attempts.
func newHistoryCmd(provider storeProvider) *cobra.Command {
	var url string
	var limit int

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded form filling attempts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			return runHistory(ctx, observability.GetLogger(), cfg, url, limit, provider, cmd.OutOrStdout())
		},
	}

	historyCmd.Flags().StringVar(&url, "url", "", "Only list attempts for this URL")
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of attempts to list")
	return historyCmd
}

// runHistory contains the core, testable logic of the history command.
func runHistory(ctx context.Context, logger *zap.Logger, cfg config.Interface, url string, limit int, provider storeProvider, out io.Writer) error {
	storeService, cleanup, err := provider.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	attempts, err := storeService.RecentAttempts(ctx, url, limit)
	if err != nil {
		logger.Error("Failed to load attempts", zap.Error(err))
		return err
	}
	if attempts == nil {
		attempts = []store.Attempt{}
	}
	return writeJSON(out, "", attempts)
}
