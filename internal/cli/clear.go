package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/roach88/coherence/internal/boot"
)

// NewClearCommand creates the clear command.
func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Run a full cache clear regardless of version",
		Long: `Run the same reconciliation pass and cache purge as a version change,
without comparing markers. Preserved keys survive.

Example:
  coherence clear --db ./state.db --cache-dir ./caches`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(rootOpts, cmd, runClear)
		},
	}
}

func runClear(ctx context.Context, inv *invocation) error {
	err := inv.mgr.ManualCacheClear(ctx)
	switch {
	case errors.Is(err, boot.ErrMigrationBusy):
		return inv.formatter.Fail(ExitFailure, ErrCodeBusy, "cache clear skipped", err)
	case err != nil:
		return inv.formatter.Fail(ExitFailure, ErrCodeAbort, "cache clear aborted", err)
	}

	rec, ok := inv.mgr.LastRecord()
	if !ok {
		return inv.formatter.Fail(ExitFailure, ErrCodeAbort, "cache clear aborted",
			errors.New("no reconciliation record"))
	}
	return inv.formatter.Success(summarize(rec))
}
