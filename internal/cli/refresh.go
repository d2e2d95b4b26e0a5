package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// RefreshResult is the output of the refresh command.
type RefreshResult struct {
	ForceRefresh bool `json:"force_refresh"`
}

func (r RefreshResult) String() string {
	return fmt.Sprintf("force refresh: %t", r.ForceRefresh)
}

// NewRefreshCommand creates the refresh command.
func NewRefreshCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Consume the one-shot refresh signal",
		Long: `Report whether the data layer should bypass its caches, clearing the
signal. Only the first call after a migration reports true.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(rootOpts, cmd, func(ctx context.Context, inv *invocation) error {
				return inv.formatter.Success(RefreshResult{ForceRefresh: inv.mgr.ShouldForceRefresh(ctx)})
			})
		},
	}
}
