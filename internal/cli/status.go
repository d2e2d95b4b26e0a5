package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show stored markers and key classification",
		Long: `Show the running and stored version markers, what a boot would decide,
and how the stored keys classify. Nothing is written.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(rootOpts, cmd, func(ctx context.Context, inv *invocation) error {
				return inv.formatter.Success(inv.mgr.Status(ctx))
			})
		},
	}
}
