package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// EndSessionResult is the output of the end-session command.
type EndSessionResult struct {
	Session string `json:"session"`
}

func (r EndSessionResult) String() string {
	return fmt.Sprintf("session %s ended", r.Session)
}

// NewEndSessionCommand creates the end-session command.
func NewEndSessionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "end-session",
		Short: "Discard every session-scoped key of this session",
		Long: `End the session named by --session. Its keys, including the refresh
signal and the no-cache window, are removed; durable keys are untouched.

Sessions idle longer than --session-ttl are also ended whenever the
database is opened.

Example:
  coherence end-session --db ./state.db --session tab-1`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(rootOpts, cmd, runEndSession)
		},
	}
}

func runEndSession(ctx context.Context, inv *invocation) error {
	id := inv.opts.Config.Session
	if err := inv.store.DeleteSession(ctx, id); err != nil {
		return inv.formatter.Fail(ExitFailure, ErrCodeStore, "cannot end session", err)
	}
	return inv.formatter.Success(EndSessionResult{Session: id})
}
