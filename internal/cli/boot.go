package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/coherence/internal/clock"
	"github.com/roach88/coherence/internal/reconcile"
	"github.com/roach88/coherence/internal/version"
)

// PassSummary is the printable form of a reconciliation record.
type PassSummary struct {
	Reason             string          `json:"reason"`
	From               *version.Marker `json:"from,omitempty"`
	To                 version.Marker  `json:"to"`
	ClearedKeys        []string        `json:"cleared_keys"`
	ClearedSessionKeys []string        `json:"cleared_session_keys"`
	Preserved          int             `json:"preserved"`
	Failures           []string        `json:"failures,omitempty"`
	Timestamp          string          `json:"timestamp"`
}

func summarize(rec reconcile.Record) *PassSummary {
	s := &PassSummary{
		Reason:             rec.Reason,
		From:               rec.Previous,
		To:                 rec.Current,
		ClearedKeys:        nonNil(rec.ClearedKeys),
		ClearedSessionKeys: nonNil(rec.ClearedSessionKeys),
		Preserved:          rec.Preserved,
		Timestamp:          clock.Format(rec.Timestamp),
	}
	for _, f := range rec.Failures {
		s.Failures = append(s.Failures, f.Error())
	}
	return s
}

func (s *PassSummary) String() string {
	var b strings.Builder
	from := "none"
	if s.From != nil {
		from = s.From.String()
	}
	fmt.Fprintf(&b, "migrated %s -> %s (%s)\n", from, s.To, s.Reason)
	fmt.Fprintf(&b, "cleared %d durable and %d session keys, preserved %d",
		len(s.ClearedKeys), len(s.ClearedSessionKeys), s.Preserved)
	for _, f := range s.Failures {
		fmt.Fprintf(&b, "\nfailed: %s", f)
	}
	return b.String()
}

// BootResult is the output of the boot command.
type BootResult struct {
	Migrated bool           `json:"migrated"`
	Current  version.Marker `json:"current"`
	Pass     *PassSummary   `json:"pass,omitempty"`
}

func (r BootResult) String() string {
	if !r.Migrated {
		return fmt.Sprintf("no migration needed (%s)", r.Current)
	}
	return r.Pass.String()
}

// NewBootCommand creates the boot command.
func NewBootCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "boot",
		Short: "Run the boot-time version check",
		Long: `Compare the stored version marker with the running build and reconcile
persisted state if they differ.

A migration deletes cached domain data, keeps credentials, identity and
preferences, purges disposable named caches in --cache-dir, pings
--update-url and arms the refresh signal for the next fetch.

Example:
  coherence boot --db ./state.db --session tab-1
  coherence boot --db ./state.db --app-version 3.9.0 --schema-version 12 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(rootOpts, cmd, runBoot)
		},
	}
}

func runBoot(ctx context.Context, inv *invocation) error {
	res := BootResult{
		Migrated: inv.mgr.InitVersionCheck(ctx),
		Current:  inv.mgr.Current(),
	}
	if rec, ok := inv.mgr.LastRecord(); ok && res.Migrated {
		res.Pass = summarize(rec)
	}
	return inv.formatter.Success(res)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
