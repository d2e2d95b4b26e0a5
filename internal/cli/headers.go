package cli

import (
	"context"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

// headerList prints as "Name: value" lines sorted by name.
type headerList map[string]string

func (h headerList) String() string {
	names := make([]string, 0, len(h))
	for k := range h {
		names = append(names, k)
	}
	sort.Strings(names)

	lines := make([]string, len(names))
	for i, k := range names {
		lines[i] = k + ": " + h[k]
	}
	return strings.Join(lines, "\n")
}

// NewHeadersCommand creates the headers command.
func NewHeadersCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "headers",
		Short: "Print the request headers for this session",
		Long: `Print the headers the data layer should attach to outbound requests.
After an update they bypass intermediate caches; otherwise only the app
version is sent.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(rootOpts, cmd, func(ctx context.Context, inv *invocation) error {
				return inv.formatter.Success(headerList(inv.mgr.NoCacheHeaders(ctx)))
			})
		},
	}
}
