package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/coherence/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	EnvFile string

	DB            string
	Session       string
	Policy        string
	CacheDir      string
	UpdateURL     string
	AppVersion    string
	SchemaVersion int
	MetricsFile   string
	SessionTTL    time.Duration

	// Config is resolved before any subcommand runs: environment first,
	// then flags that were set explicitly.
	Config config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the coherence CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "coherence",
		Short: "coherence - client update and cache-coherence manager",
		Long: `Keeps a client's persisted state consistent across application updates.

On boot it compares the stored version marker with the running build and,
when they differ, purges cached domain data while preserving credentials,
identity and preferences. It then arms a one-shot refresh signal so the
data layer bypasses intermediate caches.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return resolveConfig(cmd, opts)
		},
	}

	f := cmd.PersistentFlags()
	f.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	f.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	f.StringVar(&opts.EnvFile, "env-file", "", "load COHERENCE_* variables from a .env file")
	f.StringVar(&opts.DB, "db", "", "path to the SQLite state database (env COHERENCE_DB)")
	f.StringVar(&opts.Session, "session", "", "session namespace for session-scoped keys (env COHERENCE_SESSION)")
	f.StringVar(&opts.Policy, "policy", "", "classification policy file, .yaml or .cue (env COHERENCE_POLICY)")
	f.StringVar(&opts.CacheDir, "cache-dir", "", "directory whose sub-directories are named caches (env COHERENCE_CACHE_DIR)")
	f.StringVar(&opts.UpdateURL, "update-url", "", "update manifest URL checked after a purge (env COHERENCE_UPDATE_URL)")
	f.StringVar(&opts.AppVersion, "app-version", "", "override the running app version (env COHERENCE_APP_VERSION)")
	f.IntVar(&opts.SchemaVersion, "schema-version", 0, "override the running schema version (env COHERENCE_SCHEMA_VERSION)")
	f.DurationVar(&opts.SessionTTL, "session-ttl", 0, "end sessions idle longer than this on open, 0 disables (env COHERENCE_SESSION_TTL, default 24h)")
	f.StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit (env COHERENCE_METRICS_FILE)")

	cmd.AddCommand(NewBootCommand(opts))
	cmd.AddCommand(NewClearCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewRefreshCommand(opts))
	cmd.AddCommand(NewHeadersCommand(opts))
	cmd.AddCommand(NewEndSessionCommand(opts))

	return cmd
}

// resolveConfig loads the environment and applies explicitly set flags
// on top.
func resolveConfig(cmd *cobra.Command, opts *RootOptions) error {
	formatter := newFormatter(opts, cmd)

	cfg, err := config.Load(opts.EnvFile)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}

	flags := cmd.Flags()
	override := func(name string, dst *string, v string) {
		if flags.Changed(name) {
			*dst = v
		}
	}
	override("db", &cfg.DB, opts.DB)
	override("session", &cfg.Session, opts.Session)
	override("policy", &cfg.Policy, opts.Policy)
	override("cache-dir", &cfg.CacheDir, opts.CacheDir)
	override("update-url", &cfg.UpdateURL, opts.UpdateURL)
	override("app-version", &cfg.AppVersion, opts.AppVersion)
	override("metrics-file", &cfg.MetricsFile, opts.MetricsFile)
	if flags.Changed("schema-version") {
		cfg.SchemaVersion = opts.SchemaVersion
	}
	if flags.Changed("session-ttl") {
		cfg.SessionTTL = opts.SessionTTL
	}
	if flags.Changed("verbose") {
		cfg.Verbose = opts.Verbose
	}
	opts.Verbose = cfg.Verbose

	if err := cfg.Validate(); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}
	opts.Config = cfg
	return nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
