package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/coherence/internal/boot"
	"github.com/roach88/coherence/internal/cachepurge"
	"github.com/roach88/coherence/internal/classify"
	"github.com/roach88/coherence/internal/metrics"
	"github.com/roach88/coherence/internal/store"
)

// invocation holds what one command needs once the database is open.
type invocation struct {
	opts      *RootOptions
	formatter *OutputFormatter
	logger    *slog.Logger
	store     *store.Store
	metrics   *metrics.Metrics
	mgr       *boot.Manager
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// newLogger builds the text handler every command logs through.
func newLogger(verbose bool, w io.Writer) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel}))
}

// openInvocation loads the policy, opens the database and builds the manager.
// Errors are already reported through the formatter.
func openInvocation(opts *RootOptions, cmd *cobra.Command) (*invocation, error) {
	cfg := opts.Config
	formatter := newFormatter(opts, cmd)
	logger := newLogger(opts.Verbose, cmd.ErrOrStderr())

	classifier, err := loadClassifier(cfg.Policy)
	if err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodePolicy, "cannot load classification policy", err)
	}

	formatter.VerboseLog("Opening %s (session %s)", cfg.DB, cfg.Session)
	st, err := store.Open(cfg.DB)
	if err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeStore, "cannot open database", err)
	}

	if cfg.SessionTTL > 0 {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		n, err := st.PruneSessions(ctx, time.Now().Add(-cfg.SessionTTL))
		if err != nil {
			logger.Warn("cannot prune idle sessions", "error", err)
		} else if n > 0 {
			logger.Debug("pruned idle sessions", "rows", n, "ttl", cfg.SessionTTL)
		}
	}

	m := metrics.New()
	bootOpts := boot.Options{
		Provider:     st.Provider(cfg.Session),
		Classifier:   classifier,
		Current:      cfg.Marker(),
		Logger:       logger,
		Metrics:      m,
		UpdateURL:    cfg.UpdateURL,
		UpdateClient: &http.Client{Timeout: cfg.UpdateTimeout},
		LockTTL:      cfg.LockTTL,
	}
	if cfg.CacheDir != "" {
		bootOpts.Caches = cachepurge.DirStorage{Root: cfg.CacheDir}
	}

	mgr, err := boot.New(bootOpts)
	if err != nil {
		_ = st.Close()
		return nil, formatter.Fail(ExitCommandError, ErrCodePolicy, "cannot start manager", err)
	}

	return &invocation{
		opts:      opts,
		formatter: formatter,
		logger:    logger,
		store:     st,
		metrics:   m,
		mgr:       mgr,
	}, nil
}

func loadClassifier(path string) (*classify.Classifier, error) {
	if path == "" {
		return classify.New(classify.DefaultPolicy())
	}
	return classify.Load(path)
}

// close waits for background purges, writes the metrics file and closes
// the database. A purge still running after the update timeout is
// abandoned and reported as a failure.
func (r *invocation) close(ctx context.Context) error {
	var errs []error

	waitCtx, cancel := context.WithTimeout(ctx, r.opts.Config.UpdateTimeout)
	defer cancel()
	if err := r.mgr.Wait(waitCtx); err != nil {
		r.logger.Warn("background cache purge did not finish", "error", err)
		errs = append(errs, WrapExitError(ExitFailure, "background cache purge did not finish", err))
	}

	if path := r.opts.Config.MetricsFile; path != "" {
		if err := r.metrics.WriteTextfile(path); err != nil {
			r.logger.Warn("cannot write metrics", "path", path, "error", err)
			errs = append(errs, WrapExitError(ExitFailure, "cannot write metrics", err))
		}
	}

	if err := r.store.Close(); err != nil {
		r.logger.Error("error closing database", "error", err)
		errs = append(errs, WrapExitError(ExitFailure, "cannot close database", err))
	}

	return errors.Join(errs...)
}

// run opens an invocation, calls fn, and always closes it. Close
// failures are logged; they become the command's error only when fn
// succeeded.
func run(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, r *invocation) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	r, err := openInvocation(opts, cmd)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := r.close(ctx); err == nil {
			err = closeErr
		}
	}()

	return fn(ctx, r)
}
