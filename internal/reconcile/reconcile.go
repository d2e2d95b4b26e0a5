package reconcile

import (
	"context"
	"log/slog"
	"sort"

	"github.com/roach88/coherence/internal/classify"
	"github.com/roach88/coherence/internal/clock"
	"github.com/roach88/coherence/internal/kv"
	"github.com/roach88/coherence/internal/version"
)

// Config wires a Reconciler.
type Config struct {
	Provider   kv.Provider
	Classifier *classify.Classifier

	// Clock stamps the update timestamp. Defaults to clock.System.
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Reconciler runs migration passes.
type Reconciler struct {
	durable    kv.Store
	session    kv.Store
	classifier *classify.Classifier
	registry   *version.Registry
	clock      clock.Clock
	logger     *slog.Logger
}

// New creates a Reconciler.
func New(cfg Config) *Reconciler {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.System{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		durable:    cfg.Provider.Durable(),
		session:    cfg.Provider.Session(),
		classifier: cfg.Classifier,
		registry:   version.NewRegistry(cfg.Provider.Durable(), logger),
		clock:      clk,
		logger:     logger,
	}
}

// Run performs one pass and writes current as the new marker. previous is
// the marker read before the pass (nil when absent) and is only reported.
func (r *Reconciler) Run(ctx context.Context, current version.Marker, previous *version.Marker, reason string) Record {
	start := r.clock.Now()
	rec := Record{
		Triggered: true,
		Reason:    reason,
		Previous:  previous,
		Current:   current,
	}

	snapshot := r.snapshot(ctx, &rec)
	rec.Preserved = len(snapshot)

	r.purgeDurable(ctx, &rec)
	r.purgeSession(ctx, &rec)
	r.restore(ctx, snapshot, &rec)

	now := r.clock.Now()
	if err := r.registry.Write(ctx, current); err != nil {
		r.fail(&rec, StageMarker, version.KeyAppVersion, err)
	}
	if err := r.registry.Touch(ctx, now); err != nil {
		r.fail(&rec, StageMarker, version.KeyLastUpdate, err)
	}

	rec.Timestamp = now
	rec.Duration = r.clock.Now().Sub(start)

	r.logger.Info("migration pass complete",
		"reason", reason,
		"from", previousString(previous),
		"to", current.String(),
		"cleared", rec.ClearedKeyCount(),
		"cleared_session", len(rec.ClearedSessionKeys),
		"preserved", rec.Preserved,
		"failures", len(rec.Failures),
	)
	return rec
}

// snapshot reads every Preserve key.
func (r *Reconciler) snapshot(ctx context.Context, rec *Record) map[string]string {
	out := make(map[string]string)

	keys, err := r.durable.Keys(ctx)
	if err != nil {
		r.fail(rec, StageSnapshot, "", err)
		return out
	}

	for _, k := range keys {
		if r.classifier.Classify(k) != classify.Preserve {
			continue
		}
		v, ok, err := r.durable.Get(ctx, k)
		if err != nil {
			r.fail(rec, StageSnapshot, k, err)
			continue
		}
		if ok {
			out[k] = v
		}
	}
	return out
}

// purgeDurable re-enumerates the durable store and deletes Purge keys.
func (r *Reconciler) purgeDurable(ctx context.Context, rec *Record) {
	keys, err := r.durable.Keys(ctx)
	if err != nil {
		r.fail(rec, StagePurge, "", err)
		return
	}

	for _, k := range keys {
		if r.classifier.Classify(k) != classify.Purge {
			continue
		}
		if err := r.durable.Delete(ctx, k); err != nil {
			r.fail(rec, StagePurge, k, err)
			continue
		}
		rec.ClearedKeys = append(rec.ClearedKeys, k)
	}
}

// purgeSession drops session-scoped keys unrelated to auth or the user.
func (r *Reconciler) purgeSession(ctx context.Context, rec *Record) {
	keys, err := r.session.Keys(ctx)
	if err != nil {
		r.fail(rec, StageSession, "", err)
		return
	}

	for _, k := range keys {
		if r.classifier.KeepSession(k) {
			continue
		}
		if err := r.session.Delete(ctx, k); err != nil {
			r.fail(rec, StageSession, k, err)
			continue
		}
		rec.ClearedSessionKeys = append(rec.ClearedSessionKeys, k)
	}
}

// restore writes the snapshot back. Under a consistent policy this
// rewrites values that were never touched.
func (r *Reconciler) restore(ctx context.Context, snapshot map[string]string, rec *Record) {
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := r.durable.Set(ctx, k, snapshot[k]); err != nil {
			r.fail(rec, StageRestore, k, err)
		}
	}
}

func (r *Reconciler) fail(rec *Record, stage, key string, err error) {
	ke := &KeyError{Stage: stage, Key: key, Err: err}
	rec.Failures = append(rec.Failures, ke)
	r.logger.Warn("migration step failed", "stage", stage, "key", key, "error", err)
}

func previousString(m *version.Marker) string {
	if m == nil {
		return "none"
	}
	return m.String()
}
