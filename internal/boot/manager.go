package boot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/roach88/coherence/internal/cachepurge"
	"github.com/roach88/coherence/internal/classify"
	"github.com/roach88/coherence/internal/clock"
	"github.com/roach88/coherence/internal/kv"
	"github.com/roach88/coherence/internal/metrics"
	"github.com/roach88/coherence/internal/reconcile"
	"github.com/roach88/coherence/internal/refresh"
	"github.com/roach88/coherence/internal/version"
)

// ReasonManual labels passes started by ManualCacheClear.
const ReasonManual = "manual"

// ErrMigrationBusy is returned by ManualCacheClear when another process
// holds the migration lock.
var ErrMigrationBusy = errors.New("migration in progress in another process")

// Options wires a Manager. Only Provider is required.
type Options struct {
	Provider kv.Provider

	// Classifier defaults to the built-in policy.
	Classifier *classify.Classifier

	// Current defaults to version.Current().
	Current version.Marker

	Clock   clock.Clock
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Caches and Worker are optional capabilities for the background
	// purge. When Worker is nil and UpdateURL is set, an HTTP worker is
	// built that sends NoCacheHeaders.
	Caches       cachepurge.CacheStorage
	Worker       cachepurge.UpdateWorker
	UpdateURL    string
	UpdateClient *http.Client

	// LockTTL and LockIDs configure the advisory migration lock.
	LockTTL time.Duration
	LockIDs reconcile.IDGenerator
}

// Manager coordinates one client's version check and cache coherence.
type Manager struct {
	current    version.Marker
	classifier *classify.Classifier
	durable    kv.Store
	session    kv.Store
	registry   *version.Registry
	reconciler *reconcile.Reconciler
	lock       *reconcile.Lock
	purger     *cachepurge.Purger
	signal     *refresh.Signal
	metrics    *metrics.Metrics
	logger     *slog.Logger

	mu    sync.Mutex
	tasks []*cachepurge.Task
	last  *reconcile.Record
}

// New creates a Manager.
func New(opts Options) (*Manager, error) {
	if opts.Provider == nil {
		return nil, errors.New("boot: storage provider is required")
	}

	classifier := opts.Classifier
	if classifier == nil {
		var err error
		if classifier, err = classify.New(classify.DefaultPolicy()); err != nil {
			return nil, fmt.Errorf("boot: %w", err)
		}
	}

	current := opts.Current
	if current == (version.Marker{}) {
		current = version.Current()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.System{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	durable := opts.Provider.Durable()
	session := opts.Provider.Session()

	m := &Manager{
		current:    current,
		classifier: classifier,
		durable:    durable,
		session:    session,
		registry:   version.NewRegistry(durable, logger),
		reconciler: reconcile.New(reconcile.Config{
			Provider:   opts.Provider,
			Classifier: classifier,
			Clock:      clk,
			Logger:     logger,
		}),
		lock:    reconcile.NewLock(durable, opts.LockIDs, opts.LockTTL, clk, logger),
		signal:  refresh.New(session, current.AppVersion, clk, logger),
		metrics: opts.Metrics,
		logger:  logger,
	}

	worker := opts.Worker
	if worker == nil && opts.UpdateURL != "" {
		worker = &cachepurge.HTTPWorker{
			URL:     opts.UpdateURL,
			Client:  opts.UpdateClient,
			Headers: m.signal.Headers,
		}
	}
	m.purger = cachepurge.New(cachepurge.Config{
		Storage:    opts.Caches,
		Worker:     worker,
		Classifier: classifier,
		Logger:     logger,
		OnDone:     m.metrics.ObservePurge,
	})

	return m, nil
}

// Current returns the marker of the running build.
func (m *Manager) Current() version.Marker {
	return m.current
}

// InitVersionCheck runs the boot-time check and, when the stored marker
// belongs to a different build, a full migration pass. It reports whether
// a pass ran. Call it once per boot.
func (m *Manager) InitVersionCheck(ctx context.Context) (migrated bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("version check aborted", "panic", r)
			migrated = false
		}
	}()

	stored, ok, err := m.registry.Read(ctx)
	var prev *version.Marker
	if ok {
		prev = &stored
	}
	unreadable := err != nil
	if unreadable {
		m.logger.Warn("version marker unreadable, treating as absent", "error", err)
	}

	decision := version.Decide(m.current, prev)
	reason := version.Reason(m.current, prev)
	m.metrics.ObserveBoot(decision.String())
	m.logger.Info("version check",
		"decision", decision.String(),
		"reason", reason,
		"current", m.current.String(),
		"stored", markerString(prev),
	)

	switch decision {
	case version.FirstInstall:
		if unreadable {
			// Keep whatever marker is stored so the next readable boot
			// still migrates.
			return false
		}
		if err := m.registry.Write(ctx, m.current); err != nil {
			m.logger.Warn("cannot record version marker", "error", err)
		}
		return false
	case version.NoOp:
		return false
	}

	return m.migrate(ctx, prev, reason) == nil
}

// ShouldForceRefresh reports, once, whether the data layer should bypass
// its caches for the next fetches.
func (m *Manager) ShouldForceRefresh(ctx context.Context) bool {
	return m.signal.ConsumeOnce(ctx)
}

// NoCacheHeaders returns the headers to attach to outbound requests.
func (m *Manager) NoCacheHeaders(ctx context.Context) map[string]string {
	return m.signal.Headers(ctx)
}

// ManualCacheClear runs a full pass and cache purge regardless of the
// stored marker. It returns ErrMigrationBusy when another process holds the
// migration lock, and an error when the pass was aborted.
func (m *Manager) ManualCacheClear(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("manual cache clear aborted", "panic", r)
			err = fmt.Errorf("manual cache clear aborted: %v", r)
		}
	}()

	stored, ok, readErr := m.registry.Read(ctx)
	var prev *version.Marker
	if ok {
		prev = &stored
	}
	if readErr != nil {
		m.logger.Warn("version marker unreadable, clearing anyway", "error", readErr)
	}
	return m.migrate(ctx, prev, ReasonManual)
}

// LastRecord returns the record of the most recent pass run by this
// Manager.
func (m *Manager) LastRecord() (reconcile.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return reconcile.Record{}, false
	}
	return *m.last, true
}

// Wait blocks until every dispatched cache purge has finished or ctx
// ends. For process shutdown and tests; boot never waits.
func (m *Manager) Wait(ctx context.Context) error {
	m.mu.Lock()
	tasks := append([]*cachepurge.Task(nil), m.tasks...)
	m.mu.Unlock()

	for _, t := range tasks {
		if _, err := t.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) migrate(ctx context.Context, prev *version.Marker, reason string) error {
	release, ok := m.lock.Acquire(ctx)
	if !ok {
		return ErrMigrationBusy
	}
	defer release()

	rec := m.reconciler.Run(ctx, m.current, prev, reason)
	m.metrics.ObservePass(rec)

	// Armed before the purge so the update check already sends no-cache
	// headers.
	if err := m.signal.Arm(ctx); err != nil {
		m.logger.Warn("cannot arm refresh signal", "error", err)
	}

	task := m.purger.Dispatch(ctx)

	m.mu.Lock()
	m.tasks = append(m.tasks, task)
	m.last = &rec
	m.mu.Unlock()
	return nil
}

func markerString(m *version.Marker) string {
	if m == nil {
		return "none"
	}
	return m.String()
}
