package cachepurge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/coherence/internal/classify"
)

// ErrUnsupported reports that a capability is absent in this environment.
var ErrUnsupported = errors.New("capability not supported")

// CacheStorage is a set of named content caches.
type CacheStorage interface {
	Names(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, name string) error
}

// UpdateWorker checks for a newer application build.
type UpdateWorker interface {
	Update(ctx context.Context) error
}

// Config wires a Purger. Storage and Worker may be nil.
type Config struct {
	Storage    CacheStorage
	Worker     UpdateWorker
	Classifier *classify.Classifier
	Logger     *slog.Logger

	// OnDone, if set, is called on the purge goroutine with the result.
	OnDone func(Result)
}

// Purger removes disposable caches.
type Purger struct {
	storage    CacheStorage
	worker     UpdateWorker
	classifier *classify.Classifier
	logger     *slog.Logger
	onDone     func(Result)
}

// New creates a Purger.
func New(cfg Config) *Purger {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Purger{
		storage:    cfg.Storage,
		worker:     cfg.Worker,
		classifier: cfg.Classifier,
		logger:     logger,
		onDone:     cfg.OnDone,
	}
}

// Dispatch starts a purge in the background and returns immediately. The
// purge is not cancelled when ctx is; it only inherits its values.
func (p *Purger) Dispatch(ctx context.Context) *Task {
	t := newTask()
	go p.run(context.WithoutCancel(ctx), t)
	return t
}

// Run purges synchronously.
func (p *Purger) Run(ctx context.Context) Result {
	t := newTask()
	p.run(ctx, t)
	return t.result
}

func (p *Purger) run(ctx context.Context, t *Task) {
	defer close(t.done)
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("cache purge panicked: %v", r)
			p.logger.Error("cache purge aborted", "error", err)
			t.result.Errors = append(t.result.Errors, err)
		}
		if p.onDone != nil {
			p.onDone(t.result)
		}
	}()

	p.purge(ctx, &t.result)
	p.update(ctx, &t.result)

	p.logger.Info("cache purge complete",
		"deleted", len(t.result.Deleted),
		"kept", len(t.result.Kept),
		"errors", len(t.result.Errors),
	)
}

func (p *Purger) purge(ctx context.Context, res *Result) {
	if p.storage == nil {
		p.logger.Debug("no cache storage, skipping cache purge")
		return
	}

	names, err := p.storage.Names(ctx)
	if errors.Is(err, ErrUnsupported) {
		p.logger.Debug("cache storage unsupported, skipping cache purge")
		return
	}
	if err != nil {
		p.logger.Warn("cannot list caches", "error", err)
		res.Errors = append(res.Errors, fmt.Errorf("list caches: %w", err))
		return
	}

	for _, name := range names {
		if !p.classifier.DisposableCache(name) {
			res.Kept = append(res.Kept, name)
			continue
		}
		if err := p.storage.Delete(ctx, name); err != nil {
			p.logger.Warn("cannot delete cache", "cache", name, "error", err)
			res.Errors = append(res.Errors, fmt.Errorf("delete cache %q: %w", name, err))
			continue
		}
		p.logger.Debug("deleted cache", "cache", name)
		res.Deleted = append(res.Deleted, name)
	}
}

func (p *Purger) update(ctx context.Context, res *Result) {
	if p.worker == nil {
		return
	}
	err := p.worker.Update(ctx)
	if errors.Is(err, ErrUnsupported) {
		return
	}
	res.WorkerChecked = true
	if err != nil {
		p.logger.Warn("update check failed", "error", err)
		res.WorkerErr = err
		return
	}
	p.logger.Debug("update check requested")
}
