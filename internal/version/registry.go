package version

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/coherence/internal/clock"
	"github.com/roach88/coherence/internal/kv"
)

// Keys owned by the registry in the durable store. Nothing else may write
// them, and reconciliation must never purge or snapshot them.
const (
	KeyAppVersion    = "app_version"
	KeySchemaVersion = "schema_version"
	KeyLastUpdate    = "last_update"
)

// KeyMigrationLock holds the advisory lock taken around a migration pass.
// It is reserved like the marker keys.
const KeyMigrationLock = "migration_lock"

// Registry reads and writes the version markers in the durable store.
type Registry struct {
	store  kv.Store
	logger *slog.Logger
}

// NewRegistry creates a registry over the durable store. A nil logger uses
// slog.Default().
func NewRegistry(durable kv.Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{store: durable, logger: logger}
}

// Read returns the stored marker. ok is false when no app version is
// stored. A non-nil error means the store could not be read; the marker
// may still exist and must not be overwritten.
func (r *Registry) Read(ctx context.Context) (m Marker, ok bool, err error) {
	app, found, err := r.store.Get(ctx, KeyAppVersion)
	if err != nil {
		return Marker{}, false, fmt.Errorf("read app version: %w", err)
	}
	if !found {
		return Marker{}, false, nil
	}

	m.AppVersion = app

	raw, found, err := r.store.Get(ctx, KeySchemaVersion)
	if err != nil {
		return Marker{}, false, fmt.Errorf("read schema version: %w", err)
	}
	if found {
		n, err := parseSchema(raw)
		if err != nil {
			r.logger.Warn("schema marker malformed, treating as 0", "value", raw, "error", err)
		} else {
			m.SchemaVersion = n
		}
	}

	return m, true, nil
}

// Write stores m. Idempotent; last write wins.
func (r *Registry) Write(ctx context.Context, m Marker) error {
	if err := r.store.Set(ctx, KeyAppVersion, m.AppVersion); err != nil {
		return fmt.Errorf("write app version: %w", err)
	}
	if err := r.store.Set(ctx, KeySchemaVersion, strconv.Itoa(m.SchemaVersion)); err != nil {
		return fmt.Errorf("write schema version: %w", err)
	}
	return nil
}

// Touch records the time of the last completed update.
func (r *Registry) Touch(ctx context.Context, at time.Time) error {
	if err := r.store.Set(ctx, KeyLastUpdate, clock.Format(at)); err != nil {
		return fmt.Errorf("write last update: %w", err)
	}
	return nil
}

// LastUpdate returns the time recorded by Touch.
func (r *Registry) LastUpdate(ctx context.Context) (time.Time, bool) {
	raw, ok, err := r.store.Get(ctx, KeyLastUpdate)
	if err != nil || !ok {
		return time.Time{}, false
	}
	t, err := clock.Parse(raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func parseSchema(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse schema version %q: %w", raw, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative schema version %d", n)
	}
	return n, nil
}
