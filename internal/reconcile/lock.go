package reconcile

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/coherence/internal/clock"
	"github.com/roach88/coherence/internal/kv"
	"github.com/roach88/coherence/internal/version"
)

// LockKey is the durable key holding the advisory migration lock.
const LockKey = version.KeyMigrationLock

// DefaultLockTTL bounds how long a crashed holder can block other boots.
const DefaultLockTTL = 10 * time.Second

// IDGenerator produces lock owner identifiers.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 owner IDs.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Lock is an advisory, TTL-bounded marker in the durable store.
//
// The value is "<owner>|<expiry RFC 3339>". A second process that finds an
// unexpired lock owned by someone else skips its pass. Acquisition is
// write-then-read-back, so two processes writing in the same instant can
// both believe they won; the store offers no compare-and-swap.
type Lock struct {
	store  kv.Store
	owner  string
	ttl    time.Duration
	clock  clock.Clock
	logger *slog.Logger
}

// NewLock creates a lock with a fresh owner ID. Zero ttl uses
// DefaultLockTTL; nil ids, clk and logger take their defaults.
func NewLock(store kv.Store, ids IDGenerator, ttl time.Duration, clk clock.Clock, logger *slog.Logger) *Lock {
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Lock{store: store, owner: ids.Generate(), ttl: ttl, clock: clk, logger: logger}
}

// Owner returns this lock's owner ID.
func (l *Lock) Owner() string {
	return l.owner
}

// Acquire tries to take the lock. ok is false only when another owner
// holds an unexpired lock. Storage errors degrade to proceeding without
// the lock. release is always non-nil.
func (l *Lock) Acquire(ctx context.Context) (release func(), ok bool) {
	noop := func() {}
	now := l.clock.Now()

	raw, found, err := l.store.Get(ctx, LockKey)
	if err != nil {
		l.logger.Warn("migration lock unreadable, proceeding unlocked", "error", err)
		return noop, true
	}
	if found {
		owner, expiry, valid := parseLock(raw)
		if valid && owner != l.owner && expiry.After(now) {
			l.logger.Info("migration in progress elsewhere, skipping", "holder", owner, "expires", expiry)
			return noop, false
		}
		if !valid {
			l.logger.Debug("replacing malformed migration lock", "value", raw)
		}
	}

	mine := formatLock(l.owner, now.Add(l.ttl))
	if err := l.store.Set(ctx, LockKey, mine); err != nil {
		l.logger.Warn("migration lock unwritable, proceeding unlocked", "error", err)
		return noop, true
	}

	back, found, err := l.store.Get(ctx, LockKey)
	if err == nil && found && back != mine {
		owner, _, _ := parseLock(back)
		l.logger.Info("lost migration lock race, skipping", "holder", owner)
		return noop, false
	}

	return func() { l.release(ctx, mine) }, true
}

// release deletes the lock if it is still ours.
func (l *Lock) release(ctx context.Context, mine string) {
	raw, found, err := l.store.Get(ctx, LockKey)
	if err != nil || !found || raw != mine {
		return
	}
	if err := l.store.Delete(ctx, LockKey); err != nil {
		l.logger.Warn("failed to release migration lock", "error", err)
	}
}

func formatLock(owner string, expiry time.Time) string {
	return owner + "|" + expiry.UTC().Format(time.RFC3339Nano)
}

func parseLock(raw string) (owner string, expiry time.Time, ok bool) {
	owner, ts, found := strings.Cut(raw, "|")
	if !found || owner == "" {
		return "", time.Time{}, false
	}
	expiry, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return "", time.Time{}, false
	}
	return owner, expiry, true
}
