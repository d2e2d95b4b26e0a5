package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/coherence/internal/kv"
	"github.com/roach88/coherence/internal/testutil"
)

func TestLock_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	clk := testutil.NewFakeClock()
	l := NewLock(store, testutil.NewFixedIDs("owner-a"), 10*time.Second, clk, nil)

	release, ok := l.Acquire(ctx)
	require.True(t, ok)

	v, found, _ := store.Get(ctx, LockKey)
	require.True(t, found)
	assert.Equal(t, "owner-a|2026-10-15T08:30:10Z", v)

	release()
	_, found, _ = store.Get(ctx, LockKey)
	assert.False(t, found)
}

func TestLock_SecondOwnerSkips(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	clk := testutil.NewFakeClock()

	a := NewLock(store, testutil.NewFixedIDs("owner-a"), 10*time.Second, clk, nil)
	b := NewLock(store, testutil.NewFixedIDs("owner-b"), 10*time.Second, clk, nil)

	releaseA, ok := a.Acquire(ctx)
	require.True(t, ok)

	releaseB, ok := b.Acquire(ctx)
	assert.False(t, ok)
	require.NotNil(t, releaseB)
	releaseB() // must not remove a's lock

	v, _, _ := store.Get(ctx, LockKey)
	assert.Contains(t, v, "owner-a|")

	releaseA()
	_, ok = b.Acquire(ctx)
	assert.True(t, ok)
}

func TestLock_ExpiredLockIsTaken(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	clk := testutil.NewFakeClock()

	a := NewLock(store, testutil.NewFixedIDs("owner-a"), 10*time.Second, clk, nil)
	_, ok := a.Acquire(ctx)
	require.True(t, ok)
	// a crashes without releasing

	clk.Advance(11 * time.Second)
	b := NewLock(store, testutil.NewFixedIDs("owner-b"), 10*time.Second, clk, nil)
	_, ok = b.Acquire(ctx)
	assert.True(t, ok)

	v, _, _ := store.Get(ctx, LockKey)
	assert.Contains(t, v, "owner-b|")
}

func TestLock_MalformedLockIsReplaced(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryFrom(map[string]string{LockKey: "garbage"})

	_, ok := NewLock(store, testutil.NewFixedIDs("owner-a"), 0, testutil.NewFakeClock(), nil).Acquire(ctx)
	assert.True(t, ok)
}

func TestLock_SameOwnerReenters(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	l := NewLock(store, testutil.NewFixedIDs("owner-a"), 0, testutil.NewFakeClock(), nil)

	_, ok := l.Acquire(ctx)
	require.True(t, ok)
	_, ok = l.Acquire(ctx)
	assert.True(t, ok)
}

func TestLock_StorageErrorsProceedUnlocked(t *testing.T) {
	ctx := context.Background()

	unreadable := testutil.NewFaultyStore(kv.NewMemory()).FailGet(LockKey)
	release, ok := NewLock(unreadable, nil, 0, nil, nil).Acquire(ctx)
	assert.True(t, ok)
	require.NotNil(t, release)
	release()

	unwritable := testutil.NewFaultyStore(kv.NewMemory()).FailSet(LockKey)
	release, ok = NewLock(unwritable, nil, 0, nil, nil).Acquire(ctx)
	assert.True(t, ok)
	require.NotNil(t, release)
	release()
}

// racingStore overwrites the lock right after it is written, simulating a
// second process that wrote in the same instant.
type racingStore struct {
	*kv.Memory
}

func (r *racingStore) Set(ctx context.Context, key, value string) error {
	if err := r.Memory.Set(ctx, key, value); err != nil {
		return err
	}
	if key == LockKey {
		return r.Memory.Set(ctx, key, "rival|2099-01-01T00:00:00Z")
	}
	return nil
}

func TestLock_LostRaceSkips(t *testing.T) {
	store := &racingStore{Memory: kv.NewMemory()}

	_, ok := NewLock(store, testutil.NewFixedIDs("owner-a"), 0, testutil.NewFakeClock(), nil).Acquire(context.Background())
	assert.False(t, ok)
}

func TestUUIDv7Generator(t *testing.T) {
	g := UUIDv7Generator{}
	a, b := g.Generate(), g.Generate()

	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
	assert.Equal(t, "7", string(a[14]), "version nibble")
}

func TestNewLock_Owner(t *testing.T) {
	l := NewLock(kv.NewMemory(), testutil.NewFixedIDs("me"), 0, nil, nil)
	assert.Equal(t, "me", l.Owner())
}
