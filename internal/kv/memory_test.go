package kv

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_GetMissing(t *testing.T) {
	m := NewMemory()

	v, ok, err := m.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "", v)
}

func TestMemory_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "token", "abc"))
	v, ok, err := m.Get(ctx, "token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", v)

	require.NoError(t, m.Set(ctx, "token", "def"))
	v, _, _ = m.Get(ctx, "token")
	assert.Equal(t, "def", v, "last write wins")

	require.NoError(t, m.Delete(ctx, "token"))
	_, ok, _ = m.Get(ctx, "token")
	assert.False(t, ok)

	// Deleting again is fine
	require.NoError(t, m.Delete(ctx, "token"))
}

func TestMemory_KeysSorted(t *testing.T) {
	m := NewMemoryFrom(map[string]string{"b": "2", "a": "1", "c": "3"})

	keys, err := m.Keys(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, keys)
}

func TestMemory_NewMemoryFromCopies(t *testing.T) {
	seed := map[string]string{"a": "1"}
	m := NewMemoryFrom(seed)
	seed["a"] = "changed"

	assert.Equal(t, map[string]string{"a": "1"}, m.Snapshot())
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%02d", i)
			_ = m.Set(ctx, key, "v")
			_, _, _ = m.Get(ctx, key)
			_, _ = m.Keys(ctx)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, m.Len())
}

func TestPair(t *testing.T) {
	d, s := NewMemory(), NewMemory()
	p := NewProvider(d, s)

	assert.Same(t, d, p.Durable())
	assert.Same(t, s, p.Session())
}
