package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/coherence/internal/kv"
)

// ErrInjected is the error returned by FaultyStore for injected failures.
var ErrInjected = errors.New("injected storage failure")

// FaultyStore wraps a kv.Store and fails selected operations.
//
// It models the storage failures a client sees in practice: quota errors on
// writes, security errors on reads, and stores that are unavailable
// altogether.
type FaultyStore struct {
	kv.Store

	mu          sync.Mutex
	failGet     map[string]bool
	failSet     map[string]bool
	failDelete  map[string]bool
	failKeys    bool
	unavailable bool
	deletes     []string
}

// NewFaultyStore wraps inner.
func NewFaultyStore(inner kv.Store) *FaultyStore {
	return &FaultyStore{
		Store:      inner,
		failGet:    make(map[string]bool),
		failSet:    make(map[string]bool),
		failDelete: make(map[string]bool),
	}
}

// FailGet makes Get fail for key.
func (f *FaultyStore) FailGet(key string) *FaultyStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failGet[key] = true
	return f
}

// FailSet makes Set fail for key.
func (f *FaultyStore) FailSet(key string) *FaultyStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSet[key] = true
	return f
}

// FailDelete makes Delete fail for key.
func (f *FaultyStore) FailDelete(key string) *FaultyStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failDelete[key] = true
	return f
}

// FailKeys makes key enumeration fail.
func (f *FaultyStore) FailKeys() *FaultyStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failKeys = true
	return f
}

// Unavailable makes every operation fail.
func (f *FaultyStore) Unavailable() *FaultyStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unavailable = true
	return f
}

// Heal clears every injected failure.
func (f *FaultyStore) Heal() *FaultyStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failGet = make(map[string]bool)
	f.failSet = make(map[string]bool)
	f.failDelete = make(map[string]bool)
	f.failKeys = false
	f.unavailable = false
	return f
}

// Deletes returns every key a Delete was attempted on, in call order.
func (f *FaultyStore) Deletes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deletes...)
}

// Get implements kv.Store.
func (f *FaultyStore) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	fail := f.unavailable || f.failGet[key]
	f.mu.Unlock()
	if fail {
		return "", false, ErrInjected
	}
	return f.Store.Get(ctx, key)
}

// Set implements kv.Store.
func (f *FaultyStore) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	fail := f.unavailable || f.failSet[key]
	f.mu.Unlock()
	if fail {
		return ErrInjected
	}
	return f.Store.Set(ctx, key, value)
}

// Delete implements kv.Store.
func (f *FaultyStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	f.deletes = append(f.deletes, key)
	fail := f.unavailable || f.failDelete[key]
	f.mu.Unlock()
	if fail {
		return ErrInjected
	}
	return f.Store.Delete(ctx, key)
}

// Keys implements kv.Store.
func (f *FaultyStore) Keys(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	fail := f.unavailable || f.failKeys
	f.mu.Unlock()
	if fail {
		return nil, ErrInjected
	}
	return f.Store.Keys(ctx)
}
