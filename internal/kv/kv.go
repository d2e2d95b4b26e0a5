package kv

import "context"

// Store is a flat string key/value store.
//
// Implementations must be safe for use from multiple goroutines. Get
// reports a missing key with ok=false and a nil error; errors are reserved
// for the store itself being unavailable.
type Store interface {
	// Get returns the value for key.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys returns every key currently stored, sorted ascending.
	Keys(ctx context.Context) ([]string, error)
}

// Provider hands out the two stores the coherence core works against.
type Provider interface {
	// Durable survives process restarts.
	Durable() Store

	// Session lives for one session context and is disposable.
	Session() Store
}

// Pair is the plain Provider implementation.
type Pair struct {
	DurableStore Store
	SessionStore Store
}

// NewProvider returns a Provider over the given stores.
func NewProvider(durable, session Store) Pair {
	return Pair{DurableStore: durable, SessionStore: session}
}

// Durable implements Provider.
func (p Pair) Durable() Store { return p.DurableStore }

// Session implements Provider.
func (p Pair) Session() Store { return p.SessionStore }
