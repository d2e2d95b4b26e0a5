// Package kv defines the storage seam used by the coherence core.
//
// Every component that reads or writes persisted client state takes a
// Store (or a Provider holding the durable and session-scoped stores)
// instead of reaching for a global. Two implementations exist:
//   - Memory: an in-process map, used for session scope in short-lived
//     processes and as the fake in tests
//   - store.Store (internal/store): SQLite-backed durable and per-session
//     tables
//
// Values are opaque strings. The core never interprets them.
package kv
