// Package store provides SQLite-backed persistence for client state.
//
// Two tables back the kv.Store views handed to the coherence core:
//   - durable_entries: the durable store (survives restarts)
//   - session_entries: session-scoped stores, namespaced by session ID
//
// # Deterministic Enumeration
//
// Keys are always returned ORDER BY key COLLATE BINARY so a reconciliation
// pass visits keys in the same order on every run.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// busy_timeout is what serializes two processes booting against the same
// database file; it does not make a reconciliation pass atomic across
// processes (see reconcile.Lock for the advisory guard).
package store
