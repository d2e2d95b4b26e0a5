// Package reconcile performs a migration pass over persisted client state.
//
// A pass runs synchronously and in this order:
//  1. Snapshot every durable key classified Preserve.
//  2. Delete every durable key classified Purge. Classification is
//     evaluated again per key at delete time.
//  3. Delete every session-scoped key not kept by the session heuristic.
//  4. Write the snapshot back.
//  5. Write the current version marker and the update timestamp.
//
// Storage failures are caught per key and recorded on the Record; one key
// failing never stops the rest of the pass.
//
// The package also provides Lock, an advisory guard against two processes
// running a pass against the same durable store at once. The guard is not
// a mutual-exclusion primitive: it narrows the race window, it does not
// close it.
package reconcile
