// Package cachepurge deletes disposable named content caches after an
// update and nudges the update worker to look for a newer build.
//
// Purging runs on its own goroutine and never blocks boot. Absent
// capabilities (no cache storage, no worker) are silent no-ops.
package cachepurge
