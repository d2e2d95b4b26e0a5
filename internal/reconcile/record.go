package reconcile

import (
	"fmt"
	"time"

	"github.com/roach88/coherence/internal/version"
)

// Stages of a pass, used to label failures.
const (
	StageSnapshot = "snapshot"
	StagePurge    = "purge"
	StageSession  = "session"
	StageRestore  = "restore"
	StageMarker   = "marker"
)

// KeyError records one storage failure during a pass. Key is empty when
// the failure was enumerating a whole store.
type KeyError struct {
	Stage string
	Key   string
	Err   error
}

func (e *KeyError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Stage, e.Key, e.Err)
}

func (e *KeyError) Unwrap() error {
	return e.Err
}

// Record is the outcome of one pass. It is logged, never persisted.
type Record struct {
	Triggered bool
	Reason    string

	// Previous is nil for a manual clear on a store without a marker.
	Previous *version.Marker
	Current  version.Marker

	ClearedKeys        []string
	ClearedSessionKeys []string
	Preserved          int
	Failures           []*KeyError

	Timestamp time.Time
	Duration  time.Duration
}

// ClearedKeyCount is the number of durable keys deleted.
func (r Record) ClearedKeyCount() int {
	return len(r.ClearedKeys)
}

// PreviousAppVersion returns the app version before the pass, or "".
func (r Record) PreviousAppVersion() string {
	if r.Previous == nil {
		return ""
	}
	return r.Previous.AppVersion
}

// PreviousSchemaVersion returns the schema version before the pass, or 0.
func (r Record) PreviousSchemaVersion() int {
	if r.Previous == nil {
		return 0
	}
	return r.Previous.SchemaVersion
}
