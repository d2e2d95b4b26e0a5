// Package version tracks which client build last touched the persisted
// state and decides whether this boot has to reconcile it.
package version

import "fmt"

// Current build values. Overridden at link time:
//
//	go build -ldflags "-X github.com/roach88/coherence/internal/version.AppVersion=3.9.0"
//
// SchemaVersion is bumped whenever the shape or meaning of persisted domain
// data changes incompatibly.
var (
	AppVersion    = "3.9.0"
	SchemaVersion = "12"
)

// Marker identifies a client build and its persisted-data schema.
//
// AppVersion is opaque: it is only ever compared for equality.
// SchemaVersion is a monotonic counter starting at 1; a stored marker that
// predates the counter reads as 0.
type Marker struct {
	AppVersion    string `json:"app_version"`
	SchemaVersion int    `json:"schema_version"`
}

// String renders the marker as "3.9.0+schema.12".
func (m Marker) String() string {
	return fmt.Sprintf("%s+schema.%d", m.AppVersion, m.SchemaVersion)
}

// Current returns the compiled-in marker. A malformed SchemaVersion
// link-time value falls back to 1.
func Current() Marker {
	n, err := parseSchema(SchemaVersion)
	if err != nil || n < 1 {
		n = 1
	}
	return Marker{AppVersion: AppVersion, SchemaVersion: n}
}
