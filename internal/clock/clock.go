// Package clock abstracts wall-clock time so timestamps written to
// persisted state and lock expiries can be driven deterministically in tests.
package clock

import "time"

// ISO8601 is the layout used for every timestamp the coherence core
// persists: UTC with millisecond precision, e.g. 2026-10-15T08:30:00.000Z.
const ISO8601 = "2006-01-02T15:04:05.000Z07:00"

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// System is the real wall clock.
//
// Thread-safety: System is stateless and safe for concurrent use.
type System struct{}

// Now implements Clock.
func (System) Now() time.Time {
	return time.Now()
}

// Format renders t in the persisted ISO8601 form.
func Format(t time.Time) string {
	return t.UTC().Format(ISO8601)
}

// Parse reads a timestamp written by Format. RFC 3339 values without
// milliseconds are accepted too.
func Parse(s string) (time.Time, error) {
	if t, err := time.Parse(ISO8601, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
