package boot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/coherence/internal/classify"
	"github.com/roach88/coherence/internal/clock"
	"github.com/roach88/coherence/internal/refresh"
	"github.com/roach88/coherence/internal/version"
)

// Refresh states reported by Status.
const (
	RefreshIdle    = "idle"
	RefreshArmed   = "armed"
	RefreshNoCache = "no-cache"
)

// KeyCounts counts durable keys per class.
type KeyCounts struct {
	Preserve     int `json:"preserve"`
	Purge        int `json:"purge"`
	Reserved     int `json:"reserved"`
	Unclassified int `json:"unclassified"`
}

// Total is the number of durable keys.
func (k KeyCounts) Total() int {
	return k.Preserve + k.Purge + k.Reserved + k.Unclassified
}

// SessionCounts counts session keys by the session heuristic.
type SessionCounts struct {
	Keep int `json:"keep"`
	Drop int `json:"drop"`
}

// Status is a read-only view of the persisted state.
type Status struct {
	Current    version.Marker  `json:"current"`
	Stored     *version.Marker `json:"stored,omitempty"`
	Decision   string          `json:"decision"`
	Reason     string          `json:"reason"`
	LastUpdate *time.Time      `json:"last_update,omitempty"`
	Durable    KeyCounts       `json:"durable"`
	Session    SessionCounts   `json:"session"`
	Refresh    string          `json:"refresh"`

	// Unreadable lists stores whose keys could not be enumerated.
	Unreadable []string `json:"unreadable,omitempty"`
}

// Status inspects the stores without changing them.
func (m *Manager) Status(ctx context.Context) Status {
	st := Status{Current: m.current, Refresh: RefreshIdle}

	stored, ok, err := m.registry.Read(ctx)
	if err != nil {
		st.Unreadable = append(st.Unreadable, "version")
	} else if ok {
		st.Stored = &stored
	}
	st.Decision = version.Decide(m.current, st.Stored).String()
	st.Reason = version.Reason(m.current, st.Stored)
	if t, ok := m.registry.LastUpdate(ctx); ok {
		st.LastUpdate = &t
	}

	if keys, err := m.durable.Keys(ctx); err != nil {
		st.Unreadable = append(st.Unreadable, "durable")
	} else {
		for _, k := range keys {
			switch m.classifier.Classify(k) {
			case classify.Preserve:
				st.Durable.Preserve++
			case classify.Purge:
				st.Durable.Purge++
			case classify.Reserved:
				st.Durable.Reserved++
			default:
				st.Durable.Unclassified++
			}
		}
	}

	if keys, err := m.session.Keys(ctx); err != nil {
		st.Unreadable = append(st.Unreadable, "session")
	} else {
		for _, k := range keys {
			if m.classifier.KeepSession(k) {
				st.Session.Keep++
			} else {
				st.Session.Drop++
			}
			switch k {
			case refresh.KeyForceRefresh:
				st.Refresh = RefreshArmed
			case refresh.KeyUpdateTimestamp:
				if st.Refresh == RefreshIdle {
					st.Refresh = RefreshNoCache
				}
			}
		}
	}

	return st
}

// String renders the status for terminals.
func (s Status) String() string {
	var b strings.Builder

	stored := "none"
	if s.Stored != nil {
		stored = s.Stored.String()
	}
	last := "never"
	if s.LastUpdate != nil {
		last = clock.Format(*s.LastUpdate)
	}

	fmt.Fprintf(&b, "current:      %s\n", s.Current)
	fmt.Fprintf(&b, "stored:       %s\n", stored)
	fmt.Fprintf(&b, "decision:     %s (%s)\n", s.Decision, s.Reason)
	fmt.Fprintf(&b, "last update:  %s\n", last)
	fmt.Fprintf(&b, "durable keys: %d (preserve %d, purge %d, reserved %d, unclassified %d)\n",
		s.Durable.Total(), s.Durable.Preserve, s.Durable.Purge, s.Durable.Reserved, s.Durable.Unclassified)
	fmt.Fprintf(&b, "session keys: %d (keep %d, drop %d)\n",
		s.Session.Keep+s.Session.Drop, s.Session.Keep, s.Session.Drop)
	fmt.Fprintf(&b, "refresh:      %s", s.Refresh)
	if len(s.Unreadable) > 0 {
		fmt.Fprintf(&b, "\nunreadable:   %s", strings.Join(s.Unreadable, ", "))
	}
	return b.String()
}
