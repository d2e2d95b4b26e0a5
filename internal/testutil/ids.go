package testutil

import "sync"

// FixedIDs returns predetermined IDs in order, then repeats the last one.
//
// Used wherever production code takes a generator of UUIDv7 strings (lock
// owners, session IDs) so tests can assert on exact values.
//
// Thread-safety: FixedIDs is safe for concurrent use via internal mutex.
type FixedIDs struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedIDs creates a generator over ids. With no ids it always returns
// "test-id-default".
func NewFixedIDs(ids ...string) *FixedIDs {
	if len(ids) == 0 {
		ids = []string{"test-id-default"}
	}
	return &FixedIDs{ids: ids}
}

// Generate returns the next ID.
func (g *FixedIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.ids[g.idx]
	if g.idx < len(g.ids)-1 {
		g.idx++
	}
	return id
}
