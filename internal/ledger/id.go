package ledger

import (
	"sync"

	"github.com/google/uuid"
)

// IDGenerator produces unique identifiers for events and causation
// references. Implemented by UUIDv7Generator (production) and
// FixedGenerator (tests).
type IDGenerator interface {
	NewID() string
}

// UUIDv7Generator generates time-sortable UUIDv7 identifiers.
//
// UUIDv7 embeds a timestamp in the most significant bits, so event ids
// sort by creation time across accounts, which keeps the persisted log
// readable in commit order.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// NewID creates a new UUIDv7 as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined ids for deterministic tests.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
// Panics when all ids are consumed, which fails tests fast instead of
// silently reusing identifiers.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// NewID returns the next predetermined id.
func (g *FixedGenerator) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
