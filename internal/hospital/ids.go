package hospital

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// IDGenerator hands out opaque identifiers. Each Directory and Ledger owns
// one, so independent instances never share a counter.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator produces dash-less random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// SequenceGenerator produces prefix000001, prefix000002, ... and is safe for
// concurrent use. Mostly useful in tests and fixtures.
type SequenceGenerator struct {
	prefix string
	n      atomic.Uint64
}

func NewSequenceGenerator(prefix string) *SequenceGenerator {
	return &SequenceGenerator{prefix: prefix}
}

func (g *SequenceGenerator) NewID() string {
	return fmt.Sprintf("%s%06d", g.prefix, g.n.Add(1))
}

// Clock returns the current time.
type Clock func() time.Time

// FixedClock always returns t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
