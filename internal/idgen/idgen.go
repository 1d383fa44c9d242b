// Package idgen generates the short, process-local identifiers xjet
// attaches to suites and runners, plus the k-sortable run identifiers used
// to correlate a whole invocation's logs.
package idgen

import (
	"math/rand"
	"sync"

	"github.com/segmentio/ksuid"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// Gen produces 14-character base-36 tokens by concatenating two 7-char
// fragments, per §4.4's generate_id contract. It is not required to be
// cryptographically secure, only process-local-unique with high
// probability; callers guard against collisions themselves (e.g. by
// retrying on a map-key clash).
type Gen struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// New creates a Gen seeded from a process-local source.
func New(seed int64) *Gen {
	return &Gen{rnd: rand.New(rand.NewSource(seed))}
}

// ID returns a new 14-character base-36 token.
func (g *Gen) ID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fragment() + g.fragment()
}

func (g *Gen) fragment() string {
	b := make([]byte, 7)
	for i := range b {
		b[i] = base36[g.rnd.Intn(len(base36))]
	}
	return string(b)
}

// RunID returns a k-sortable identifier for one orchestrator invocation,
// used to correlate logs and reporter output across a run.
func RunID() string {
	return ksuid.New().String()
}
