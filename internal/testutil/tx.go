package testutil

import (
	"fmt"
	"sync"
)

// FixedTxGenerator hands out predictable tx ids ("<prefix>-000001",
// "<prefix>-000002", ...) so journals and golden traces are byte-stable.
// It satisfies engine.TxIDGenerator and is safe for concurrent use.
type FixedTxGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewFixedTxGenerator returns a generator using prefix. An empty prefix
// becomes "tx".
func NewFixedTxGenerator(prefix string) *FixedTxGenerator {
	if prefix == "" {
		prefix = "tx"
	}
	return &FixedTxGenerator{prefix: prefix}
}

// Generate returns the next tx id.
func (g *FixedTxGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%06d", g.prefix, g.n)
}

// Reset restarts numbering at 1.
func (g *FixedTxGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
