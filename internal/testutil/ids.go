package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDGenerator hands out "<prefix>-1", "<prefix>-2", ... in order.
//
// This makes operation IDs in logs and traces deterministic, so the same
// scenario produces byte-identical golden output on every run.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type SequenceIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int64
}

// NewSequenceIDGenerator creates a generator. If prefix is empty, "op" is used.
func NewSequenceIDGenerator(prefix string) *SequenceIDGenerator {
	if prefix == "" {
		prefix = "op"
	}
	return &SequenceIDGenerator{prefix: prefix}
}

// Generate returns the next ID.
//
// Implements dispatch.IDGenerator.
func (g *SequenceIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// Reset restarts the sequence. After Reset, the next ID ends in "-1".
func (g *SequenceIDGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
