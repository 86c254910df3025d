package testutil

import (
	"fmt"
	"sync"
)

// SequentialNames generates "0001", "0002", ... for default fork and merge
// names. Safe for concurrent use.
type SequentialNames struct {
	mu sync.Mutex
	n  int
}

// NewSequentialNames creates a generator whose first name is "0001".
func NewSequentialNames() *SequentialNames {
	return &SequentialNames{}
}

// Generate returns the next name. Implements region.NameGenerator.
func (g *SequentialNames) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%04d", g.n)
}
