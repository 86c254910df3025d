package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/memento/internal/region"
)

var _ region.NameGenerator = (*SequentialNames)(nil)

func TestSequentialNames_Counts(t *testing.T) {
	gen := NewSequentialNames()

	assert.Equal(t, "0001", gen.Generate())
	assert.Equal(t, "0002", gen.Generate())
	assert.Equal(t, "0003", gen.Generate())
}

func TestSequentialNames_ThreadSafe(t *testing.T) {
	gen := NewSequentialNames()

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				name := gen.Generate()
				mu.Lock()
				seen[name] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 1000)
}
