package graph

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogicalClock_StartsAfterSeed(t *testing.T) {
	c := NewLogicalClock(100)
	assert.Equal(t, int64(100), c.Current())
	assert.Equal(t, int64(101), c.Now())
	assert.Equal(t, int64(102), c.Now())
	assert.Equal(t, int64(102), c.Current())
}

func TestLogicalClock_ConcurrentUnique(t *testing.T) {
	c := NewLogicalClock(0)
	const workers = 10
	const perWorker = 100

	var mu sync.Mutex
	seen := make(map[int64]bool)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				v := c.Now()
				mu.Lock()
				seen[v] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
	assert.Equal(t, int64(workers*perWorker), c.Current())
}

func TestWallClock_IsPositive(t *testing.T) {
	assert.Positive(t, WallClock{}.Now())
}
