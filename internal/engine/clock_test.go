package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClockStampsInOrder(t *testing.T) {
	var c Clock
	assert.Zero(t, c.Current())

	got := []int64{c.Next(), c.Next(), c.Next()}
	assert.Equal(t, []int64{1, 2, 3}, got)
	assert.Equal(t, int64(3), c.Current())
}

func TestClockConcurrentStampsAreUnique(t *testing.T) {
	c := NewClock()
	const workers, perWorker = 16, 250

	var (
		mu   sync.Mutex
		seen = make(map[int64]struct{}, workers*perWorker)
		wg   sync.WaitGroup
	)
	for range workers {
		wg.Go(func() {
			local := make([]int64, 0, perWorker)
			for range perWorker {
				local = append(local, c.Next())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, s := range local {
				seen[s] = struct{}{}
			}
		})
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
	assert.Equal(t, int64(workers*perWorker), c.Current())
}
