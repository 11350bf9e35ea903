package engine

import (
	"context"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/tablesync/internal/table"
)

// checkEvery is how many rows a partition processes between context checks.
const checkEvery = 4096

// partitionOf maps a key to one of n partitions.
func partitionOf(k table.Key, n int) int {
	return int(xxhash.Sum64String(string(k)) % uint64(n))
}

// forEachPartitioned splits indices 0..n-1 into key-hash partitions and
// calls fn for every index, running partitions concurrently. fn must only
// write state owned by its index. Index order within a partition follows
// input order, so callers that collect by index keep a deterministic
// result regardless of scheduling.
func forEachPartitioned(ctx context.Context, n, workers int, key func(i int) table.Key, fn func(i int)) error {
	if n == 0 {
		return ctx.Err()
	}
	if workers < 1 {
		workers = 1
	}
	parts := make([][]int, workers)
	for i := 0; i < n; i++ {
		p := partitionOf(key(i), workers)
		parts[p] = append(parts[p], i)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, part := range parts {
		if len(part) == 0 {
			continue
		}
		g.Go(func() error {
			for j, i := range part {
				if j%checkEvery == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				fn(i)
			}
			return nil
		})
	}
	return g.Wait()
}
