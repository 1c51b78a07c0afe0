package batch

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/pnpmatch/internal/cache"
	"github.com/standardbeagle/pnpmatch/internal/config"
	"github.com/standardbeagle/pnpmatch/internal/debug"
	"github.com/standardbeagle/pnpmatch/internal/store"
	"github.com/standardbeagle/pnpmatch/internal/types"
)

// DefaultChunkSize is the number of rows a pool worker takes at a time.
const DefaultChunkSize = 64

type resolveFunc func(footprint, comment string) types.Result

// rowFunc resolves row i with the given lookup. It must not panic and
// writes only to row i's output slot.
type rowFunc func(i int, resolve resolveFunc)

// Strategy schedules the rows of a batch.
type Strategy interface {
	Name() string
	run(ctx context.Context, n int, shared *cache.MatchCache, snap *store.Snapshot, m cache.Matcher, row rowFunc) error
}

// Sequential resolves rows one after another through the shared cache.
type Sequential struct{}

// Name implements Strategy
func (Sequential) Name() string { return "sequential" }

func (Sequential) run(ctx context.Context, n int, shared *cache.MatchCache, snap *store.Snapshot, m cache.Matcher, row rowFunc) error {
	resolve := func(footprint, comment string) types.Result {
		return shared.GetOrCompute(footprint, comment, snap, m)
	}
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		row(i, resolve)
	}
	return nil
}

// Pool fans rows out to a fixed number of workers. Each worker reads the
// shared cache and fills its own local one; the local caches are merged into
// the shared cache once every row is done.
type Pool struct {
	Workers   int
	ChunkSize int
}

// Name implements Strategy
func (Pool) Name() string { return "pool" }

func (p Pool) run(ctx context.Context, n int, shared *cache.MatchCache, snap *store.Snapshot, m cache.Matcher, row rowFunc) error {
	workers := max(p.Workers, 1)
	chunk := p.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}

	g, gctx := errgroup.WithContext(ctx)
	spans := make(chan [2]int)

	g.Go(func() error {
		defer close(spans)
		for start := 0; start < n; start += chunk {
			select {
			case spans <- [2]int{start, min(start+chunk, n)}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	locals := make([]*cache.MatchCache, workers)
	for w := range locals {
		local := cache.New()
		local.Bind(snap.Fingerprint())
		locals[w] = local

		resolve := func(footprint, comment string) types.Result {
			if r, ok := shared.Lookup(footprint, comment); ok {
				return r
			}
			return local.GetOrCompute(footprint, comment, snap, m)
		}

		g.Go(func() error {
			for span := range spans {
				for i := span[0]; i < span[1]; i++ {
					if err := gctx.Err(); err != nil {
						return err
					}
					row(i, resolve)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	merged := 0
	for _, local := range locals {
		merged += shared.Merge(local)
	}
	debug.LogBatch("pool: %d workers, chunk %d, merged %d cache entries\n", workers, chunk, merged)
	return nil
}

// StrategyFor picks the strategy selected by the batch configuration.
func StrategyFor(cfg config.Batch) Strategy {
	if cfg.Parallel {
		return Pool{Workers: cfg.WorkerCount(), ChunkSize: cfg.ChunkSize}
	}
	return Sequential{}
}
