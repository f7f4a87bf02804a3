// Package async provides a scoped worker pool for batches of independent,
// stateless tasks. A pool lives only for the duration of one batch: workers
// are spun up on Map and torn down when the batch completes or the first
// task fails.
package async

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// PoolConfig defines batch execution parameters.
type PoolConfig struct {
	Workers int // Maximum concurrent tasks; <=0 means GOMAXPROCS
}

// DefaultPoolConfig returns the default batch configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{Workers: runtime.GOMAXPROCS(0)}
}

// Pool executes batches of independent tasks with bounded concurrency.
// A failure in any task cancels the remaining tasks and fails the batch;
// there are no retries and no partial results.
type Pool struct {
	config    PoolConfig
	completed atomic.Int64
	failed    atomic.Int64
}

// NewPool creates a pool with the given configuration.
func NewPool(config PoolConfig) *Pool {
	if config.Workers <= 0 {
		config.Workers = runtime.GOMAXPROCS(0)
	}
	return &Pool{config: config}
}

// Completed reports the number of tasks finished successfully across batches.
func (p *Pool) Completed() int64 { return p.completed.Load() }

// Failed reports the number of failed tasks across batches.
func (p *Pool) Failed() int64 { return p.failed.Load() }

// Map applies fn to every item and returns the results indexed by input
// position. Result identity travels with the task index, never with
// completion order. The first error aborts the whole batch.
func Map[T, R any](ctx context.Context, p *Pool, items []T, fn func(ctx context.Context, i int, item T) (R, error)) ([]R, error) {
	if len(items) == 0 {
		return nil, nil
	}

	results := make([]R, len(items))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Workers)

	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			// A failed task cancels ctx; tasks not yet started stay unstarted.
			if err := ctx.Err(); err != nil {
				return err
			}
			out, err := fn(ctx, i, item)
			if err != nil {
				p.failed.Add(1)
				return fmt.Errorf("task %d: %w", i, err)
			}
			results[i] = out
			p.completed.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// MapN is Map over the index range [0, n) for tasks that are defined by
// their position alone.
func MapN[R any](ctx context.Context, p *Pool, n int, fn func(ctx context.Context, i int) (R, error)) ([]R, error) {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return Map(ctx, p, idx, func(ctx context.Context, i int, _ int) (R, error) {
		return fn(ctx, i)
	})
}
