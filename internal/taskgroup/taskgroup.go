// Package taskgroup runs independent units of work and joins on all of them.
// Every unit reports a types.Result, so a failed unit never cancels its
// siblings.
package taskgroup

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/IshaanNene/imgharvest/internal/types"
)

// Func is one unit of work. i is the unit's index in [0, n).
type Func[T any] func(ctx context.Context, i int) types.Result[T]

// RunAll runs n units with at most workers in flight and waits for all of
// them. results[i] is the outcome of unit i regardless of completion order.
func RunAll[T any](ctx context.Context, workers, n int, fn Func[T]) []types.Result[T] {
	results := make([]types.Result[T], n)
	if n == 0 {
		return results
	}
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			results[i] = fn(gctx, i)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// RunSequential runs n units one at a time, in index order, spaced at least
// delay apart. Units not started because ctx ended are reported as failed.
func RunSequential[T any](ctx context.Context, delay time.Duration, n int, fn Func[T]) []types.Result[T] {
	results := make([]types.Result[T], n)
	pacer := NewPacer(delay)
	for i := 0; i < n; i++ {
		if err := pacer.Wait(ctx); err != nil {
			results[i] = types.Failed[T](err)
			continue
		}
		results[i] = fn(ctx, i)
	}
	return results
}

// NewPacer returns a limiter that admits one event per delay. The first
// Wait returns immediately. A non-positive delay never blocks.
func NewPacer(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}
