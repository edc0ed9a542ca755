package taskgroup

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/imgharvest/internal/types"
)

func TestRunAllJoinsAndKeepsIndexOrder(t *testing.T) {
	results := RunAll(context.Background(), 4, 20, func(ctx context.Context, i int) types.Result[int] {
		// Later units finish first.
		time.Sleep(time.Duration(20-i) * time.Millisecond)
		if i%5 == 0 {
			return types.Failed[int](errors.New("unit failed"))
		}
		return types.Ok(i * i)
	})

	require.Len(t, results, 20)
	for i, r := range results {
		if i%5 == 0 {
			assert.False(t, r.IsOK(), "unit %d", i)
			continue
		}
		require.True(t, r.IsOK(), "unit %d", i)
		assert.Equal(t, i*i, r.Value)
	}
}

func TestRunAllRespectsWorkerLimit(t *testing.T) {
	var inFlight, peak atomic.Int32

	RunAll(context.Background(), 3, 30, func(ctx context.Context, i int) types.Result[struct{}] {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return types.Ok(struct{}{})
	})

	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestRunAllFailureDoesNotCancelSiblings(t *testing.T) {
	results := RunAll(context.Background(), 2, 4, func(ctx context.Context, i int) types.Result[string] {
		if i == 0 {
			return types.Failed[string](errors.New("first unit failed"))
		}
		time.Sleep(10 * time.Millisecond)
		if ctx.Err() != nil {
			return types.Failed[string](ctx.Err())
		}
		return types.Ok("done")
	})

	for _, r := range results[1:] {
		assert.True(t, r.IsOK())
	}
}

func TestRunAllEmpty(t *testing.T) {
	results := RunAll(context.Background(), 10, 0, func(ctx context.Context, i int) types.Result[int] {
		t.Fatal("must not be called")
		return types.Ok(0)
	})
	assert.Empty(t, results)
}

func TestRunSequentialSpacesUnits(t *testing.T) {
	var starts []time.Time
	results := RunSequential(context.Background(), 30*time.Millisecond, 3, func(ctx context.Context, i int) types.Result[int] {
		starts = append(starts, time.Now())
		return types.Ok(i)
	})

	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, i, r.Value)
	}
	assert.GreaterOrEqual(t, starts[2].Sub(starts[0]), 50*time.Millisecond)
}

func TestRunSequentialCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := RunSequential(ctx, time.Hour, 2, func(ctx context.Context, i int) types.Result[int] {
		return types.Ok(i)
	})
	for _, r := range results {
		assert.False(t, r.IsOK())
	}
}
