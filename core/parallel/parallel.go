// Package parallel runs independent work items concurrently.
package parallel

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/YuminosukeSato/sciforecast/pkg/errors"
)

// ForEach calls fn for every i in [0, n) using at most limit goroutines. A limit of 1 or less runs
// the items in order on the calling goroutine; a negative limit uses one goroutine per CPU.
//
// The first error cancels the context passed to the remaining items and is returned. A panic in fn
// is returned as a *errors.PanicError naming operation.
func ForEach(ctx context.Context, n, limit int, operation string, fn func(ctx context.Context, i int) error) error {
	if limit < 0 {
		limit = runtime.NumCPU()
	}
	if limit <= 1 || n <= 1 {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return errors.WithStack(err)
			}
			if err := errors.SafeExecute(operation, func() error { return fn(ctx, i) }); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		g.Go(func() (err error) {
			defer errors.Recover(&err, operation)
			if err := gctx.Err(); err != nil {
				return errors.WithStack(err)
			}
			return fn(gctx, i)
		})
	}
	return g.Wait()
}

// Parallelize splits [0, items) into one contiguous chunk per CPU and runs fn on each chunk
// concurrently.
func Parallelize(items int, fn func(start, end int)) {
	if items == 0 {
		return
	}
	numWorkers := min(runtime.NumCPU(), items)
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for start := 0; start < items; start += chunkSize {
		end := min(start+chunkSize, items)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold runs fn sequentially on the whole range when items does not exceed
// threshold, otherwise like Parallelize.
func ParallelizeWithThreshold(items, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}
