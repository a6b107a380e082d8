// Package pool runs per-item work on a fixed number of workers.
//
// A failing task never stops its siblings: errors and panics are caught at the
// task boundary, logged, and counted as an empty result.
package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/deusflow/feeddigest/internal/logger"
)

// Stats summarizes one fan-out phase.
type Stats struct {
	Total  int
	Failed int
}

// Collect runs fn for every item and flattens the results. The order of the
// returned slice is not related to the order of items.
func Collect[T, R any](ctx context.Context, workers int, items []T, fn func(context.Context, T) ([]R, error)) ([]R, Stats) {
	var (
		mu  sync.Mutex
		out []R
	)
	stats := ForEach(ctx, workers, items, func(ctx context.Context, item T) error {
		res, err := fn(ctx, item)
		if err != nil {
			return err
		}
		if len(res) == 0 {
			return nil
		}
		mu.Lock()
		out = append(out, res...)
		mu.Unlock()
		return nil
	})
	return out, stats
}

// ForEach runs fn for every item with at most workers running at once and
// waits for all of them.
func ForEach[T any](ctx context.Context, workers int, items []T, fn func(context.Context, T) error) Stats {
	if workers <= 0 {
		workers = 1
	}

	// Plain Group, not WithContext: one task's error must not cancel the others.
	var g errgroup.Group
	g.SetLimit(workers)

	var failed atomic.Int64
	for _, item := range items {
		g.Go(func() error {
			if err := run(ctx, item, fn); err != nil {
				failed.Add(1)
				logger.Debug("Task failed", "err", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return Stats{Total: len(items), Failed: int(failed.Load())}
}

func run[T any](ctx context.Context, item T, fn func(context.Context, T) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Task panicked", "panic", r)
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return fn(ctx, item)
}
