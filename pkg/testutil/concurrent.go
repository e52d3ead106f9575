package testutil

import (
	"errors"
	"sync"
	"sync/atomic"

	"pollster/pkg/platform/sentinel"
)

// ConcurrentResult tracks outcomes of concurrent test operations.
type ConcurrentResult struct {
	Successes int32
	Errors    int32
	Conflicts int32
	NotFounds int32
}

// Total returns the total number of operations executed.
func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.Errors + r.Conflicts + r.NotFounds
}

// RunConcurrent executes fn in parallel goroutines and buckets the outcomes
// into success, conflict, not found and other errors.
func RunConcurrent(goroutines int, fn func(idx int) error) *ConcurrentResult {
	var wg sync.WaitGroup
	var successes, errs, conflicts, notFounds atomic.Int32

	for i := range goroutines {
		wg.Go(func() {
			err := fn(i)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			case errors.Is(err, sentinel.ErrNotFound):
				notFounds.Add(1)
			default:
				errs.Add(1)
			}
		})
	}
	wg.Wait()

	return &ConcurrentResult{
		Successes: successes.Load(),
		Errors:    errs.Load(),
		Conflicts: conflicts.Load(),
		NotFounds: notFounds.Load(),
	}
}

// RunConcurrentCount executes fn in parallel and counts how many calls
// reported true. Use it for decisions that are not errors, such as
// "allowed by the limiter" or "warning issued".
func RunConcurrentCount(goroutines int, fn func(idx int) bool) int32 {
	var wg sync.WaitGroup
	var hits atomic.Int32
	for i := range goroutines {
		wg.Go(func() {
			if fn(i) {
				hits.Add(1)
			}
		})
	}
	wg.Wait()
	return hits.Load()
}
