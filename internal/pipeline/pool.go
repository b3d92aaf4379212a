package pipeline

import (
	"context"
	"sync"
)

// fanOut runs fn for every job on n workers and hands each result to collect
// on the calling goroutine, so collect needs no locking. Dispatch stops once
// ctx is done; jobs a worker already holds still finish.
func fanOut[J, R any](ctx context.Context, n int, jobs []J, fn func(context.Context, J) R, collect func(R)) {
	if len(jobs) == 0 {
		return
	}
	n = min(max(n, 1), len(jobs))

	in := make(chan J)
	out := make(chan R)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range in {
				out <- fn(ctx, j)
			}
		}()
	}

	go func() {
		defer close(in)
		for _, j := range jobs {
			if ctx.Err() != nil {
				return
			}
			select {
			case in <- j:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	for r := range out {
		collect(r)
	}
}
