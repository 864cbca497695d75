// Package workpool runs a bounded pool of workers over a fixed batch of
// items. Each item is processed by exactly one worker; the batch is the
// unit of completion.
package workpool

import (
	"context"
	"sync"
)

// ForEach feeds items to at most workers goroutines and blocks until all
// are processed or the context is done. Items not yet dequeued when the
// context ends are skipped; in-flight items are not interrupted.
func ForEach[T any](ctx context.Context, workers int, items []T, fn func(context.Context, T)) {
	if workers <= 0 {
		workers = 1
	}
	if workers > len(items) {
		workers = len(items)
	}
	if workers == 0 {
		return
	}

	feed := make(chan T)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for item := range feed {
				fn(ctx, item)
			}
		}()
	}

	for _, item := range items {
		select {
		case <-ctx.Done():
			close(feed)
			wg.Wait()
			return
		case feed <- item:
		}
	}
	close(feed)
	wg.Wait()
}
