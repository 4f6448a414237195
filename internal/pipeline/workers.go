package pipeline

import (
	"context"
	"sync"

	"dailycast/internal/store"
)

// forEachRecord fans records out to a bounded worker pool. fn failures are
// the worker's own responsibility to persist; the pool only stops early when
// the context ends.
func forEachRecord(ctx context.Context, workers int, records []*store.ContentRecord, fn func(context.Context, *store.ContentRecord)) {
	if workers < 1 {
		workers = 1
	}
	if workers > len(records) {
		workers = len(records)
	}
	if len(records) == 0 {
		return
	}

	work := make(chan *store.ContentRecord)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for record := range work {
				if ctx.Err() != nil {
					continue
				}
				fn(ctx, record)
			}
		}()
	}

	for _, record := range records {
		work <- record
	}
	close(work)
	wg.Wait()
}
