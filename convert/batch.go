package convert

import (
	"context"
	"sync"

	"github.com/pyrite-io/smelt/types"
)

// BatchItem is one independent conversion within a batch. Each item owns
// its own Validated instance; two items must never share one.
type BatchItem struct {
	Desc   Descriptor
	V      Validated
	Config PipelineConfig
}

// BatchResult pairs an item's index with its terminal status.
type BatchResult struct {
	// Index is the item's position in the batch.
	Index int
	// Status is the pipeline's terminal status.
	Status types.Status
	// Err is set when the pipeline could not be constructed or misused.
	Err error
}

// RunBatch executes independent conversions concurrently, at most
// concurrency at a time. Steps within each conversion still execute
// strictly in order; only whole conversions overlap. Results are returned
// indexed by item position.
//
// Canceling ctx cancels every in-flight conversion and skips unstarted
// ones (their status reports OutcomeCanceled).
func RunBatch(ctx context.Context, items []BatchItem, concurrency int) []BatchResult {
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]BatchResult, len(items))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, item := range items {
		wg.Add(1)
		go func(i int, item BatchItem) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i] = BatchResult{Index: i, Status: types.CanceledStatus("canceled before start")}
				return
			}

			p, err := NewPipeline(item.Desc, item.V, item.Config)
			if err != nil {
				results[i] = BatchResult{Index: i, Err: err}
				return
			}

			status, err := p.Run(ctx)
			results[i] = BatchResult{Index: i, Status: status, Err: err}
		}(i, item)
	}

	wg.Wait()
	return results
}
