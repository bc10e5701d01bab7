package orchestrator

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"keywarden-go/internal/models"
)

// BatchResult represents the outcome of one item in a batch. The raw
// key is deliberately not echoed back.
type BatchResult struct {
	ID       string                  `json:"id"`
	Provider string                  `json:"provider"`
	Result   models.ValidationResult `json:"result"`
	Err      error                   `json:"-"`
}

// ValidateBatch fans the requests out over a bounded number of
// workers. One item failing never stops the others; per-item errors
// come back in the corresponding BatchResult. Results are returned in
// request order.
func (o *Orchestrator) ValidateBatch(ctx context.Context, requests []models.BatchRequest, opts models.BatchOptions) []BatchResult {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	if concurrency > len(requests) {
		concurrency = len(requests)
	}

	results := make([]BatchResult, len(requests))
	sem := make(chan struct{}, concurrency)

	var wg sync.WaitGroup
	var progressMu sync.Mutex
	completed := 0

	for i, req := range requests {
		wg.Add(1)
		go func(i int, req models.BatchRequest) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			var callOpts models.Options
			if req.Options != nil {
				callOpts = *req.Options
			}

			result, err := o.Validate(ctx, req.Provider, req.Key, callOpts)
			results[i] = BatchResult{
				ID:       uuid.New().String(),
				Provider: req.Provider,
				Result:   result,
				Err:      err,
			}

			if opts.OnProgress != nil {
				progressMu.Lock()
				completed++
				opts.OnProgress(completed, len(requests))
				progressMu.Unlock()
			}
		}(i, req)
	}

	wg.Wait()
	return results
}
