package jsonapi

import (
	"context"
	"sync"
	"time"
)

// Batch defaults.
const (
	DefaultBatchConcurrency = 5
	DefaultBatchTimeout     = 30 * time.Second
)

// BatchResult is the outcome of one Find in a batch.
type BatchResult struct {
	ID       string
	Document *Document
	Error    error
	Duration time.Duration
}

// Success reports whether the Find succeeded.
func (r BatchResult) Success() bool {
	return r.Error == nil
}

// BatchFinder runs many Find calls concurrently. Each id gets its own chain
// from the prepare function, so no query state is shared between them.
type BatchFinder struct {
	builder     *Builder
	prepare     func(*Query) *Query
	concurrency int
	timeout     time.Duration
}

// NewBatchFinder creates a batch finder. prepare may be nil; otherwise it
// decorates every per-id chain (includes, fields, ...).
func NewBatchFinder(builder *Builder, prepare func(*Query) *Query, concurrency int) *BatchFinder {
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}

	return &BatchFinder{
		builder:     builder,
		prepare:     prepare,
		concurrency: concurrency,
		timeout:     DefaultBatchTimeout,
	}
}

// SetTimeout sets the per-Find timeout.
func (b *BatchFinder) SetTimeout(timeout time.Duration) {
	b.timeout = timeout
}

// Find resolves all ids; results keep the order of ids.
func (b *BatchFinder) Find(ctx context.Context, ids []string) []BatchResult {
	results := make([]BatchResult, len(ids))

	var waitGroup sync.WaitGroup

	semaphore := make(chan struct{}, b.concurrency)

	for index, id := range ids {
		waitGroup.Add(1)

		go func(index int, id string) {
			defer waitGroup.Done()

			if !acquire(ctx, semaphore) {
				results[index] = BatchResult{ID: id, Error: ctx.Err()}

				return
			}

			defer func() { <-semaphore }()

			opCtx, cancel := context.WithTimeout(ctx, b.timeout)
			defer cancel()

			query := b.builder.Query()
			if b.prepare != nil {
				query = b.prepare(query)
			}

			start := time.Now()
			doc, err := query.Find(opCtx, id)

			results[index] = BatchResult{
				ID:       id,
				Document: doc,
				Error:    err,
				Duration: time.Since(start),
			}
		}(index, id)
	}

	waitGroup.Wait()

	return results
}

// acquire takes a semaphore slot unless ctx is done first. A slot won after
// cancellation is handed back.
func acquire(ctx context.Context, semaphore chan struct{}) bool {
	select {
	case semaphore <- struct{}{}:
		if ctx.Err() != nil {
			<-semaphore

			return false
		}

		return true
	case <-ctx.Done():
		return false
	}
}
