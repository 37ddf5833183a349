package store

import (
	"context"
	"sync"
)

// UpdateQueue coalesces concurrent keyed updates into single flush
// cycles. Every push accepted before a flush begins is included in it;
// pushes arriving during a flush wait for the next one. Within one batch
// the last push for a key wins. This removes the read-modify-write race
// on a shared blob when many writers update it in quick succession.
type UpdateQueue[T any] struct {
	mu       sync.Mutex
	pending  map[string]T
	batch    *updateBatch
	flushing bool
	apply    func(ctx context.Context, updates map[string]T) error
}

type updateBatch struct {
	done chan struct{}
	err  error
}

// NewUpdateQueue creates a queue that merges batches via apply. The apply
// callback receives every pending update of the batch and must make them
// durable before returning.
func NewUpdateQueue[T any](apply func(ctx context.Context, updates map[string]T) error) *UpdateQueue[T] {
	return &UpdateQueue[T]{
		pending: make(map[string]T),
		apply:   apply,
	}
}

// Push queues an update and blocks until the batch containing it has been
// durably merged, or ctx is done. A ctx error does not cancel the flush
// itself; the update still lands in its batch.
func (q *UpdateQueue[T]) Push(ctx context.Context, key string, value T) error {
	q.mu.Lock()
	q.pending[key] = value
	if q.batch == nil {
		q.batch = &updateBatch{done: make(chan struct{})}
	}
	b := q.batch
	if !q.flushing {
		q.flushing = true
		go q.drain()
	}
	q.mu.Unlock()

	select {
	case <-b.done:
		return b.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain flushes batches until no pushes remain. Runs on its own
// goroutine; at most one drain is active at a time.
func (q *UpdateQueue[T]) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.flushing = false
			q.mu.Unlock()
			return
		}
		updates := q.pending
		b := q.batch
		q.pending = make(map[string]T)
		q.batch = nil
		q.mu.Unlock()

		// Background context: the batch serves every pusher, so no single
		// caller's cancellation may abort it.
		b.err = q.apply(context.Background(), updates)
		close(b.done)
	}
}
