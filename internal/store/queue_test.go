package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueCoalescesPushes(t *testing.T) {
	ctx := context.Background()
	gate := make(chan struct{})
	var mu sync.Mutex
	var batches []map[string]int

	q := NewUpdateQueue(func(ctx context.Context, updates map[string]int) error {
		<-gate
		mu.Lock()
		batches = append(batches, updates)
		mu.Unlock()
		return nil
	})

	var wg sync.WaitGroup
	var pushMu sync.Mutex
	var pushErrs []error
	push := func(key string, value int) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := q.Push(ctx, key, value)
			pushMu.Lock()
			pushErrs = append(pushErrs, err)
			pushMu.Unlock()
		}()
	}

	// First push opens batch one and blocks in the flush.
	push("a", 1)
	time.Sleep(50 * time.Millisecond)

	// These arrive while batch one is flushing and must share batch two,
	// with the later push for "b" winning.
	push("b", 1)
	push("b", 2)
	push("c", 3)
	time.Sleep(50 * time.Millisecond)

	gate <- struct{}{}
	gate <- struct{}{}
	wg.Wait()

	for _, err := range pushErrs {
		require.NoError(t, err)
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, batches, 2, "four pushes should flush in two batches")
	assert.Equal(t, map[string]int{"a": 1}, batches[0])
	assert.Len(t, batches[1], 2)
	assert.Equal(t, 2, batches[1]["b"], "last push for a key wins")
	assert.Equal(t, 3, batches[1]["c"])
}

func TestQueuePropagatesFlushError(t *testing.T) {
	ctx := context.Background()
	flushErr := errors.New("write failed")

	q := NewUpdateQueue(func(ctx context.Context, updates map[string]int) error {
		return flushErr
	})

	require.ErrorIs(t, q.Push(ctx, "a", 1), flushErr)
}

func TestQueueSequentialPushes(t *testing.T) {
	ctx := context.Background()
	var mu sync.Mutex
	total := 0

	q := NewUpdateQueue(func(ctx context.Context, updates map[string]int) error {
		mu.Lock()
		defer mu.Unlock()
		for _, v := range updates {
			total += v
		}
		return nil
	})

	for i := 1; i <= 5; i++ {
		require.NoError(t, q.Push(ctx, "k", i))
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 15, total, "every accepted push must be reflected in a flush")
}
