package ingest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool(t *testing.T) {
	ctx := context.Background()

	t.Run("RunsAllTasks", func(t *testing.T) {
		wp := NewWorkerPool(4)
		defer wp.Close()

		var mu sync.Mutex
		seen := make(map[int]struct{})

		var wg sync.WaitGroup
		for i := range 100 {
			i := i
			wg.Add(1)
			require.NoError(t, wp.Submit(ctx, func() {
				defer wg.Done()
				mu.Lock()
				seen[i] = struct{}{}
				mu.Unlock()
			}))
		}
		wg.Wait()

		assert.Len(t, seen, 100)
	})

	t.Run("SubmitAfterClose", func(t *testing.T) {
		wp := NewWorkerPool(1)
		wp.Close()

		err := wp.Submit(ctx, func() {})
		assert.ErrorIs(t, err, ErrPoolClosed)
	})

	t.Run("CloseIsIdempotent", func(t *testing.T) {
		wp := NewWorkerPool(1)
		wp.Close()
		wp.Close()
	})

	t.Run("CloseWaitsForInflight", func(t *testing.T) {
		wp := NewWorkerPool(2)

		done := make(chan struct{})
		require.NoError(t, wp.Submit(ctx, func() { close(done) }))

		wp.Close()
		select {
		case <-done:
		default:
			t.Fatal("task did not finish before Close returned")
		}
	})
}
