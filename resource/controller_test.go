package resource

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController(t *testing.T) {
	ctx := context.Background()

	t.Run("SerializesByDefault", func(t *testing.T) {
		c := NewController(Config{})

		var inFlight, maxInFlight atomic.Int32
		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				require.NoError(t, c.Acquire(ctx))
				defer c.Release()

				n := inFlight.Add(1)
				for {
					cur := maxInFlight.Load()
					if n <= cur || maxInFlight.CompareAndSwap(cur, n) {
						break
					}
				}
				inFlight.Add(-1)
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), maxInFlight.Load())
	})

	t.Run("CanceledContext", func(t *testing.T) {
		c := NewController(Config{})
		require.NoError(t, c.Acquire(ctx))
		defer c.Release()

		canceled, cancel := context.WithCancel(ctx)
		cancel()
		assert.ErrorIs(t, c.Acquire(canceled), context.Canceled)
	})

	t.Run("NilController", func(t *testing.T) {
		var c *Controller
		assert.NoError(t, c.Acquire(ctx))
		c.Release()
	})
}
