// Package resource guards access to the external embedding model.
package resource

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits for the extraction stage.
type Config struct {
	// MaxConcurrentExtractions bounds concurrent calls into the model.
	// The model is a single-instance, non-reentrant resource, so this
	// defaults to 1.
	MaxConcurrentExtractions int64

	// ExtractionsPerSec limits how fast batches are submitted to the
	// model. If 0, unlimited.
	ExtractionsPerSec float64
}

// Controller serializes batch submissions to the embedding model.
type Controller struct {
	sem     *semaphore.Weighted
	limiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxConcurrentExtractions <= 0 {
		cfg.MaxConcurrentExtractions = 1
	}

	c := &Controller{
		sem: semaphore.NewWeighted(cfg.MaxConcurrentExtractions),
	}
	if cfg.ExtractionsPerSec > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.ExtractionsPerSec), 1)
	}
	return c
}

// Acquire blocks until an extraction slot is available (and the rate
// limiter admits the call) or ctx is canceled.
func (c *Controller) Acquire(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return c.sem.Acquire(ctx, 1)
}

// Release returns the extraction slot.
func (c *Controller) Release() {
	if c == nil {
		return
	}
	c.sem.Release(1)
}
