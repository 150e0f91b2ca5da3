package accrualjob

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vkarpenko/gpushare/internal/apperrors"
	"github.com/vkarpenko/gpushare/internal/logger"
	"github.com/vkarpenko/gpushare/internal/models"
	"github.com/vkarpenko/gpushare/internal/service/ratefeed"
)

type Consumer struct {
	countWorkers int

	// The rate feed may return rate-limit errors
	// If the feed is rate-limited, workers will wait until the time is up
	waitUntil atomic.Int64

	rates     rateSource
	positions positionService
	logger    logger.Logger
}

func (c *Consumer) Consume(ctx context.Context, in <-chan models.MiningPosition) <-chan struct{} {
	idleStopped := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < c.countWorkers; i++ {
		wg.Add(1)
		go func() {
			c.worker(ctx, in)
			wg.Done()
		}()
	}

	go func() {
		defer close(idleStopped)
		wg.Wait()
		c.logger.Debug("Consumer stopped")
	}()

	return idleStopped
}

func (c *Consumer) worker(ctx context.Context, in <-chan models.MiningPosition) {
	for {
		// Wait until rate limit is passed or context is done
		waitUntil := time.Unix(c.waitUntil.Load(), 0)
		if waitUntil.After(time.Now()) {
			c.logger.Debug("Worker is waiting for rate limit to reset", "wait_until", waitUntil)

			select {
			case <-ctx.Done():
				continue
			case <-time.After(time.Until(waitUntil)):
				c.logger.Debug("Worker finished waiting for rate limit to reset")
				continue
			}
		}

		select {
		case <-ctx.Done():
			return

		case pos, ok := <-in:
			if !ok {
				c.logger.Debug("Consumer worker stopped, input channel closed")
				return
			}

			c.process(ctx, pos)
		}
	}
}

func (c *Consumer) process(ctx context.Context, pos models.MiningPosition) {
	rate, err := c.rates.GetRate(ctx)

	var feedErr *ratefeed.Error
	switch {
	case err == nil:

	case errors.As(err, &feedErr):
		switch feedErr.Code {
		case ratefeed.CodeRetryAfter:
			c.logger.Info("Rate limit exceeded, waiting", "retry_after", feedErr.RetryAfter)
			c.waitUntil.Store(time.Now().Add(feedErr.RetryAfter).Unix())
		case ratefeed.CodeNoContent:
			c.logger.Info("Feed has no current rate, skipping tick", "position_id", pos.ID)
		default:
			c.logger.Error("Unknown error from rate feed", "error", err, "position_id", pos.ID)
		}
		return

	default:
		c.logger.Error("Unexpected error from rate feed", "error", err, "position_id", pos.ID)
		return
	}

	updated, err := c.positions.Tick(ctx, pos, rate.PerGHHour)

	switch {
	case err == nil:
		if updated.Status == models.PositionSettled {
			c.logger.Info("Position cycle completed", "position_id", updated.ID, "accrued", updated.Accrued)
		}

	case errors.Is(err, apperrors.ErrPositionSettled):
		// Raced with another poll batch, nothing to do
		c.logger.Debug("Position already settled", "position_id", pos.ID)

	case errors.Is(err, apperrors.ErrPositionOutdated):
		// Another worker ticked this hour first, the next poll picks the
		// position up at its new cursor
		c.logger.Debug("Position already ticked", "position_id", pos.ID)

	case errors.Is(err, apperrors.ErrTickOutOfRange):
		c.logger.Error("Tick cursor out of range, position needs attention", "error", err, "position_id", pos.ID)

	default:
		c.logger.Error("Failed to run accrual tick", "error", err, "position_id", pos.ID)
	}
}
