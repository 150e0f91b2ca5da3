package accrualjob

import (
	"context"
	"time"

	"github.com/vkarpenko/gpushare/internal/logger"
	"github.com/vkarpenko/gpushare/internal/models"
)

type Producer struct {
	interval  time.Duration
	batchSize int
	logger    logger.Logger
	positions positionService
}

func (p *Producer) Produce(ctx context.Context, out chan<- models.MiningPosition) <-chan struct{} {
	idleStopped := make(chan struct{})
	p.logger.Debug("Starting producer", "interval", p.interval, "batch_size", p.batchSize)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				p.logger.Debug("Producer stopped by context")
				return

			case <-ticker.C:
				p.logger.Debug("Producer tick: fetching accruable positions")

				positions, err := p.positions.ListAccruable(ctx, p.batchSize)
				if err != nil {
					p.logger.Error("Failed to list accruable positions", "error", err)
					continue
				}

				// Send positions to the output channel
				for _, pos := range positions {
					select {
					case <-ctx.Done():
						p.logger.Debug("Producer stopped by context while sending positions")
						return
					case out <- pos:
						p.logger.Debug("Position sent to channel", "position_id", pos.ID)
					}
				}
			}
		}
	}()

	return idleStopped
}
