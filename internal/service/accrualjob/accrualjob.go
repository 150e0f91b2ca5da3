package accrualjob

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vkarpenko/gpushare/internal/logger"
	"github.com/vkarpenko/gpushare/internal/models"
	"github.com/vkarpenko/gpushare/internal/service/ratefeed"
)

const (
	defaultCountWorkers    = 4                // Number of workers to run accrual ticks
	defaultProduceInterval = 10 * time.Second // Interval between accruable position polls
	defaultBatchSize       = 100              // Positions fetched per poll
)

type rateSource interface {
	GetRate(ctx context.Context) (ratefeed.Rate, error)
}

type positionService interface {
	ListAccruable(ctx context.Context, limit int) ([]models.MiningPosition, error)
	Tick(ctx context.Context, pos models.MiningPosition, rate decimal.Decimal) (models.MiningPosition, error)
}

type Opts struct {
	CountWorkers    int
	ProduceInterval time.Duration
	BatchSize       int
}

// Job periodically advances every active mining position by one simulated
// hour, pulling the reward rate from the feed.
type Job struct {
	consumer *Consumer
	producer *Producer
}

func New(feedAddr string, opts Opts, l logger.Logger, positions positionService) *Job {
	if opts.CountWorkers <= 0 {
		opts.CountWorkers = defaultCountWorkers
	}
	if opts.ProduceInterval <= 0 {
		opts.ProduceInterval = defaultProduceInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}

	client := ratefeed.NewClient(feedAddr, l)

	return &Job{
		consumer: &Consumer{
			countWorkers: opts.CountWorkers,
			rates:        client,
			positions:    positions,
			logger:       l,
		},
		producer: &Producer{
			interval:  opts.ProduceInterval,
			batchSize: opts.BatchSize,
			positions: positions,
			logger:    l,
		},
	}
}

func (j *Job) Process(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})

	positionChan := make(chan models.MiningPosition)

	// Start producer to poll accruable positions
	producerStopped := j.producer.Produce(ctx, positionChan)

	// Start consumer to run ticks
	consumerStopped := j.consumer.Consume(ctx, positionChan)

	go func() {
		defer close(idleStopped)
		defer close(positionChan)
		<-producerStopped
		<-consumerStopped
		j.consumer.logger.Debug("Accrual job stopped")
	}()

	return idleStopped
}
