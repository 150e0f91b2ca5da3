package accrualjob

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vkarpenko/gpushare/internal/logger"
	"github.com/vkarpenko/gpushare/internal/models"
	"github.com/vkarpenko/gpushare/internal/service/ratefeed"
)

type fakeRates struct {
	mu   sync.Mutex
	errs []error // returned first, one per call
	rate ratefeed.Rate
}

func (f *fakeRates) GetRate(ctx context.Context) (ratefeed.Rate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return ratefeed.Rate{}, err
	}

	return f.rate, nil
}

type fakePositions struct {
	mu        sync.Mutex
	positions []models.MiningPosition
	ticks     map[uuid.UUID]int
}

func newFakePositions(count int) *fakePositions {
	f := &fakePositions{ticks: make(map[uuid.UUID]int)}
	for i := 0; i < count; i++ {
		f.positions = append(f.positions, models.MiningPosition{
			ID:          uuid.New(),
			Status:      models.PositionActive,
			CycleMonths: 1,
			NextMonth:   1,
			NextDay:     1,
		})
	}
	return f
}

func (f *fakePositions) ListAccruable(ctx context.Context, limit int) ([]models.MiningPosition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]models.MiningPosition, 0, limit)
	for _, p := range f.positions {
		if p.Status == models.PositionActive && len(out) < limit {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePositions) Tick(ctx context.Context, pos models.MiningPosition, rate decimal.Decimal) (models.MiningPosition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ticks[pos.ID]++
	return pos, nil
}

func (f *fakePositions) totalTicks() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	total := 0
	for _, n := range f.ticks {
		total += n
	}
	return total
}

func newTestJob(rates rateSource, positions positionService, interval time.Duration) *Job {
	l := logger.NewNoOpLogger()

	return &Job{
		consumer: &Consumer{
			countWorkers: 2,
			rates:        rates,
			positions:    positions,
			logger:       l,
		},
		producer: &Producer{
			interval:  interval,
			batchSize: 10,
			positions: positions,
			logger:    l,
		},
	}
}

func TestJob_Process(t *testing.T) {
	t.Run("ticks every accruable position", func(t *testing.T) {
		rates := &fakeRates{rate: ratefeed.Rate{PerGHHour: decimal.RequireFromString("0.01")}}
		positions := newFakePositions(3)

		job := newTestJob(rates, positions, 20*time.Millisecond)

		ctx, cancel := context.WithCancel(t.Context())
		stopped := job.Process(ctx)

		require.Eventually(t, func() bool {
			return positions.totalTicks() >= 3
		}, 3*time.Second, 10*time.Millisecond, "every position should get at least one tick")

		cancel()

		select {
		case <-stopped:
		case <-time.After(3 * time.Second):
			t.Fatal("job did not stop after context cancellation")
		}
	})

	t.Run("feed errors do not stop the job", func(t *testing.T) {
		rates := &fakeRates{
			errs: []error{
				ratefeed.NewError(ratefeed.CodeNoContent, 0, nil),
				ratefeed.NewError(ratefeed.CodeUnknown, 0, nil),
			},
			rate: ratefeed.Rate{PerGHHour: decimal.RequireFromString("0.01")},
		}
		positions := newFakePositions(1)

		job := newTestJob(rates, positions, 20*time.Millisecond)

		ctx, cancel := context.WithCancel(t.Context())
		stopped := job.Process(ctx)

		require.Eventually(t, func() bool {
			return positions.totalTicks() >= 1
		}, 3*time.Second, 10*time.Millisecond, "job should recover after feed errors")

		cancel()
		<-stopped
	})
}
