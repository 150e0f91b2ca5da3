package position

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vkarpenko/gpushare/internal/apperrors"
	"github.com/vkarpenko/gpushare/internal/eventbus"
	"github.com/vkarpenko/gpushare/internal/models"
	"github.com/vkarpenko/gpushare/internal/repository"
	"github.com/vkarpenko/gpushare/internal/repository/postgres"
	"github.com/vkarpenko/gpushare/internal/service/mining"
	"github.com/vkarpenko/gpushare/internal/testutil"
)

func TestPositionService(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	// One-day months keep full-cycle tests at a sane tick count
	clockCfg := mining.Config{DaysPerMonth: 1}
	rate := decimal.RequireFromString("0.01")

	withService := func(t *testing.T, bus *eventbus.Bus, fn func(s *Service, storage repository.Storage)) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			fn(NewService(storage, bus, clockCfg, nil), storage)
		})
	}

	seed := func(t *testing.T, storage repository.Storage) (models.User, models.Plan) {
		user, err := storage.User().CreateUser(t.Context(), "miner")
		require.NoError(t, err)

		plan, err := storage.Plan().CreatePlan(t.Context(), models.Plan{
			Name:             "A100 shared rig",
			HashRate:         decimal.NewFromInt(400),
			PricePerFraction: decimal.NewFromInt(250),
			CycleMonths:      2,
			Active:           true,
		})
		require.NoError(t, err)

		return user, plan
	}

	t.Run("Buy", func(t *testing.T) {
		t.Run("creates active position with scaled hash rate", func(t *testing.T) {
			withService(t, nil, func(s *Service, storage repository.Storage) {
				user, plan := seed(t, storage)

				pos, err := s.Buy(t.Context(), user.ID, plan.ID, decimal.RequireFromString("0.25"))

				require.NoError(t, err)
				require.Equal(t, models.PositionActive, pos.Status)
				require.True(t, pos.HashRate.Equal(decimal.NewFromInt(400)), "full device rate is kept")
				require.Equal(t, plan.CycleMonths, pos.CycleMonths)
				require.Equal(t, 1, pos.NextMonth)
				require.Equal(t, 1, pos.NextDay)
				require.Equal(t, 0, pos.NextHour)
			})
		})

		t.Run("fraction out of range", func(t *testing.T) {
			withService(t, nil, func(s *Service, storage repository.Storage) {
				user, plan := seed(t, storage)

				for _, fraction := range []string{"0", "-0.5", "1.5"} {
					_, err := s.Buy(t.Context(), user.ID, plan.ID, decimal.RequireFromString(fraction))
					require.ErrorIs(t, err, apperrors.ErrInvalidAmount, "fraction %s", fraction)
				}
			})
		})

		t.Run("unknown plan", func(t *testing.T) {
			withService(t, nil, func(s *Service, storage repository.Storage) {
				user, _ := seed(t, storage)

				_, err := s.Buy(t.Context(), user.ID, uuid.New(), decimal.RequireFromString("0.5"))
				require.ErrorIs(t, err, apperrors.ErrPlanNotFound)
			})
		})
	})

	t.Run("Tick", func(t *testing.T) {
		t.Run("persists snapshot, profit and cursor", func(t *testing.T) {
			withService(t, nil, func(s *Service, storage repository.Storage) {
				user, plan := seed(t, storage)
				pos, err := s.Buy(t.Context(), user.ID, plan.ID, decimal.RequireFromString("0.25"))
				require.NoError(t, err)

				// profit = 400 GH/s * 0.25 fraction * 0.01 = 1 per hour
				updated, err := s.Tick(t.Context(), pos, rate)

				require.NoError(t, err)
				require.True(t, updated.Accrued.Equal(decimal.NewFromInt(1)), "accrued %s", updated.Accrued)
				require.Equal(t, 1, updated.NextHour)

				snaps, err := s.ListSnapshots(t.Context(), user.ID, pos.ID)
				require.NoError(t, err)
				require.Len(t, snaps, 1)
				require.True(t, snaps[0].Profit.Equal(decimal.NewFromInt(1)))
			})
		})

		t.Run("full day sums exactly and fires day event", func(t *testing.T) {
			bus := eventbus.New(nil)

			var dayTotals []decimal.Decimal
			bus.Subscribe(eventbus.KindDay, func(e eventbus.Event) error {
				dayTotals = append(dayTotals, e.DayTotal)
				return nil
			})

			withService(t, bus, func(s *Service, storage repository.Storage) {
				user, plan := seed(t, storage)
				pos, err := s.Buy(t.Context(), user.ID, plan.ID, decimal.RequireFromString("0.25"))
				require.NoError(t, err)

				for i := 0; i < mining.HoursPerDay; i++ {
					pos, err = s.Tick(t.Context(), pos, rate)
					require.NoError(t, err)
				}

				// 24 hours * 1 profit
				require.True(t, pos.Accrued.Equal(decimal.NewFromInt(24)), "accrued %s", pos.Accrued)
				require.Len(t, dayTotals, 1)
				require.True(t, dayTotals[0].Equal(decimal.NewFromInt(24)), "day total must equal the sum of hourly profits")

				daySum, err := storage.Snapshot().SumDay(t.Context(), pos.ID, 1, 1)
				require.NoError(t, err)
				require.True(t, daySum.Equal(dayTotals[0]), "persisted sum matches the published total")
			})
		})

		t.Run("cycle completion settles position and pays out", func(t *testing.T) {
			bus := eventbus.New(nil)

			var payout decimal.Decimal
			bus.Subscribe(eventbus.KindCycleEnded, func(e eventbus.Event) error {
				payout = e.CyclePayout
				return nil
			})

			withService(t, bus, func(s *Service, storage repository.Storage) {
				user, plan := seed(t, storage)
				pos, err := s.Buy(t.Context(), user.ID, plan.ID, decimal.RequireFromString("0.25"))
				require.NoError(t, err)

				// 2 months * 1 day * 24 hours with DaysPerMonth=1
				ticks := pos.CycleMonths * clockCfg.DaysPerMonth * mining.HoursPerDay
				for i := 0; i < ticks; i++ {
					pos, err = s.Tick(t.Context(), pos, rate)
					require.NoError(t, err)
				}

				require.Equal(t, models.PositionSettled, pos.Status)
				require.True(t, payout.Equal(decimal.NewFromInt(48)), "cycle payout %s", payout)
				require.True(t, pos.Accrued.Equal(payout), "accrued equals the final payout")

				// Settled positions do not tick again
				_, err = s.Tick(t.Context(), pos, rate)
				require.ErrorIs(t, err, apperrors.ErrPositionSettled)

				accruable, err := s.ListAccruable(t.Context(), 10)
				require.NoError(t, err)
				require.Empty(t, accruable)
			})
		})

		t.Run("resume mid-day keeps boundary totals exact", func(t *testing.T) {
			bus := eventbus.New(nil)

			var dayTotals []decimal.Decimal
			bus.Subscribe(eventbus.KindDay, func(e eventbus.Event) error {
				dayTotals = append(dayTotals, e.DayTotal)
				return nil
			})

			withService(t, bus, func(s *Service, storage repository.Storage) {
				user, plan := seed(t, storage)
				pos, err := s.Buy(t.Context(), user.ID, plan.ID, decimal.RequireFromString("0.25"))
				require.NoError(t, err)

				// First half of the day through one service instance
				for i := 0; i < 12; i++ {
					pos, err = s.Tick(t.Context(), pos, rate)
					require.NoError(t, err)
				}

				// "Restart": a fresh service rebuilds the clock from the db
				restarted := NewService(storage, bus, clockCfg, nil)
				fromDB, err := storage.Position().GetPosition(t.Context(), pos.ID)
				require.NoError(t, err)

				for i := 0; i < 12; i++ {
					fromDB, err = restarted.Tick(t.Context(), fromDB, rate)
					require.NoError(t, err)
				}

				require.Len(t, dayTotals, 1)
				require.True(t, dayTotals[0].Equal(decimal.NewFromInt(24)), "day total after restart %s", dayTotals[0])
			})
		})
	})

	t.Run("Tick retries", func(t *testing.T) {
		t.Run("stale cursor does not double accrue", func(t *testing.T) {
			withService(t, nil, func(s *Service, storage repository.Storage) {
				user, plan := seed(t, storage)
				pos, err := s.Buy(t.Context(), user.ID, plan.ID, decimal.RequireFromString("0.25"))
				require.NoError(t, err)

				updated, err := s.Tick(t.Context(), pos, rate)
				require.NoError(t, err)

				// Re-running the tick from the position as it was before the
				// first tick must change nothing
				_, err = s.Tick(t.Context(), pos, rate)
				require.ErrorIs(t, err, apperrors.ErrPositionOutdated)

				fromDB, err := storage.Position().GetPosition(t.Context(), pos.ID)
				require.NoError(t, err)
				require.True(t, fromDB.Accrued.Equal(decimal.NewFromInt(1)), "accrued %s", fromDB.Accrued)
				require.Equal(t, updated.NextHour, fromDB.NextHour)

				daySum, err := storage.Snapshot().SumDay(t.Context(), pos.ID, 1, 1)
				require.NoError(t, err)
				require.True(t, fromDB.Accrued.Equal(daySum), "accrued must equal the snapshot sum")
			})
		})

		t.Run("payout event fires only after the tick persists", func(t *testing.T) {
			bus := eventbus.New(nil)

			payouts := 0
			bus.Subscribe(eventbus.KindCycleEnded, func(e eventbus.Event) error {
				payouts++
				return nil
			})

			testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
				storage := postgres.NewStorage(tx)
				failNext := false
				s := NewService(&flakyStorage{storage, &failNext}, bus, clockCfg, nil)

				user, plan := seed(t, storage)
				pos, err := s.Buy(t.Context(), user.ID, plan.ID, decimal.RequireFromString("0.25"))
				require.NoError(t, err)

				// Everything except the cycle's final hour
				ticks := pos.CycleMonths*clockCfg.DaysPerMonth*mining.HoursPerDay - 1
				for i := 0; i < ticks; i++ {
					pos, err = s.Tick(t.Context(), pos, rate)
					require.NoError(t, err)
				}

				// Final hour: persistence fails, the payout must not leak
				failNext = true
				_, err = s.Tick(t.Context(), pos, rate)
				require.Error(t, err)
				require.Zero(t, payouts, "rolled back tick must not publish a payout")

				// The retry persists and pays out exactly once
				pos, err = s.Tick(t.Context(), pos, rate)
				require.NoError(t, err)
				require.Equal(t, models.PositionSettled, pos.Status)
				require.Equal(t, 1, payouts, "cycle payout must be published exactly once")
			})
		})
	})

	t.Run("ListSnapshots hides other users positions", func(t *testing.T) {
		withService(t, nil, func(s *Service, storage repository.Storage) {
			user, plan := seed(t, storage)
			stranger, err := storage.User().CreateUser(t.Context(), "stranger")
			require.NoError(t, err)

			pos, err := s.Buy(t.Context(), user.ID, plan.ID, decimal.RequireFromString("0.5"))
			require.NoError(t, err)

			_, err = s.ListSnapshots(t.Context(), stranger.ID, pos.ID)
			require.ErrorIs(t, err, apperrors.ErrPositionNotFound)
		})
	})
}

// flakyStorage fails the next ApplyTick once, simulating a connection lost
// mid-tick.
type flakyStorage struct {
	repository.Storage
	failNext *bool
}

func (s *flakyStorage) Position() repository.PositionRepo {
	return &flakyPositionRepo{s.Storage.Position(), s.failNext}
}

func (s *flakyStorage) InTx(ctx context.Context, fn func(repository.Storage) error) error {
	return s.Storage.InTx(ctx, func(st repository.Storage) error {
		return fn(&flakyStorage{st, s.failNext})
	})
}

type flakyPositionRepo struct {
	repository.PositionRepo
	failNext *bool
}

func (r *flakyPositionRepo) ApplyTick(ctx context.Context, params repository.ApplyTickParams) (models.MiningPosition, error) {
	if *r.failNext {
		*r.failNext = false
		return models.MiningPosition{}, errors.New("connection reset by peer")
	}
	return r.PositionRepo.ApplyTick(ctx, params)
}
