package position

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vkarpenko/gpushare/internal/apperrors"
	"github.com/vkarpenko/gpushare/internal/eventbus"
	"github.com/vkarpenko/gpushare/internal/logger"
	"github.com/vkarpenko/gpushare/internal/models"
	"github.com/vkarpenko/gpushare/internal/repository"
	"github.com/vkarpenko/gpushare/internal/service/mining"
)

const defaultSnapshotLimit = 168 // one simulated week of hourly snapshots

type Service struct {
	storage repository.Storage
	bus     *eventbus.Bus
	clock   mining.Config
	logger  logger.Logger
}

func NewService(storage repository.Storage, bus *eventbus.Bus, clockCfg mining.Config, l logger.Logger) *Service {
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &Service{
		storage: storage,
		bus:     bus,
		clock:   clockCfg,
		logger:  l,
	}
}

// Buy creates an active position for a fraction of the plan's GPU.
// The position carries the plan's full device hash rate; profit scales by
// the owned fraction at accrual time. Both are fixed at purchase.
func (s *Service) Buy(ctx context.Context, userID uuid.UUID, planID uuid.UUID, fraction decimal.Decimal) (models.MiningPosition, error) {
	var pos models.MiningPosition

	if !fraction.IsPositive() || fraction.GreaterThan(decimal.NewFromInt(1)) {
		return pos, fmt.Errorf("%w: gpu fraction must be in (0, 1]", apperrors.ErrInvalidAmount)
	}

	plan, err := s.storage.Plan().GetPlan(ctx, planID)
	if err != nil {
		return pos, err
	}
	if !plan.Active {
		return pos, apperrors.ErrPlanNotFound
	}

	pos, err = s.storage.Position().CreatePosition(ctx, models.MiningPosition{
		UserID:      userID,
		PlanID:      plan.ID,
		GPUFraction: fraction,
		HashRate:    plan.HashRate,
		CycleMonths: plan.CycleMonths,
		Status:      models.PositionActive,
	})
	if err != nil {
		return pos, fmt.Errorf("can't create position. Err: %w", err)
	}

	s.logger.Info("Position created",
		"position_id", pos.ID,
		"user_id", userID,
		"plan_id", plan.ID,
		"gpu_fraction", fraction,
	)

	return pos, nil
}

func (s *Service) ListPlans(ctx context.Context) ([]models.Plan, error) {
	return s.storage.Plan().ListActivePlans(ctx)
}

func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.MiningPosition, error) {
	return s.storage.Position().ListUserPositions(ctx, userID)
}

// ListSnapshots returns recent hourly snapshots of a position owned by the
// user. Requesting someone else's position reads as not found.
func (s *Service) ListSnapshots(ctx context.Context, userID uuid.UUID, positionID uuid.UUID) ([]models.AccrualSnapshot, error) {
	pos, err := s.storage.Position().GetPosition(ctx, positionID)
	if err != nil {
		return nil, err
	}
	if pos.UserID != userID {
		return nil, apperrors.ErrPositionNotFound
	}

	return s.storage.Snapshot().ListForPosition(ctx, positionID, defaultSnapshotLimit)
}

func (s *Service) ListAccruable(ctx context.Context, limit int) ([]models.MiningPosition, error) {
	return s.storage.Position().ListAccruable(ctx, limit)
}

// Tick advances the position by one simulated hour at the given reward rate
// and persists the outcome: the snapshot row, the accrued profit, the moved
// cursor and, at cycle end, settlement. Bus events fire only after the
// transaction commits, so a failed persist never leaks a payout event; a
// retried tick re-publishes from the committed state exactly once.
//
// The cursor update is a compare-and-set: a tick computed from a cursor
// another worker already advanced fails with apperrors.ErrPositionOutdated
// and persists nothing.
//
// Handler failures reported by the bus are logged and do not fail the tick;
// apperrors.ErrTickOutOfRange and db errors do.
func (s *Service) Tick(ctx context.Context, pos models.MiningPosition, rate decimal.Decimal) (models.MiningPosition, error) {
	if pos.Status != models.PositionActive {
		return pos, apperrors.ErrPositionSettled
	}

	clock, err := s.buildClock(ctx, pos)
	if err != nil {
		return pos, err
	}

	res, err := clock.Advance(rate)
	if err != nil {
		return pos, err
	}

	var updated models.MiningPosition
	err = s.storage.InTx(ctx, func(st repository.Storage) error {
		if err := st.Snapshot().CreateSnapshot(ctx, res.Snapshot); err != nil {
			return err
		}

		p, err := st.Position().ApplyTick(ctx, repository.ApplyTickParams{
			PositionID: pos.ID,
			Profit:     res.Snapshot.Profit,
			PrevMonth:  pos.NextMonth,
			PrevDay:    pos.NextDay,
			PrevHour:   pos.NextHour,
			NextMonth:  res.NextMonth,
			NextDay:    res.NextDay,
			NextHour:   res.NextHour,
			Settle:     res.CycleEnded,
		})
		if err != nil {
			return err
		}

		updated = p
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrPositionOutdated), errors.Is(err, apperrors.ErrPositionSettled):
		return pos, err
	default:
		return pos, fmt.Errorf("can't persist tick. Err: %w", err)
	}

	if err := clock.Publish(res); err != nil {
		// Subscriber trouble is not the position's problem
		s.logger.Warn("Event handlers failed during tick", "position_id", pos.ID, "error", err)
	}

	return updated, nil
}

// buildClock rebuilds the clock at the position's persisted cursor, seeding
// the running totals from stored snapshots so boundary events carry full
// sums after a restart mid-day or mid-month.
func (s *Service) buildClock(ctx context.Context, pos models.MiningPosition) (*mining.Clock, error) {
	month := pos.NextMonth
	if month == 0 {
		month = 1
	}
	day := pos.NextDay
	if day == 0 {
		day = 1
	}

	dayTotal, err := s.storage.Snapshot().SumDay(ctx, pos.ID, month, day)
	if err != nil {
		return nil, err
	}

	monthTotal, err := s.storage.Snapshot().SumMonth(ctx, pos.ID, month)
	if err != nil {
		return nil, err
	}

	return mining.NewClock(s.clock, pos, s.bus, mining.WithRunningTotals(dayTotal, monthTotal, pos.Accrued)), nil
}
