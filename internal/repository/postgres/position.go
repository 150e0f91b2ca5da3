package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vkarpenko/gpushare/internal/apperrors"
	"github.com/vkarpenko/gpushare/internal/models"
	"github.com/vkarpenko/gpushare/internal/repository"
)

type PositionRepo struct {
	DB DBTX
}

const positionColumns = `id, created_at, user_id, plan_id, gpu_fraction, hash_rate, started_at, cycle_months, status, accrued, next_month, next_day, next_hour`

const createPosition = `-- name: CreatePosition
INSERT INTO positions (id, created_at, user_id, plan_id, gpu_fraction, hash_rate, started_at, cycle_months, status, accrued, next_month, next_day, next_hour)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, 1, 1, 0)
RETURNING ` + positionColumns

func (r *PositionRepo) CreatePosition(ctx context.Context, pos models.MiningPosition) (models.MiningPosition, error) {
	now := time.Now()

	if pos.ID == uuid.Nil {
		pos.ID = uuid.New()
	}
	if pos.StartedAt.IsZero() {
		pos.StartedAt = now
	}
	if pos.Status == "" {
		pos.Status = models.PositionActive
	}

	rows, _ := r.DB.Query(ctx, createPosition,
		pos.ID, now, pos.UserID, pos.PlanID, pos.GPUFraction, pos.HashRate,
		pos.StartedAt, pos.CycleMonths, pos.Status,
	)
	pos, err := pgx.CollectOneRow(rows, rowToPosition)
	if err != nil {
		return pos, fmt.Errorf("db error: %w", err)
	}

	return pos, nil
}

const getPosition = `-- name: GetPosition
SELECT ` + positionColumns + ` FROM positions
WHERE id = $1
`

func (r *PositionRepo) GetPosition(ctx context.Context, positionID uuid.UUID) (models.MiningPosition, error) {
	rows, _ := r.DB.Query(ctx, getPosition, positionID)
	pos, err := pgx.CollectOneRow(rows, rowToPosition)

	switch {
	case err == nil:
		return pos, nil
	case errors.Is(err, pgx.ErrNoRows):
		return pos, apperrors.ErrPositionNotFound
	default:
		return pos, fmt.Errorf("db error: %w", err)
	}
}

const listUserPositions = `-- name: ListUserPositions
SELECT ` + positionColumns + ` FROM positions
WHERE user_id = $1
ORDER BY created_at DESC
`

func (r *PositionRepo) ListUserPositions(ctx context.Context, userID uuid.UUID) ([]models.MiningPosition, error) {
	rows, _ := r.DB.Query(ctx, listUserPositions, userID)
	positions, err := pgx.CollectRows(rows, rowToPosition)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return positions, nil
}

const listAccruable = `-- name: ListAccruable
SELECT ` + positionColumns + ` FROM positions
WHERE status = $1
ORDER BY created_at
LIMIT $2
`

func (r *PositionRepo) ListAccruable(ctx context.Context, limit int) ([]models.MiningPosition, error) {
	rows, _ := r.DB.Query(ctx, listAccruable, models.PositionActive, limit)
	positions, err := pgx.CollectRows(rows, rowToPosition)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return positions, nil
}

const applyTick = `-- name: ApplyTick
UPDATE positions
SET accrued = accrued + $2,
    next_month = $3,
    next_day = $4,
    next_hour = $5,
    status = CASE WHEN $6 THEN 'SETTLED' ELSE status END
WHERE id = $1 AND status = 'ACTIVE'
  AND next_month = $7 AND next_day = $8 AND next_hour = $9
RETURNING ` + positionColumns

func (r *PositionRepo) ApplyTick(ctx context.Context, params repository.ApplyTickParams) (models.MiningPosition, error) {
	rows, _ := r.DB.Query(ctx, applyTick,
		params.PositionID, params.Profit,
		params.NextMonth, params.NextDay, params.NextHour,
		params.Settle,
		params.PrevMonth, params.PrevDay, params.PrevHour,
	)
	pos, err := pgx.CollectOneRow(rows, rowToPosition)

	switch {
	case err == nil:
		return pos, nil
	case errors.Is(err, pgx.ErrNoRows):
		// Not found, no longer active, or the cursor moved under us
		current, getErr := r.GetPosition(ctx, params.PositionID)
		if getErr != nil {
			return pos, getErr
		}
		if current.Status != models.PositionActive {
			return pos, apperrors.ErrPositionSettled
		}
		return pos, apperrors.ErrPositionOutdated
	default:
		return pos, fmt.Errorf("db error: %w", err)
	}
}

func rowToPosition(row pgx.CollectableRow) (models.MiningPosition, error) {
	var p models.MiningPosition
	err := row.Scan(
		&p.ID, &p.CreatedAt, &p.UserID, &p.PlanID, &p.GPUFraction, &p.HashRate,
		&p.StartedAt, &p.CycleMonths, &p.Status, &p.Accrued,
		&p.NextMonth, &p.NextDay, &p.NextHour,
	)
	return p, err
}
