package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/vkarpenko/gpushare/internal/models"
)

type SnapshotRepo struct {
	DB DBTX
}

// Re-running a tick writes the same row, so the unique index on the tick
// coordinates makes the insert a no-op; the accrued total is guarded
// separately by the cursor check in ApplyTick.
const createSnapshot = `-- name: CreateSnapshot
INSERT INTO snapshots (position_id, plan_id, month, day, hour, profit)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (position_id, month, day, hour) DO NOTHING
`

func (r *SnapshotRepo) CreateSnapshot(ctx context.Context, snap models.AccrualSnapshot) error {
	_, err := r.DB.Exec(ctx, createSnapshot,
		snap.PositionID, snap.PlanID, snap.Month, snap.Day, snap.Hour, snap.Profit,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

const listForPosition = `-- name: ListForPosition
SELECT position_id, plan_id, month, day, hour, profit FROM snapshots
WHERE position_id = $1
ORDER BY month DESC, day DESC, hour DESC
LIMIT $2
`

func (r *SnapshotRepo) ListForPosition(ctx context.Context, positionID uuid.UUID, limit int) ([]models.AccrualSnapshot, error) {
	rows, _ := r.DB.Query(ctx, listForPosition, positionID, limit)
	snaps, err := pgx.CollectRows(rows, rowToSnapshot)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return snaps, nil
}

const sumDay = `-- name: SumDay
SELECT COALESCE(SUM(profit), 0) FROM snapshots
WHERE position_id = $1 AND month = $2 AND day = $3
`

func (r *SnapshotRepo) SumDay(ctx context.Context, positionID uuid.UUID, month int, day int) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.DB.QueryRow(ctx, sumDay, positionID, month, day).Scan(&sum)
	if err != nil {
		return sum, fmt.Errorf("db error: %w", err)
	}

	return sum, nil
}

const sumMonth = `-- name: SumMonth
SELECT COALESCE(SUM(profit), 0) FROM snapshots
WHERE position_id = $1 AND month = $2
`

func (r *SnapshotRepo) SumMonth(ctx context.Context, positionID uuid.UUID, month int) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.DB.QueryRow(ctx, sumMonth, positionID, month).Scan(&sum)
	if err != nil {
		return sum, fmt.Errorf("db error: %w", err)
	}

	return sum, nil
}

func rowToSnapshot(row pgx.CollectableRow) (models.AccrualSnapshot, error) {
	var s models.AccrualSnapshot
	err := row.Scan(&s.PositionID, &s.PlanID, &s.Month, &s.Day, &s.Hour, &s.Profit)
	return s, err
}
