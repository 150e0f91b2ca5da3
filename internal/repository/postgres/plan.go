package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vkarpenko/gpushare/internal/apperrors"
	"github.com/vkarpenko/gpushare/internal/models"
)

type PlanRepo struct {
	DB DBTX
}

const createPlan = `-- name: CreatePlan
INSERT INTO plans (id, name, hash_rate, price_per_fraction, cycle_months, active)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, name, hash_rate, price_per_fraction, cycle_months, active
`

func (r *PlanRepo) CreatePlan(ctx context.Context, plan models.Plan) (models.Plan, error) {
	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}

	rows, _ := r.DB.Query(ctx, createPlan, plan.ID, plan.Name, plan.HashRate, plan.PricePerFraction, plan.CycleMonths, plan.Active)
	plan, err := pgx.CollectOneRow(rows, rowToPlan)
	if err != nil {
		return plan, fmt.Errorf("db error: %w", err)
	}

	return plan, nil
}

const getPlan = `-- name: GetPlan
SELECT id, name, hash_rate, price_per_fraction, cycle_months, active FROM plans
WHERE id = $1
`

func (r *PlanRepo) GetPlan(ctx context.Context, planID uuid.UUID) (models.Plan, error) {
	rows, _ := r.DB.Query(ctx, getPlan, planID)
	plan, err := pgx.CollectOneRow(rows, rowToPlan)

	switch {
	case err == nil:
		return plan, nil
	case errors.Is(err, pgx.ErrNoRows):
		return plan, apperrors.ErrPlanNotFound
	default:
		return plan, fmt.Errorf("db error: %w", err)
	}
}

const listActivePlans = `-- name: ListActivePlans
SELECT id, name, hash_rate, price_per_fraction, cycle_months, active FROM plans
WHERE active
ORDER BY name
`

func (r *PlanRepo) ListActivePlans(ctx context.Context) ([]models.Plan, error) {
	rows, _ := r.DB.Query(ctx, listActivePlans)
	plans, err := pgx.CollectRows(rows, rowToPlan)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return plans, nil
}

func rowToPlan(row pgx.CollectableRow) (models.Plan, error) {
	var p models.Plan
	err := row.Scan(&p.ID, &p.Name, &p.HashRate, &p.PricePerFraction, &p.CycleMonths, &p.Active)
	return p, err
}
