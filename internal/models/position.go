package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	PositionActive  = "ACTIVE"
	PositionSettled = "SETTLED"
)

// MiningPosition is one user's fractional ownership of a mining plan.
// GPUFraction and StartedAt are fixed at purchase time.
// Accrued grows monotonically with every hourly tick; the Next* fields hold
// the cursor of the next tick to run (1-based month and day, hour 0-23) so
// the accrual job resumes deterministically after a restart.
type MiningPosition struct {
	ID          uuid.UUID
	CreatedAt   time.Time
	UserID      uuid.UUID
	PlanID      uuid.UUID
	GPUFraction decimal.Decimal
	HashRate    decimal.Decimal
	StartedAt   time.Time
	CycleMonths int
	Status      string
	Accrued     decimal.Decimal

	NextMonth int
	NextDay   int
	NextHour  int
}
