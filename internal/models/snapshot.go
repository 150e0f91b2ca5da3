package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccrualSnapshot is the profit computed for one hourly tick.
// Month and Day are 1-based, Hour is 0-23. Profit is never negative.
type AccrualSnapshot struct {
	PositionID uuid.UUID
	PlanID     uuid.UUID
	Month      int
	Day        int
	Hour       int
	Profit     decimal.Decimal
}
