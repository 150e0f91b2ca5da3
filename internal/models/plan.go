package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Plan is a catalog entry users buy fractional shares of.
// HashRate is the full GPU hash rate in GH/s; a position gets its fraction of it.
type Plan struct {
	ID               uuid.UUID
	Name             string
	HashRate         decimal.Decimal
	PricePerFraction decimal.Decimal
	CycleMonths      int
	Active           bool
}
