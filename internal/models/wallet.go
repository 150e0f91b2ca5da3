package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletAccount holds a user's withdrawable funds.
// Funds are released for withdrawal only when now >= AvailableAt.
type WalletAccount struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Balance     decimal.Decimal
	Withdrawn   decimal.Decimal
	AvailableAt time.Time
}
