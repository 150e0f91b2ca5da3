package finance

import (
	"time"

	"github.com/vkarpenko/gpushare/internal/models"
)

// Available reports whether the wallet's funds are released for withdrawal.
// The boundary is non-strict: funds are available exactly at AvailableAt.
func Available(w models.WalletAccount, now time.Time) bool {
	return !now.Before(w.AvailableAt)
}
