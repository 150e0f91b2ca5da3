package models

import (
	"time"

	"github.com/google/uuid"
)

// ReferralReward is one referral relationship's reward state.
// RewardAmount is in minor units of RewardCurrency and is set once.
// TransferredToWallet may only become true after Withdrawable is true;
// once both flags are set the reward is terminal.
type ReferralReward struct {
	ID                  uuid.UUID
	CreatedAt           time.Time
	ReferrerID          uuid.UUID
	RefereeID           uuid.UUID
	RewardAmount        int64
	RewardCurrency      string
	Withdrawable        bool
	TransferredToWallet bool
}
