package referral

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vkarpenko/gpushare/internal/apperrors"
	"github.com/vkarpenko/gpushare/internal/logger"
	"github.com/vkarpenko/gpushare/internal/models"
	"github.com/vkarpenko/gpushare/internal/repository"
)

// Reward amounts are stored in minor units with two digits (cents).
const minorUnitExponent = -2

// MarkWithdrawable releases the reward for transfer.
// Re-marking is a no-op, so settlement retries are safe.
func MarkWithdrawable(r *models.ReferralReward) {
	if r.Withdrawable {
		return
	}

	r.Withdrawable = true
}

// MarkTransferred records that the reward moved to the referrer's wallet.
// Fails with apperrors.ErrRewardNotWithdrawable if the reward was never
// released. Once both flags are set the reward is terminal and any further
// transition is a no-op.
func MarkTransferred(r *models.ReferralReward) error {
	if r.Withdrawable && r.TransferredToWallet {
		return nil
	}

	if !r.Withdrawable {
		return apperrors.ErrRewardNotWithdrawable
	}

	r.TransferredToWallet = true
	return nil
}

// Amount converts the reward's minor units into wallet money.
func Amount(r models.ReferralReward) decimal.Decimal {
	return decimal.New(r.RewardAmount, minorUnitExponent)
}

// Ledger tracks referral reward state and moves released rewards into
// wallets
type Ledger struct {
	storage repository.Storage
	logger  logger.Logger
}

func NewLedger(storage repository.Storage, l logger.Logger) *Ledger {
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &Ledger{
		storage: storage,
		logger:  l,
	}
}

func (l *Ledger) CreateReward(ctx context.Context, referrerID, refereeID uuid.UUID, amount int64, currency string) (models.ReferralReward, error) {
	if amount < 0 {
		return models.ReferralReward{}, fmt.Errorf("%w: reward amount must not be negative", apperrors.ErrInvalidAmount)
	}

	reward, err := l.storage.Referral().CreateReward(ctx, models.ReferralReward{
		ReferrerID:     referrerID,
		RefereeID:      refereeID,
		RewardAmount:   amount,
		RewardCurrency: currency,
	})
	if err != nil {
		return reward, fmt.Errorf("can't create referral reward. Err: %w", err)
	}

	return reward, nil
}

func (l *Ledger) ListByReferrer(ctx context.Context, referrerID uuid.UUID) ([]models.ReferralReward, error) {
	return l.storage.Referral().ListByReferrer(ctx, referrerID)
}

// MarkWithdrawable releases the stored reward. Idempotent.
func (l *Ledger) MarkWithdrawable(ctx context.Context, rewardID uuid.UUID) (models.ReferralReward, error) {
	var reward models.ReferralReward

	err := l.storage.InTx(ctx, func(s repository.Storage) error {
		r, err := s.Referral().GetReward(ctx, rewardID)
		if err != nil {
			return err
		}

		if r.Withdrawable {
			reward = r
			return nil
		}

		MarkWithdrawable(&r)

		reward, err = s.Referral().SetRewardFlags(ctx, r.ID, r.Withdrawable, r.TransferredToWallet)
		return err
	})
	if err != nil {
		return reward, err
	}

	return reward, nil
}

// Transfer marks the reward transferred and credits the referrer's wallet
// in the same transaction. The wallet credit matures immediately: the funds
// were already released when the reward became withdrawable.
func (l *Ledger) Transfer(ctx context.Context, referrerID uuid.UUID, rewardID uuid.UUID) (models.ReferralReward, error) {
	var reward models.ReferralReward

	err := l.storage.InTx(ctx, func(s repository.Storage) error {
		r, err := s.Referral().GetReward(ctx, rewardID)
		if err != nil {
			return err
		}

		// Rewards of other referrers look like they don't exist
		if r.ReferrerID != referrerID {
			return apperrors.ErrRewardNotFound
		}

		if r.Withdrawable && r.TransferredToWallet {
			// Terminal reward, nothing to do
			reward = r
			return nil
		}

		if err := MarkTransferred(&r); err != nil {
			return err
		}

		reward, err = s.Referral().SetRewardFlags(ctx, r.ID, r.Withdrawable, r.TransferredToWallet)
		if err != nil {
			return err
		}

		if _, err := s.Wallet().GetOrCreateWallet(ctx, r.ReferrerID); err != nil {
			return err
		}

		_, err = s.Wallet().Credit(ctx, r.ReferrerID, Amount(r), time.Now())
		return err
	})
	if err != nil {
		return reward, err
	}

	l.logger.Info("Referral reward transferred", "reward_id", reward.ID, "referrer_id", reward.ReferrerID)
	return reward, nil
}
