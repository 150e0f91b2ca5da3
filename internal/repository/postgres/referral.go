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
)

type ReferralRepo struct {
	DB DBTX
}

const rewardColumns = `id, created_at, referrer_id, referee_id, reward_amount, reward_currency, withdrawable, transferred`

const createReward = `-- name: CreateReward
INSERT INTO referral_rewards (id, created_at, referrer_id, referee_id, reward_amount, reward_currency, withdrawable, transferred)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + rewardColumns

func (r *ReferralRepo) CreateReward(ctx context.Context, reward models.ReferralReward) (models.ReferralReward, error) {
	if reward.ID == uuid.Nil {
		reward.ID = uuid.New()
	}
	if reward.CreatedAt.IsZero() {
		reward.CreatedAt = time.Now()
	}

	rows, _ := r.DB.Query(ctx, createReward,
		reward.ID, reward.CreatedAt, reward.ReferrerID, reward.RefereeID,
		reward.RewardAmount, reward.RewardCurrency,
		reward.Withdrawable, reward.TransferredToWallet,
	)
	reward, err := pgx.CollectOneRow(rows, rowToReward)
	if err != nil {
		return reward, fmt.Errorf("db error: %w", err)
	}

	return reward, nil
}

const getReward = `-- name: GetReward
SELECT ` + rewardColumns + ` FROM referral_rewards
WHERE id = $1
`

func (r *ReferralRepo) GetReward(ctx context.Context, rewardID uuid.UUID) (models.ReferralReward, error) {
	rows, _ := r.DB.Query(ctx, getReward, rewardID)
	reward, err := pgx.CollectOneRow(rows, rowToReward)

	switch {
	case err == nil:
		return reward, nil
	case errors.Is(err, pgx.ErrNoRows):
		return reward, apperrors.ErrRewardNotFound
	default:
		return reward, fmt.Errorf("db error: %w", err)
	}
}

const listByReferrer = `-- name: ListByReferrer
SELECT ` + rewardColumns + ` FROM referral_rewards
WHERE referrer_id = $1
ORDER BY created_at DESC
`

func (r *ReferralRepo) ListByReferrer(ctx context.Context, referrerID uuid.UUID) ([]models.ReferralReward, error) {
	rows, _ := r.DB.Query(ctx, listByReferrer, referrerID)
	rewards, err := pgx.CollectRows(rows, rowToReward)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return rewards, nil
}

const setRewardFlags = `-- name: SetRewardFlags
UPDATE referral_rewards
SET withdrawable = $2,
    transferred = $3
WHERE id = $1
RETURNING ` + rewardColumns

func (r *ReferralRepo) SetRewardFlags(ctx context.Context, rewardID uuid.UUID, withdrawable bool, transferred bool) (models.ReferralReward, error) {
	rows, _ := r.DB.Query(ctx, setRewardFlags, rewardID, withdrawable, transferred)
	reward, err := pgx.CollectOneRow(rows, rowToReward)

	switch {
	case err == nil:
		return reward, nil
	case errors.Is(err, pgx.ErrNoRows):
		return reward, apperrors.ErrRewardNotFound
	default:
		return reward, fmt.Errorf("db error: %w", err)
	}
}

func rowToReward(row pgx.CollectableRow) (models.ReferralReward, error) {
	var rw models.ReferralReward
	err := row.Scan(
		&rw.ID, &rw.CreatedAt, &rw.ReferrerID, &rw.RefereeID,
		&rw.RewardAmount, &rw.RewardCurrency,
		&rw.Withdrawable, &rw.TransferredToWallet,
	)
	return rw, err
}
