package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vkarpenko/gpushare/internal/models"
)

// Storage aggregates all repositories over one connection or transaction
type Storage interface {
	User() UserRepo
	Plan() PlanRepo
	Position() PositionRepo
	Snapshot() SnapshotRepo
	Wallet() WalletRepo
	Referral() ReferralRepo

	// Run fn within a db transaction; every repo taken from the passed
	// Storage shares it
	InTx(ctx context.Context, fn func(Storage) error) error
}

type UserRepo interface {
	// Create user
	// If user with username exists already has to return apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, username string) (models.User, error)

	// Get user by its id
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
}

type PlanRepo interface {
	CreatePlan(ctx context.Context, plan models.Plan) (models.Plan, error)

	// If plan not found must return apperrors.ErrPlanNotFound
	GetPlan(ctx context.Context, planID uuid.UUID) (models.Plan, error)

	ListActivePlans(ctx context.Context) ([]models.Plan, error)
}

// ApplyTickParams persists the outcome of one clock tick atomically:
// the accrued profit, the advanced cursor and, at cycle end, settlement.
//
// Prev* hold the stored cursor the tick was computed from. The update is a
// compare-and-set on them: a tick computed from a stale cursor (another
// worker advanced the position meanwhile) updates nothing and fails with
// apperrors.ErrPositionOutdated, so the same hour is never accrued twice.
type ApplyTickParams struct {
	PositionID uuid.UUID
	Profit     decimal.Decimal
	PrevMonth  int
	PrevDay    int
	PrevHour   int
	NextMonth  int
	NextDay    int
	NextHour   int
	Settle     bool
}

type PositionRepo interface {
	CreatePosition(ctx context.Context, pos models.MiningPosition) (models.MiningPosition, error)

	// If position not found must return apperrors.ErrPositionNotFound
	GetPosition(ctx context.Context, positionID uuid.UUID) (models.MiningPosition, error)

	ListUserPositions(ctx context.Context, userID uuid.UUID) ([]models.MiningPosition, error)

	// Active positions ready for the next accrual tick, oldest first
	ListAccruable(ctx context.Context, limit int) ([]models.MiningPosition, error)

	// If position is already settled must return apperrors.ErrPositionSettled
	ApplyTick(ctx context.Context, params ApplyTickParams) (models.MiningPosition, error)
}

type SnapshotRepo interface {
	CreateSnapshot(ctx context.Context, snap models.AccrualSnapshot) error

	// Most recent snapshots first
	ListForPosition(ctx context.Context, positionID uuid.UUID, limit int) ([]models.AccrualSnapshot, error)

	// Sum of persisted hourly profits, used to reseed clock totals on resume
	SumDay(ctx context.Context, positionID uuid.UUID, month int, day int) (decimal.Decimal, error)
	SumMonth(ctx context.Context, positionID uuid.UUID, month int) (decimal.Decimal, error)
}

type WalletRepo interface {
	// Get wallet creating it on first use
	GetOrCreateWallet(ctx context.Context, userID uuid.UUID) (models.WalletAccount, error)

	// If wallet not found must return apperrors.ErrWalletNotFound
	GetWallet(ctx context.Context, userID uuid.UUID) (models.WalletAccount, error)

	// Add amount to the wallet balance and push the maturity timestamp
	Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, availableAt time.Time) (models.WalletAccount, error)

	// Debit the gross amount and add it to Withdrawn
	// If balance is not enough must return apperrors.ErrBalanceInsufficient
	Withdraw(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (models.WalletAccount, error)
}

type ReferralRepo interface {
	CreateReward(ctx context.Context, reward models.ReferralReward) (models.ReferralReward, error)

	// If reward not found must return apperrors.ErrRewardNotFound
	GetReward(ctx context.Context, rewardID uuid.UUID) (models.ReferralReward, error)

	ListByReferrer(ctx context.Context, referrerID uuid.UUID) ([]models.ReferralReward, error)

	SetRewardFlags(ctx context.Context, rewardID uuid.UUID, withdrawable bool, transferred bool) (models.ReferralReward, error)
}
