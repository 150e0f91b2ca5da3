package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vkarpenko/gpushare/internal/finance"
	"github.com/vkarpenko/gpushare/internal/handlers/middleware"
	"github.com/vkarpenko/gpushare/internal/logger"
	"github.com/vkarpenko/gpushare/internal/models"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	userService userService,
	positionService positionService,
	walletService walletService,
	referralService referralService,
	logger logger.Logger,
) http.Handler {
	identityMiddleware := middleware.IdentityMiddleware(userService)
	withUser := func(h http.Handler) http.Handler {
		return identityMiddleware(h)
	}

	api := http.NewServeMux()

	api.Handle("GET /plans", handleListPlans(positionService, logger))

	api.Handle("POST /positions", withUser(handleBuyPosition(positionService, logger)))
	api.Handle("GET /positions", withUser(handleListPositions(positionService, logger)))
	api.Handle("GET /positions/{id}/snapshots", withUser(handleListSnapshots(positionService, logger)))

	api.Handle("GET /wallet", withUser(handleWallet(walletService, logger)))
	api.Handle("POST /wallet/withdraw", withUser(handleWithdraw(walletService, logger)))

	api.Handle("GET /referrals", withUser(handleListReferrals(referralService, logger)))
	api.Handle("POST /referrals/{id}/transfer", withUser(handleTransferReward(referralService, logger)))

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", api))

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
	)

	return handler
}

type userService interface {
	// Get user by id
	// Has to return apperrors.ErrUserNotFound if user not found
	GetUser(ctx context.Context, userID uuid.UUID) (models.User, error)
}

type positionService interface {
	ListPlans(ctx context.Context) ([]models.Plan, error)

	// Buy a fraction of a plan's GPU
	// Has to return apperrors.ErrPlanNotFound for unknown or inactive plans
	// and apperrors.ErrInvalidAmount for fractions outside (0, 1]
	Buy(ctx context.Context, userID uuid.UUID, planID uuid.UUID, fraction decimal.Decimal) (models.MiningPosition, error)

	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.MiningPosition, error)

	// List hourly accrual snapshots of the user's own position
	// Has to return apperrors.ErrPositionNotFound for foreign positions too
	ListSnapshots(ctx context.Context, userID uuid.UUID, positionID uuid.UUID) ([]models.AccrualSnapshot, error)
}

type walletService interface {
	GetWallet(ctx context.Context, userID uuid.UUID) (models.WalletAccount, error)

	// Withdraw evaluates the amount against the withdrawal policy
	// Has to return apperrors.ErrFundsNotMatured while the holding period runs
	Withdraw(ctx context.Context, userID uuid.UUID, amountRaw string) (models.WalletAccount, finance.Result, error)
}

type referralService interface {
	ListByReferrer(ctx context.Context, referrerID uuid.UUID) ([]models.ReferralReward, error)

	// Transfer a released reward to the referrer's wallet
	// Has to return apperrors.ErrRewardNotFound for foreign rewards and
	// apperrors.ErrRewardNotWithdrawable for still held ones
	Transfer(ctx context.Context, referrerID uuid.UUID, rewardID uuid.UUID) (models.ReferralReward, error)
}
