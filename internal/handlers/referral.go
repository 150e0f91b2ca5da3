package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vkarpenko/gpushare/internal/apperrors"
	"github.com/vkarpenko/gpushare/internal/handlers/render"
	"github.com/vkarpenko/gpushare/internal/handlers/userctx"
	"github.com/vkarpenko/gpushare/internal/logger"
	"github.com/vkarpenko/gpushare/internal/models"
	"github.com/vkarpenko/gpushare/internal/service/referral"
)

type rewardResponse struct {
	ID           uuid.UUID `json:"id"`
	RefereeID    uuid.UUID `json:"referee_id"`
	Amount       float64   `json:"amount"`
	Currency     string    `json:"currency"`
	Withdrawable bool      `json:"withdrawable"`
	Transferred  bool      `json:"transferred"`
	CreatedAt    time.Time `json:"created_at"`
}

func newRewardResponse(r models.ReferralReward) rewardResponse {
	amount, _ := referral.Amount(r).Float64()
	return rewardResponse{
		ID:           r.ID,
		RefereeID:    r.RefereeID,
		Amount:       amount,
		Currency:     r.RewardCurrency,
		Withdrawable: r.Withdrawable,
		Transferred:  r.TransferredToWallet,
		CreatedAt:    r.CreatedAt,
	}
}

func handleListReferrals(referralService referralService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		rewards, err := referralService.ListByReferrer(r.Context(), user.ID)

		switch err {
		case nil:
			res := make([]rewardResponse, 0, len(rewards))
			for _, reward := range rewards {
				res = append(res, newRewardResponse(reward))
			}
			render.JSON(w, res)
			return
		default:
			l.Error("Failed to list referral rewards", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleTransferReward(referralService referralService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		rewardID, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			render.ServiceError(w, "Invalid reward id", http.StatusBadRequest)
			return
		}

		reward, err := referralService.Transfer(r.Context(), user.ID, rewardID)

		switch {
		case err == nil:
			render.JSON(w, newRewardResponse(reward))
			return
		case errors.Is(err, apperrors.ErrRewardNotFound):
			render.ServiceError(w, "Reward not found", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrRewardNotWithdrawable):
			render.ServiceError(w, "Reward is not withdrawable yet", http.StatusConflict)
		default:
			l.Error("Failed to transfer reward", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
