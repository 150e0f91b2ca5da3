package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/vkarpenko/gpushare/internal/apperrors"
	"github.com/vkarpenko/gpushare/internal/handlers/render"
	"github.com/vkarpenko/gpushare/internal/handlers/userctx"
	"github.com/vkarpenko/gpushare/internal/logger"
)

func handleWallet(walletService walletService, l logger.Logger) http.Handler {
	type response struct {
		Balance     float64   `json:"balance"`
		Withdrawn   float64   `json:"withdrawn"`
		AvailableAt time.Time `json:"available_at"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		wallet, err := walletService.GetWallet(r.Context(), user.ID)

		switch err {
		case nil:
			balance, _ := wallet.Balance.Float64()
			withdrawn, _ := wallet.Withdrawn.Float64()
			render.JSON(w, response{balance, withdrawn, wallet.AvailableAt})
			return
		default:
			l.Error("Failed to get wallet", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleWithdraw(walletService walletService, l logger.Logger) http.Handler {
	type request struct {
		Amount string `json:"amount" validate:"required"`
	}

	type response struct {
		Eligible  bool    `json:"eligible"`
		Net       float64 `json:"net"`
		Max       float64 `json:"max"`
		Message   string  `json:"message,omitempty"`
		Balance   float64 `json:"balance"`
		Withdrawn float64 `json:"withdrawn"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		wallet, result, err := walletService.Withdraw(r.Context(), user.ID, req.Amount)

		switch {
		case err == nil:
			net, _ := result.Net.Float64()
			maxAmount, _ := result.Max.Float64()
			balance, _ := wallet.Balance.Float64()
			withdrawn, _ := wallet.Withdrawn.Float64()
			res := response{
				Eligible:  result.Eligible,
				Net:       net,
				Max:       maxAmount,
				Message:   result.Message,
				Balance:   balance,
				Withdrawn: withdrawn,
			}
			if result.Eligible {
				render.JSON(w, res)
				return
			}
			render.JSONWithStatus(w, res, http.StatusUnprocessableEntity)
			return
		case errors.Is(err, apperrors.ErrFundsNotMatured):
			render.ServiceError(w, "Funds are still in the holding period", http.StatusPaymentRequired)
		case errors.Is(err, apperrors.ErrBalanceInsufficient):
			render.ServiceError(w, "Insufficient balance", http.StatusPaymentRequired)
		default:
			l.Error("Failed to withdraw", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
