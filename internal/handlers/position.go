package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vkarpenko/gpushare/internal/apperrors"
	"github.com/vkarpenko/gpushare/internal/handlers/render"
	"github.com/vkarpenko/gpushare/internal/handlers/userctx"
	"github.com/vkarpenko/gpushare/internal/logger"
	"github.com/vkarpenko/gpushare/internal/models"
)

type positionResponse struct {
	ID          uuid.UUID `json:"id"`
	PlanID      uuid.UUID `json:"plan_id"`
	GPUFraction string    `json:"gpu_fraction"`
	HashRate    float64   `json:"hash_rate"`
	Status      string    `json:"status"`
	Accrued     float64   `json:"accrued"`
	StartedAt   time.Time `json:"started_at"`
	CycleMonths int       `json:"cycle_months"`
}

func newPositionResponse(p models.MiningPosition) positionResponse {
	hashRate, _ := p.HashRate.Float64()
	accrued, _ := p.Accrued.Float64()
	return positionResponse{
		ID:          p.ID,
		PlanID:      p.PlanID,
		GPUFraction: p.GPUFraction.String(),
		HashRate:    hashRate,
		Status:      p.Status,
		Accrued:     accrued,
		StartedAt:   p.StartedAt,
		CycleMonths: p.CycleMonths,
	}
}

func handleBuyPosition(positionService positionService, l logger.Logger) http.Handler {
	type request struct {
		PlanID      uuid.UUID       `json:"plan_id" validate:"required"`
		GPUFraction decimal.Decimal `json:"gpu_fraction" validate:"required,gpufraction"`
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

		pos, err := positionService.Buy(r.Context(), user.ID, req.PlanID, req.GPUFraction)

		switch {
		case err == nil:
			render.JSONWithStatus(w, newPositionResponse(pos), http.StatusCreated)
		case errors.Is(err, apperrors.ErrPlanNotFound):
			render.ServiceError(w, "Plan not found", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrInvalidAmount):
			render.ServiceError(w, "Invalid GPU fraction", http.StatusUnprocessableEntity)
		default:
			l.Error("Failed to buy position", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleListPositions(positionService positionService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		positions, err := positionService.ListForUser(r.Context(), user.ID)

		switch err {
		case nil:
			res := make([]positionResponse, 0, len(positions))
			for _, p := range positions {
				res = append(res, newPositionResponse(p))
			}
			render.JSON(w, res)
			return
		default:
			l.Error("Failed to list positions", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleListSnapshots(positionService positionService, l logger.Logger) http.Handler {
	type snapshot struct {
		Month  int     `json:"month"`
		Day    int     `json:"day"`
		Hour   int     `json:"hour"`
		Profit float64 `json:"profit"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		positionID, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			render.ServiceError(w, "Invalid position id", http.StatusBadRequest)
			return
		}

		snapshots, err := positionService.ListSnapshots(r.Context(), user.ID, positionID)

		switch {
		case err == nil:
			res := make([]snapshot, 0, len(snapshots))
			for _, s := range snapshots {
				profit, _ := s.Profit.Float64()
				res = append(res, snapshot{
					Month:  s.Month,
					Day:    s.Day,
					Hour:   s.Hour,
					Profit: profit,
				})
			}
			render.JSON(w, res)
			return
		case errors.Is(err, apperrors.ErrPositionNotFound):
			render.ServiceError(w, "Position not found", http.StatusNotFound)
		default:
			l.Error("Failed to list snapshots", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
