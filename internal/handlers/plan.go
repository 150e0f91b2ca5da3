package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/vkarpenko/gpushare/internal/handlers/render"
	"github.com/vkarpenko/gpushare/internal/logger"
)

func handleListPlans(positionService positionService, l logger.Logger) http.Handler {
	type plan struct {
		ID               uuid.UUID `json:"id"`
		Name             string    `json:"name"`
		HashRate         float64   `json:"hash_rate"`
		PricePerFraction float64   `json:"price_per_fraction"`
		CycleMonths      int       `json:"cycle_months"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		activePlans, err := positionService.ListPlans(r.Context())

		switch err {
		case nil:
			plans := make([]plan, 0, len(activePlans))
			for _, p := range activePlans {
				hashRate, _ := p.HashRate.Float64()
				price, _ := p.PricePerFraction.Float64()
				plans = append(plans, plan{
					ID:               p.ID,
					Name:             p.Name,
					HashRate:         hashRate,
					PricePerFraction: price,
					CycleMonths:      p.CycleMonths,
				})
			}
			render.JSON(w, plans)
			return
		default:
			l.Error("Failed to list plans", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
