package handlers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/vtumart/internal/handlers/render"
	"github.com/nkiryanov/vtumart/internal/logger"
)

func handleListPlans(plans planCatalog, l logger.Logger) http.Handler {
	type plan struct {
		ID        string          `json:"id"`
		NetworkID string          `json:"network_id"`
		Label     string          `json:"label"`
		Price     decimal.Decimal `json:"price"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		networkID := r.URL.Query().Get("network_id")
		if networkID == "" {
			render.ServiceError(w, "Query parameter 'network_id' is required", http.StatusBadRequest)
			return
		}

		catalogue, err := plans.Plans(r.Context(), networkID)
		if err != nil {
			l.Error("Failed to list data plans", "network_id", networkID, "error", err)
			render.ServiceError(w, "Data plan catalogue unavailable", http.StatusBadGateway)
			return
		}

		response := make([]plan, 0, len(catalogue))
		for _, p := range catalogue {
			response = append(response, plan{
				ID:        p.ID,
				NetworkID: p.NetworkID,
				Label:     p.Label,
				Price:     p.Price,
			})
		}
		render.JSON(w, response)
	})
}
