package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/vtumart/internal/apperrors"
	"github.com/nkiryanov/vtumart/internal/handlers/render"
	"github.com/nkiryanov/vtumart/internal/handlers/userctx"
	"github.com/nkiryanov/vtumart/internal/logger"
	"github.com/nkiryanov/vtumart/internal/models"
	"github.com/nkiryanov/vtumart/internal/service/purchase"
)

type purchaseResponse struct {
	Ref           string          `json:"ref"`
	Kind          string          `json:"kind"`
	Status        string          `json:"status"`
	Phone         string          `json:"phone"`
	Amount        decimal.Decimal `json:"amount"`
	ProviderRef   *string         `json:"provider_ref,omitempty"`
	FailureReason *string         `json:"failure_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

func toPurchaseResponse(p models.Purchase) purchaseResponse {
	return purchaseResponse{
		Ref:           p.Ref,
		Kind:          p.Kind,
		Status:        p.Status,
		Phone:         p.Phone,
		Amount:        p.Amount,
		ProviderRef:   p.ProviderRef,
		FailureReason: p.FailureReason,
		CreatedAt:     p.CreatedAt,
	}
}

// purchaseStatusCode: a fulfilled purchase is plain 200, an ambiguous one
// is accepted for verification and answered 202
func purchaseStatusCode(p models.Purchase) int {
	if p.Status == models.PurchaseAmbiguous {
		return http.StatusAccepted
	}
	return http.StatusOK
}

func handleAirtimePurchase(purchaseService purchaseService, l logger.Logger) http.Handler {
	type request struct {
		Phone     string          `json:"phone" validate:"required,msisdn"`
		ServiceID string          `json:"service_id" validate:"required"`
		Amount    decimal.Decimal `json:"amount" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		p, err := purchaseService.Submit(r.Context(), purchase.SubmitRequest{
			UserID:    userID,
			Kind:      models.PurchaseKindAirtime,
			Phone:     data.Phone,
			ServiceID: data.ServiceID,
			Amount:    data.Amount,
		})

		renderSubmitOutcome(w, l, p, err)
	})
}

func handleDataPurchase(purchaseService purchaseService, plans planCatalog, l logger.Logger) http.Handler {
	type request struct {
		Phone     string `json:"phone" validate:"required,msisdn"`
		NetworkID string `json:"network_id" validate:"required"`
		PlanID    string `json:"plan_id" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		// The price never comes from the client, it is resolved from the
		// provider's catalogue
		plan, found, err := plans.Plan(r.Context(), data.NetworkID, data.PlanID)
		if err != nil {
			l.Error("Failed to resolve data plan", "network_id", data.NetworkID, "plan_id", data.PlanID, "error", err)
			render.ServiceError(w, "Data plan catalogue unavailable", http.StatusBadGateway)
			return
		}
		if !found {
			render.ServiceError(w, "Unknown data plan", http.StatusUnprocessableEntity)
			return
		}

		p, err := purchaseService.Submit(r.Context(), purchase.SubmitRequest{
			UserID:    userID,
			Kind:      models.PurchaseKindData,
			Phone:     data.Phone,
			NetworkID: data.NetworkID,
			PlanID:    plan.ID,
			PlanPrice: plan.Price,
		})

		renderSubmitOutcome(w, l, p, err)
	})
}

func renderSubmitOutcome(w http.ResponseWriter, l logger.Logger, p models.Purchase, err error) {
	switch {
	case err == nil:
		render.JSONWithStatus(w, toPurchaseResponse(p), purchaseStatusCode(p))
	case errors.Is(err, apperrors.ErrBalanceInsufficient):
		render.ServiceError(w, "Insufficient balance", http.StatusPaymentRequired)
	case errors.Is(err, apperrors.ErrInvalidRequest):
		render.ServiceError(w, "Invalid purchase request", http.StatusUnprocessableEntity)
	case errors.Is(err, apperrors.ErrMissingCredential):
		render.ServiceError(w, "Provider credential not configured", http.StatusBadGateway)
	default:
		l.Error("Failed to submit purchase", "error", err)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func handleGetPurchase(purchaseService purchaseService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		p, err := purchaseService.Get(r.Context(), userID, r.PathValue("ref"))

		switch {
		case err == nil:
			render.JSON(w, toPurchaseResponse(p))
		case errors.Is(err, apperrors.ErrPurchaseNotFound):
			render.ServiceError(w, "Purchase not found", http.StatusNotFound)
		default:
			l.Error("Failed to get purchase", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
