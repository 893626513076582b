package handlers

import (
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/vtumart/internal/apperrors"
	"github.com/nkiryanov/vtumart/internal/handlers/render"
	"github.com/nkiryanov/vtumart/internal/handlers/userctx"
	"github.com/nkiryanov/vtumart/internal/logger"
)

func handleBalance(walletService walletService, l logger.Logger) http.Handler {
	type response struct {
		Main     decimal.Decimal `json:"main"`
		Cashback decimal.Decimal `json:"cashback"`
		Referral decimal.Decimal `json:"referral"`
		Total    decimal.Decimal `json:"total"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		wallet, err := walletService.Balance(r.Context(), userID)

		switch {
		case err == nil:
			render.JSON(w, response{
				Main:     wallet.Main,
				Cashback: wallet.Cashback,
				Referral: wallet.Referral,
				Total:    wallet.Total(),
			})
		case errors.Is(err, apperrors.ErrWalletNotFound):
			// No purchases yet: the wallet simply does not exist, report zeros
			render.JSON(w, response{
				Main:     decimal.Zero,
				Cashback: decimal.Zero,
				Referral: decimal.Zero,
				Total:    decimal.Zero,
			})
		default:
			l.Error("Failed to get balance", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
