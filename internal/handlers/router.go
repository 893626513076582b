package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/vtumart/internal/handlers/middleware"
	"github.com/nkiryanov/vtumart/internal/logger"
	"github.com/nkiryanov/vtumart/internal/metrics"
	"github.com/nkiryanov/vtumart/internal/models"
	"github.com/nkiryanov/vtumart/internal/service/purchase"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	purchaseService purchaseService,
	plans planCatalog,
	walletService walletService,
	verifier principalVerifier,
	logger logger.Logger,
) http.Handler {
	principalMiddleware := middleware.PrincipalMiddleware(verifier)
	withPrincipal := func(h http.Handler) http.Handler {
		return principalMiddleware(h)
	}

	apiuser := http.NewServeMux()

	apiuser.Handle("POST /purchase/airtime", withPrincipal(handleAirtimePurchase(purchaseService, logger)))
	apiuser.Handle("POST /purchase/data", withPrincipal(handleDataPurchase(purchaseService, plans, logger)))
	apiuser.Handle("GET /purchase/{ref}", withPrincipal(handleGetPurchase(purchaseService, logger)))
	apiuser.Handle("GET /plans", withPrincipal(handleListPlans(plans, logger)))
	apiuser.Handle("GET /balance", withPrincipal(handleBalance(walletService, logger)))

	root := http.NewServeMux()
	root.Handle("/api/user/", http.StripPrefix("/api/user", apiuser))
	root.Handle("GET /metrics", metrics.Handler())

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
	)

	return handler
}

type purchaseService interface {
	// Submit runs one purchase attempt to its outcome.
	// Has to return apperrors.ErrBalanceInsufficient when funds cannot be held
	// and apperrors.ErrInvalidRequest for input the orchestrator rejects
	Submit(ctx context.Context, req purchase.SubmitRequest) (models.Purchase, error)

	// Get returns the purchase by reference scoped to its owner.
	// Has to return apperrors.ErrPurchaseNotFound otherwise
	Get(ctx context.Context, userID uuid.UUID, ref string) (models.Purchase, error)
}

type planCatalog interface {
	Plans(ctx context.Context, networkID string) ([]models.DataPlan, error)
	Plan(ctx context.Context, networkID string, planID string) (models.DataPlan, bool, error)
}

type walletService interface {
	// Balance returns local wallet state.
	// Has to return apperrors.ErrWalletNotFound for a user without a wallet
	Balance(ctx context.Context, userID uuid.UUID) (models.Wallet, error)
}

type principalVerifier interface {
	FromRequest(r *http.Request) (uuid.UUID, error)
}
