package purchase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/vtumart/internal/apperrors"
	"github.com/nkiryanov/vtumart/internal/logger"
	"github.com/nkiryanov/vtumart/internal/models"
	"github.com/nkiryanov/vtumart/internal/repository"
	"github.com/nkiryanov/vtumart/internal/service/notify"
	"github.com/nkiryanov/vtumart/internal/service/provider"
)

type providerClient interface {
	PurchaseAirtime(ctx context.Context, ref string, phone string, serviceID string, amount decimal.Decimal) (provider.Result, error)
	PurchaseData(ctx context.Context, ref string, phone string, networkID string, planID string) (provider.Result, error)
	LookupPurchase(ctx context.Context, ref string) (provider.Result, error)
}

type walletLedger interface {
	EnsureWallet(ctx context.Context, userID uuid.UUID) (models.Wallet, error)
	Reserve(ctx context.Context, userID uuid.UUID, purchaseRef string, amount decimal.Decimal) (models.Reservation, error)
	Commit(ctx context.Context, reservationID uuid.UUID) error
	Release(ctx context.Context, reservationID uuid.UUID) error
}

type refGenerator interface {
	Generate(kind string) string
}

// SubmitRequest is a user-initiated purchase attempt
type SubmitRequest struct {
	UserID    uuid.UUID
	Kind      string
	Phone     string
	ServiceID string          // airtime
	Amount    decimal.Decimal // airtime
	NetworkID string          // data
	PlanID    string          // data
	PlanPrice decimal.Decimal // data, resolved from the catalogue
}

// Orchestrator drives one purchase attempt from intake to its terminal
// outcome: validate, issue the reference, reserve funds, call the
// provider, then commit or release. An indeterminate provider answer
// parks the purchase as ambiguous with the hold kept, the reconciler
// re-queries it with the same reference later.
type Orchestrator struct {
	storage    repository.Storage
	ledger     walletLedger
	client     providerClient
	refs       refGenerator
	dispatcher notify.Dispatcher
	logger     logger.Logger
}

func NewOrchestrator(
	storage repository.Storage,
	ledger walletLedger,
	client providerClient,
	refs refGenerator,
	dispatcher notify.Dispatcher,
	logger logger.Logger,
) *Orchestrator {
	if dispatcher == nil {
		dispatcher = notify.NoOpDispatcher{}
	}

	return &Orchestrator{
		storage:    storage,
		ledger:     ledger,
		client:     client,
		refs:       refs,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (models.Purchase, error) {
	var p models.Purchase

	if err := validate(req); err != nil {
		return p, err
	}

	amount := req.Amount
	if req.Kind == models.PurchaseKindData {
		amount = req.PlanPrice
	}

	// The reference is issued exactly once here; every later provider
	// interaction for this attempt reuses it verbatim
	ref := o.refs.Generate(req.Kind)

	now := time.Now()
	p, err := o.storage.Purchase().Create(ctx, models.Purchase{
		ID:         uuid.New(),
		Ref:        ref,
		UserID:     req.UserID,
		Kind:       req.Kind,
		Phone:      req.Phone,
		ServiceID:  req.ServiceID,
		NetworkID:  req.NetworkID,
		Amount:     amount,
		PlanID:     req.PlanID,
		Status:     models.PurchasePending,
		CreatedAt:  now,
		ModifiedAt: now,
	})
	if err != nil {
		return p, fmt.Errorf("failed to create purchase: %w", err)
	}

	if _, err := o.ledger.EnsureWallet(ctx, req.UserID); err != nil {
		return p, fmt.Errorf("failed to ensure wallet: %w", err)
	}

	reservation, err := o.ledger.Reserve(ctx, req.UserID, ref, amount)
	if errors.Is(err, apperrors.ErrBalanceInsufficient) {
		reason := "insufficient balance"
		p, _ = o.storage.Purchase().SetOutcome(ctx, ref, models.PurchaseFailed, nil, &reason)
		o.dispatcher.PurchaseResolved(p)
		return p, apperrors.ErrBalanceInsufficient
	}
	if err != nil {
		return p, fmt.Errorf("failed to reserve funds: %w", err)
	}

	result, err := o.submitToProvider(ctx, p)

	return o.resolve(ctx, p, reservation.ID, result, err)
}

// Get returns the purchase with its current outcome
func (o *Orchestrator) Get(ctx context.Context, userID uuid.UUID, ref string) (models.Purchase, error) {
	p, err := o.storage.Purchase().GetByRef(ctx, ref)
	if err != nil {
		return p, err
	}
	if p.UserID != userID {
		return models.Purchase{}, apperrors.ErrPurchaseNotFound
	}
	return p, nil
}

func (o *Orchestrator) submitToProvider(ctx context.Context, p models.Purchase) (provider.Result, error) {
	switch p.Kind {
	case models.PurchaseKindData:
		return o.client.PurchaseData(ctx, p.Ref, p.Phone, p.NetworkID, p.PlanID)
	default:
		return o.client.PurchaseAirtime(ctx, p.Ref, p.Phone, p.ServiceID, p.Amount)
	}
}

// resolve maps a provider answer to the terminal outcome and settles the
// reservation accordingly. Shared by Submit and the reconciler
func (o *Orchestrator) resolve(ctx context.Context, p models.Purchase, reservationID uuid.UUID, result provider.Result, err error) (models.Purchase, error) {
	ref := p.Ref

	switch {
	case err == nil && result.Status == provider.StatusSuccess:
		if err := o.ledger.Commit(ctx, reservationID); err != nil {
			return p, err
		}

		var providerRef *string
		if result.ProviderRef != "" {
			providerRef = &result.ProviderRef
		}
		p, err = o.storage.Purchase().SetOutcome(ctx, ref, models.PurchaseSuccess, providerRef, nil)
		if err != nil {
			return p, err
		}

		o.logger.Info("Purchase fulfilled", "ref", ref, "provider_ref", result.ProviderRef)
		o.dispatcher.PurchaseResolved(p)
		return p, nil

	case err == nil && result.Status == provider.StatusPending:
		// Accepted but not fulfilled yet: keep the hold, let the
		// reconciler re-query with the same reference
		return o.markAmbiguous(ctx, p)

	case errors.Is(err, apperrors.ErrMissingCredential):
		// Local precondition, nothing reached the provider
		if err := o.ledger.Release(ctx, reservationID); err != nil {
			return p, err
		}
		reason := "provider credential not configured"
		p, _ = o.storage.Purchase().SetOutcome(ctx, ref, models.PurchaseFailed, nil, &reason)

		o.logger.Error("Purchase failed, provider credential missing", "ref", ref)
		o.dispatcher.PurchaseResolved(p)
		return p, apperrors.ErrMissingCredential

	default:
		var provErr *provider.Error
		if !errors.As(err, &provErr) {
			return p, fmt.Errorf("unexpected provider error: %w", err)
		}

		switch provErr.Code {
		case provider.CodeRejected:
			if err := o.ledger.Release(ctx, reservationID); err != nil {
				return p, err
			}

			reason := provErr.Reason
			p, err = o.storage.Purchase().SetOutcome(ctx, ref, models.PurchaseFailed, nil, &reason)
			if err != nil {
				return p, err
			}

			o.logger.Info("Purchase rejected by provider", "ref", ref, "reason", reason)
			o.dispatcher.PurchaseResolved(p)
			return p, nil

		default:
			// Ambiguous or transport fault: the request may have been
			// applied upstream. Funds stay held and the reference is
			// never regenerated, retrying with a fresh one could
			// fulfill the purchase twice
			o.logger.Warn("Purchase outcome ambiguous, awaiting reconciliation", "ref", ref, "code", provErr.Code)
			return o.markAmbiguous(ctx, p)
		}
	}
}

// markAmbiguous parks the purchase as pending verification. Notifies only
// on the first transition, reconciliation rounds that stay ambiguous are
// not news
func (o *Orchestrator) markAmbiguous(ctx context.Context, p models.Purchase) (models.Purchase, error) {
	alreadyAmbiguous := p.Status == models.PurchaseAmbiguous

	p, err := o.storage.Purchase().SetOutcome(ctx, p.Ref, models.PurchaseAmbiguous, nil, nil)
	if err != nil {
		return p, err
	}

	if !alreadyAmbiguous {
		o.dispatcher.PurchaseResolved(p)
	}
	return p, nil
}

// Reconcile re-queries a purchase that never reached a terminal outcome,
// using its original reference so the provider can deduplicate
func (o *Orchestrator) Reconcile(ctx context.Context, p models.Purchase) (models.Purchase, error) {
	// Refetch: a worker may race with the submitter or a previous round
	p, err := o.storage.Purchase().GetByRef(ctx, p.Ref)
	if err != nil {
		return p, err
	}
	if p.Terminal() {
		return p, nil
	}

	reservation, err := o.storage.Reservation().GetByPurchaseRef(ctx, p.Ref)
	if errors.Is(err, apperrors.ErrReservationNotFound) {
		// Crashed between intake and reserve: no funds were held and
		// nothing reached the provider
		reason := "no funds were held for this attempt"
		p, err = o.storage.Purchase().SetOutcome(ctx, p.Ref, models.PurchaseFailed, nil, &reason)
		if err != nil {
			return p, err
		}
		o.dispatcher.PurchaseResolved(p)
		return p, nil
	}
	if err != nil {
		return p, err
	}

	result, lookupErr := o.client.LookupPurchase(ctx, p.Ref)

	return o.resolve(ctx, p, reservation.ID, result, lookupErr)
}

// SweepExpiredHolds releases reservations whose bounded hold duration
// passed while their purchase never went out to the provider. Holds
// backing ambiguous purchases are kept: the purchase may have been
// fulfilled upstream and only the re-query loop may decide that
func (o *Orchestrator) SweepExpiredHolds(ctx context.Context, now time.Time, limit int) error {
	expired, err := o.storage.Reservation().ListExpiredHeld(ctx, now, limit)
	if err != nil {
		return fmt.Errorf("failed to list expired holds: %w", err)
	}

	for _, reservation := range expired {
		p, err := o.storage.Purchase().GetByRef(ctx, reservation.PurchaseRef)
		if err != nil {
			o.logger.Error("Failed to load purchase for expired hold", "ref", reservation.PurchaseRef, "error", err)
			continue
		}

		if p.Status != models.PurchasePending {
			continue
		}

		if err := o.ledger.Release(ctx, reservation.ID); err != nil {
			o.logger.Error("Failed to release expired hold", "ref", p.Ref, "error", err)
			continue
		}

		reason := "reservation hold expired"
		p, err = o.storage.Purchase().SetOutcome(ctx, p.Ref, models.PurchaseFailed, nil, &reason)
		if err != nil {
			o.logger.Error("Failed to fail purchase with expired hold", "ref", reservation.PurchaseRef, "error", err)
			continue
		}

		o.logger.Warn("Expired hold released", "ref", p.Ref)
		o.dispatcher.PurchaseResolved(p)
	}

	return nil
}

func validate(req SubmitRequest) error {
	if strings.TrimSpace(req.Phone) == "" {
		return apperrors.ErrInvalidRequest
	}

	switch req.Kind {
	case models.PurchaseKindAirtime:
		if req.ServiceID == "" || !req.Amount.IsPositive() {
			return apperrors.ErrInvalidRequest
		}
	case models.PurchaseKindData:
		if req.NetworkID == "" || req.PlanID == "" || !req.PlanPrice.IsPositive() {
			return apperrors.ErrInvalidRequest
		}
	default:
		return apperrors.ErrInvalidRequest
	}

	return nil
}
