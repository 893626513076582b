package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/vtumart/internal/apperrors"
	"github.com/nkiryanov/vtumart/internal/logger"
	"github.com/nkiryanov/vtumart/internal/models"
	"github.com/nkiryanov/vtumart/internal/repository"
)

// Funds reserved for a purchase stay held this long before the sweep
// releases them, so an abandoned attempt cannot lock money forever
const defaultHoldDuration = 15 * time.Minute

// Ledger owns every wallet mutation. Funds leave the main balance only
// through Reserve and come back only through Release; reconciliation
// snapshots are applied on top without clobbering held reservations.
//
// Invariant: main balance as stored locally equals the authoritative
// upstream value minus the sum of currently held reservations.
type Ledger struct {
	storage      repository.Storage
	HoldDuration time.Duration
	logger       logger.Logger
}

func NewLedger(storage repository.Storage, logger logger.Logger) *Ledger {
	return &Ledger{
		storage:      storage,
		HoldDuration: defaultHoldDuration,
		logger:       logger,
	}
}

// EnsureWallet creates the wallet on first touch
func (l *Ledger) EnsureWallet(ctx context.Context, userID uuid.UUID) (models.Wallet, error) {
	return l.storage.Wallet().CreateWallet(ctx, userID)
}

func (l *Ledger) Balance(ctx context.Context, userID uuid.UUID) (models.Wallet, error) {
	return l.storage.Wallet().GetWallet(ctx, userID)
}

// Reserve tentatively debits the main balance for a purchase.
// The wallet row lock serializes concurrent reservations, so two attempts
// can never both pass the balance check against the same pre-debit value
func (l *Ledger) Reserve(ctx context.Context, userID uuid.UUID, purchaseRef string, amount decimal.Decimal) (models.Reservation, error) {
	var reservation models.Reservation

	if !amount.IsPositive() {
		return reservation, apperrors.ErrInvalidRequest
	}

	err := l.storage.InTx(ctx, func(s repository.Storage) error {
		w, err := s.Wallet().GetWalletForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		if w.Main.LessThan(amount) {
			return apperrors.ErrBalanceInsufficient
		}

		if _, err := s.Wallet().AddToMain(ctx, userID, amount.Neg()); err != nil {
			return err
		}

		now := time.Now()
		reservation, err = s.Reservation().Create(ctx, models.Reservation{
			ID:          uuid.New(),
			UserID:      userID,
			PurchaseRef: purchaseRef,
			Amount:      amount,
			Status:      models.ReservationHeld,
			CreatedAt:   now,
			ExpiresAt:   now.Add(l.HoldDuration),
		})
		return err
	})
	if err != nil {
		return reservation, err
	}

	l.logger.Debug("Funds reserved", "user_id", userID, "purchase_ref", purchaseRef, "amount", amount)
	return reservation, nil
}

// Commit finalizes a reservation. The debit already happened at reserve
// time, so this only consumes the handle. Idempotent
func (l *Ledger) Commit(ctx context.Context, reservationID uuid.UUID) error {
	_, applied, err := l.storage.Reservation().SetStatus(
		ctx, reservationID, models.ReservationHeld, models.ReservationCommitted)
	if err != nil {
		return fmt.Errorf("failed to commit reservation: %w", err)
	}

	if !applied {
		l.logger.Debug("Commit skipped, reservation not held", "reservation_id", reservationID)
	}
	return nil
}

// Release restores held funds to the main balance. Releasing an already
// released or committed reservation is a no-op, so retried cleanup is safe
func (l *Ledger) Release(ctx context.Context, reservationID uuid.UUID) error {
	return l.storage.InTx(ctx, func(s repository.Storage) error {
		reservation, applied, err := s.Reservation().SetStatus(
			ctx, reservationID, models.ReservationHeld, models.ReservationReleased)
		if err != nil {
			return fmt.Errorf("failed to release reservation: %w", err)
		}

		if !applied {
			l.logger.Debug("Release skipped, reservation not held", "reservation_id", reservationID)
			return nil
		}

		_, err = s.Wallet().AddToMain(ctx, reservation.UserID, reservation.Amount)
		return err
	})
}

// ApplyExternalSnapshot overwrites the local balance view with the
// authoritative upstream state. Held reservations are subtracted from the
// snapshot instead of being erased by it: the upstream value does not know
// about local in-flight holds yet.
// Returns the updated wallet and whether anything actually changed
func (l *Ledger) ApplyExternalSnapshot(ctx context.Context, userID uuid.UUID, snap models.WalletSnapshot) (models.Wallet, bool, error) {
	var updated models.Wallet
	var changed bool

	err := l.storage.InTx(ctx, func(s repository.Storage) error {
		current, err := s.Wallet().GetWalletForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		held, err := s.Reservation().SumHeld(ctx, userID)
		if err != nil {
			return err
		}

		main := snap.Main.Sub(held)
		if main.IsNegative() {
			// Upstream already settled more than we hold locally; the
			// reconciler resolves the corresponding purchases separately
			main = decimal.Zero
		}

		changed = !current.Main.Equal(main) ||
			!current.Cashback.Equal(snap.Cashback) ||
			!current.Referral.Equal(snap.Referral)
		if !changed {
			updated = current
			return nil
		}

		updated, err = s.Wallet().SetBalances(ctx, userID, main, snap.Cashback, snap.Referral)
		return err
	})
	if err != nil {
		return updated, false, err
	}

	if changed {
		l.logger.Info("Wallet reconciled from upstream", "user_id", userID, "main", updated.Main)
	}
	return updated, changed, nil
}
