package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/vtumart/internal/models"
)

// Wallet repository interface
type WalletRepo interface {
	// Create wallet with zero balances
	// If wallet for the user exists already has to return it as is
	CreateWallet(ctx context.Context, userID uuid.UUID) (models.Wallet, error)

	// Get wallet by owner
	// If wallet not found must return apperrors.ErrWalletNotFound
	GetWallet(ctx context.Context, userID uuid.UUID) (models.Wallet, error)

	// Same as GetWallet but locks the wallet row for the duration of the
	// enclosing transaction. Serializes concurrent reserve/release/snapshot
	// operations on one wallet
	GetWalletForUpdate(ctx context.Context, userID uuid.UUID) (models.Wallet, error)

	// Overwrite all balance components
	SetBalances(ctx context.Context, userID uuid.UUID, main, cashback, referral decimal.Decimal) (models.Wallet, error)

	// Add delta (may be negative) to the main balance
	AddToMain(ctx context.Context, userID uuid.UUID, delta decimal.Decimal) (models.Wallet, error)
}

// Reservation repository interface
type ReservationRepo interface {
	Create(ctx context.Context, r models.Reservation) (models.Reservation, error)

	// If reservation not found must return apperrors.ErrReservationNotFound
	Get(ctx context.Context, id uuid.UUID) (models.Reservation, error)
	GetByPurchaseRef(ctx context.Context, ref string) (models.Reservation, error)

	// Set status only if the reservation is still in fromStatus.
	// Returns the reservation and whether the transition was applied, so
	// commit and release stay idempotent
	SetStatus(ctx context.Context, id uuid.UUID, fromStatus string, toStatus string) (models.Reservation, bool, error)

	// Held reservations whose hold expired before 'now'
	ListExpiredHeld(ctx context.Context, now time.Time, limit int) ([]models.Reservation, error)

	// Sum of amounts currently held against the user's wallet
	SumHeld(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
}

// Purchase repository interface
type PurchaseRepo interface {
	// Create purchase
	// If purchase with the same ref exists must return apperrors.ErrPurchaseAlreadyExists
	Create(ctx context.Context, p models.Purchase) (models.Purchase, error)

	// If purchase not found must return apperrors.ErrPurchaseNotFound
	Get(ctx context.Context, id uuid.UUID) (models.Purchase, error)
	GetByRef(ctx context.Context, ref string) (models.Purchase, error)

	// Record outcome state transition
	SetOutcome(ctx context.Context, ref string, status string, providerRef *string, failureReason *string) (models.Purchase, error)

	// Purchases without a terminal outcome: ambiguous ones, and pending
	// ones created before 'pendingBefore' (stuck in flight)
	ListUnresolved(ctx context.Context, pendingBefore time.Time, limit int) ([]models.Purchase, error)
}

type Storage interface {
	Wallet() WalletRepo
	Reservation() ReservationRepo
	Purchase() PurchaseRepo

	// Run fn within single database transaction
	InTx(ctx context.Context, fn func(s Storage) error) error
}
