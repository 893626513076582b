package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/vtumart/internal/apperrors"
	"github.com/nkiryanov/vtumart/internal/models"
)

type WalletRepo struct {
	DB DBTX
}

// Create wallet with zero balances
// If the user already has one return it as is
const createWallet = `-- name: CreateWallet
WITH insert_wallet AS (
	INSERT INTO wallets (id, user_id, main, cashback, referral, updated_at)
	VALUES ($1, $2, 0, 0, 0, $3)
	ON CONFLICT DO NOTHING
	RETURNING *
)
SELECT * FROM insert_wallet
UNION
SELECT * FROM wallets WHERE user_id = $2
`

func (r *WalletRepo) CreateWallet(ctx context.Context, userID uuid.UUID) (models.Wallet, error) {
	rows, _ := r.DB.Query(ctx, createWallet, uuid.New(), userID, time.Now())
	w, err := pgx.CollectOneRow(rows, rowToWallet)
	if err != nil {
		return w, fmt.Errorf("db error: %w", err)
	}

	return w, nil
}

func (r *WalletRepo) GetWallet(ctx context.Context, userID uuid.UUID) (models.Wallet, error) {
	const getWallet = `
	SELECT id, user_id, main, cashback, referral, updated_at FROM wallets
	WHERE user_id = $1
	`

	return r.getWallet(ctx, getWallet, userID)
}

func (r *WalletRepo) GetWalletForUpdate(ctx context.Context, userID uuid.UUID) (models.Wallet, error) {
	const getWalletForUpdate = `
	SELECT id, user_id, main, cashback, referral, updated_at FROM wallets
	WHERE user_id = $1
	FOR UPDATE
	`

	return r.getWallet(ctx, getWalletForUpdate, userID)
}

func (r *WalletRepo) getWallet(ctx context.Context, sql string, userID uuid.UUID) (models.Wallet, error) {
	rows, _ := r.DB.Query(ctx, sql, userID)
	w, err := pgx.CollectOneRow(rows, rowToWallet)

	switch {
	case err == nil:
		return w, nil
	case errors.Is(err, pgx.ErrNoRows):
		return w, apperrors.ErrWalletNotFound
	default:
		return w, fmt.Errorf("db error: %w", err)
	}
}

func (r *WalletRepo) SetBalances(ctx context.Context, userID uuid.UUID, main, cashback, referral decimal.Decimal) (models.Wallet, error) {
	const setBalances = `
	UPDATE wallets
	SET main = $2, cashback = $3, referral = $4, updated_at = $5
	WHERE user_id = $1
	RETURNING id, user_id, main, cashback, referral, updated_at
	`

	rows, _ := r.DB.Query(ctx, setBalances, userID, main, cashback, referral, time.Now())
	w, err := pgx.CollectOneRow(rows, rowToWallet)

	switch {
	case err == nil:
		return w, nil
	case errors.Is(err, pgx.ErrNoRows):
		return w, apperrors.ErrWalletNotFound
	default:
		return w, fmt.Errorf("db error: %w", err)
	}
}

func (r *WalletRepo) AddToMain(ctx context.Context, userID uuid.UUID, delta decimal.Decimal) (models.Wallet, error) {
	const addToMain = `
	UPDATE wallets
	SET main = main + $2, updated_at = $3
	WHERE user_id = $1
	RETURNING id, user_id, main, cashback, referral, updated_at
	`

	rows, _ := r.DB.Query(ctx, addToMain, userID, delta, time.Now())
	w, err := pgx.CollectOneRow(rows, rowToWallet)

	switch {
	case err == nil:
		return w, nil
	case errors.Is(err, pgx.ErrNoRows):
		return w, apperrors.ErrWalletNotFound
	default:
		return w, fmt.Errorf("db error: %w", err)
	}
}

func rowToWallet(row pgx.CollectableRow) (models.Wallet, error) {
	var w models.Wallet
	err := row.Scan(&w.ID, &w.UserID, &w.Main, &w.Cashback, &w.Referral, &w.UpdatedAt)
	return w, err
}
