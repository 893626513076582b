package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/vtumart/internal/apperrors"
	"github.com/nkiryanov/vtumart/internal/models"
)

type ReservationRepo struct {
	DB DBTX
}

func (r *ReservationRepo) Create(ctx context.Context, res models.Reservation) (models.Reservation, error) {
	const createReservation = `
	INSERT INTO reservations (id, user_id, purchase_ref, amount, status, created_at, expires_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id, user_id, purchase_ref, amount, status, created_at, expires_at
	`

	rows, _ := r.DB.Query(ctx, createReservation,
		res.ID, res.UserID, res.PurchaseRef, res.Amount, res.Status, res.CreatedAt, res.ExpiresAt)
	created, err := pgx.CollectOneRow(rows, rowToReservation)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return created, fmt.Errorf("reservation for purchase already exists: %w", err)
		}

		return created, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

func (r *ReservationRepo) Get(ctx context.Context, id uuid.UUID) (models.Reservation, error) {
	const getReservation = `
	SELECT id, user_id, purchase_ref, amount, status, created_at, expires_at FROM reservations
	WHERE id = $1
	`

	rows, _ := r.DB.Query(ctx, getReservation, id)
	res, err := pgx.CollectOneRow(rows, rowToReservation)

	switch {
	case err == nil:
		return res, nil
	case errors.Is(err, pgx.ErrNoRows):
		return res, apperrors.ErrReservationNotFound
	default:
		return res, fmt.Errorf("db error: %w", err)
	}
}

func (r *ReservationRepo) GetByPurchaseRef(ctx context.Context, ref string) (models.Reservation, error) {
	const getByRef = `
	SELECT id, user_id, purchase_ref, amount, status, created_at, expires_at FROM reservations
	WHERE purchase_ref = $1
	`

	rows, _ := r.DB.Query(ctx, getByRef, ref)
	res, err := pgx.CollectOneRow(rows, rowToReservation)

	switch {
	case err == nil:
		return res, nil
	case errors.Is(err, pgx.ErrNoRows):
		return res, apperrors.ErrReservationNotFound
	default:
		return res, fmt.Errorf("db error: %w", err)
	}
}

// Set status only when the current status matches fromStatus.
// Second return value reports whether the transition was applied
func (r *ReservationRepo) SetStatus(ctx context.Context, id uuid.UUID, fromStatus string, toStatus string) (models.Reservation, bool, error) {
	const setStatus = `
	WITH updated AS (
		UPDATE reservations
		SET status = $3
		WHERE id = $1 AND status = $2
		RETURNING *
	)
	SELECT *, true AS applied FROM updated
	UNION
	SELECT *, false AS applied FROM reservations WHERE id = $1 AND status != $2
	`

	rows, _ := r.DB.Query(ctx, setStatus, id, fromStatus, toStatus)
	type result struct {
		res     models.Reservation
		applied bool
	}
	rt, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (result, error) {
		var rt result
		r := &rt.res
		err := row.Scan(&r.ID, &r.UserID, &r.PurchaseRef, &r.Amount, &r.Status, &r.CreatedAt, &r.ExpiresAt, &rt.applied)
		return rt, err
	})

	switch {
	case err == nil:
		return rt.res, rt.applied, nil
	case errors.Is(err, pgx.ErrNoRows):
		return rt.res, false, apperrors.ErrReservationNotFound
	default:
		return rt.res, false, fmt.Errorf("db error: %w", err)
	}
}

func (r *ReservationRepo) ListExpiredHeld(ctx context.Context, now time.Time, limit int) ([]models.Reservation, error) {
	const listExpired = `
	SELECT id, user_id, purchase_ref, amount, status, created_at, expires_at FROM reservations
	WHERE status = $1 AND expires_at < $2
	ORDER BY expires_at
	LIMIT $3
	`

	rows, _ := r.DB.Query(ctx, listExpired, models.ReservationHeld, now, limit)
	list, err := pgx.CollectRows(rows, rowToReservation)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return list, nil
}

func (r *ReservationRepo) SumHeld(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	const sumHeld = `
	SELECT COALESCE(SUM(amount), 0) FROM reservations
	WHERE user_id = $1 AND status = $2
	`

	var sum decimal.Decimal
	err := r.DB.QueryRow(ctx, sumHeld, userID, models.ReservationHeld).Scan(&sum)
	if err != nil {
		return sum, fmt.Errorf("db error: %w", err)
	}

	return sum, nil
}

func rowToReservation(row pgx.CollectableRow) (models.Reservation, error) {
	var r models.Reservation
	err := row.Scan(&r.ID, &r.UserID, &r.PurchaseRef, &r.Amount, &r.Status, &r.CreatedAt, &r.ExpiresAt)
	return r, err
}
