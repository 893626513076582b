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

	"github.com/nkiryanov/vtumart/internal/apperrors"
	"github.com/nkiryanov/vtumart/internal/models"
)

type PurchaseRepo struct {
	DB DBTX
}

const purchaseColumns = `id, ref, user_id, kind, phone, service_id, network_id, amount, plan_id, status, provider_ref, failure_reason, created_at, modified_at`

func (r *PurchaseRepo) Create(ctx context.Context, p models.Purchase) (models.Purchase, error) {
	const createPurchase = `
	INSERT INTO purchases (id, ref, user_id, kind, phone, service_id, network_id, amount, plan_id, status, provider_ref, failure_reason, created_at, modified_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	RETURNING ` + purchaseColumns

	rows, _ := r.DB.Query(ctx, createPurchase,
		p.ID, p.Ref, p.UserID, p.Kind, p.Phone, p.ServiceID, p.NetworkID, p.Amount, p.PlanID,
		p.Status, p.ProviderRef, p.FailureReason, p.CreatedAt, p.ModifiedAt)
	created, err := pgx.CollectOneRow(rows, rowToPurchase)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return created, apperrors.ErrPurchaseAlreadyExists
		}

		return created, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

func (r *PurchaseRepo) Get(ctx context.Context, id uuid.UUID) (models.Purchase, error) {
	const getPurchase = `SELECT ` + purchaseColumns + ` FROM purchases WHERE id = $1`

	rows, _ := r.DB.Query(ctx, getPurchase, id)
	return collectPurchase(rows)
}

func (r *PurchaseRepo) GetByRef(ctx context.Context, ref string) (models.Purchase, error) {
	const getByRef = `SELECT ` + purchaseColumns + ` FROM purchases WHERE ref = $1`

	rows, _ := r.DB.Query(ctx, getByRef, ref)
	return collectPurchase(rows)
}

func (r *PurchaseRepo) SetOutcome(ctx context.Context, ref string, status string, providerRef *string, failureReason *string) (models.Purchase, error) {
	const setOutcome = `
	UPDATE purchases
	SET status = $2,
	    provider_ref = COALESCE($3, provider_ref),
	    failure_reason = $4,
	    modified_at = $5
	WHERE ref = $1
	RETURNING ` + purchaseColumns

	rows, _ := r.DB.Query(ctx, setOutcome, ref, status, providerRef, failureReason, time.Now())
	return collectPurchase(rows)
}

func (r *PurchaseRepo) ListUnresolved(ctx context.Context, pendingBefore time.Time, limit int) ([]models.Purchase, error) {
	const listUnresolved = `
	SELECT ` + purchaseColumns + ` FROM purchases
	WHERE status = $1 OR (status = $2 AND created_at < $3)
	ORDER BY created_at
	LIMIT $4
	`

	rows, _ := r.DB.Query(ctx, listUnresolved, models.PurchaseAmbiguous, models.PurchasePending, pendingBefore, limit)
	list, err := pgx.CollectRows(rows, rowToPurchase)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return list, nil
}

func collectPurchase(rows pgx.Rows) (models.Purchase, error) {
	p, err := pgx.CollectOneRow(rows, rowToPurchase)

	switch {
	case err == nil:
		return p, nil
	case errors.Is(err, pgx.ErrNoRows):
		return p, apperrors.ErrPurchaseNotFound
	default:
		return p, fmt.Errorf("db error: %w", err)
	}
}

func rowToPurchase(row pgx.CollectableRow) (models.Purchase, error) {
	var p models.Purchase
	err := row.Scan(
		&p.ID, &p.Ref, &p.UserID, &p.Kind, &p.Phone, &p.ServiceID, &p.NetworkID,
		&p.Amount, &p.PlanID, &p.Status, &p.ProviderRef, &p.FailureReason,
		&p.CreatedAt, &p.ModifiedAt)
	return p, err
}
