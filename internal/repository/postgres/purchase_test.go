package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/vtumart/internal/apperrors"
	"github.com/nkiryanov/vtumart/internal/models"
	"github.com/nkiryanov/vtumart/internal/repository"
	"github.com/nkiryanov/vtumart/internal/testutil"
)

func TestPurchase(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	inTx := func(t *testing.T, outerTx DBTX, fn func(pgx.Tx, repository.Storage)) {
		testutil.InTx(outerTx, t, func(innerTx pgx.Tx) {
			storage := NewStorage(innerTx)
			fn(innerTx, storage)
		})
	}

	newPurchase := func(ref string, status string, createdAt time.Time) models.Purchase {
		return models.Purchase{
			ID:         uuid.New(),
			Ref:        ref,
			UserID:     uuid.New(),
			Kind:       models.PurchaseKindAirtime,
			Phone:      "08031234567",
			ServiceID:  "mtn",
			Amount:     decimal.NewFromInt(100),
			Status:     status,
			CreatedAt:  createdAt,
			ModifiedAt: createdAt,
		}
	}

	t.Run("Create", func(t *testing.T) {
		t.Run("create ok", func(t *testing.T) {
			inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
				p, err := storage.Purchase().Create(t.Context(), newPurchase("VTU-AIRTIME-10", models.PurchasePending, time.Now()))

				require.NoError(t, err)
				require.Equal(t, "VTU-AIRTIME-10", p.Ref)
				require.Equal(t, models.PurchasePending, p.Status)
				require.Nil(t, p.ProviderRef)
				require.Nil(t, p.FailureReason)
			})
		})

		t.Run("duplicate ref fails", func(t *testing.T) {
			inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
				_, err := storage.Purchase().Create(t.Context(), newPurchase("VTU-AIRTIME-11", models.PurchasePending, time.Now()))
				require.NoError(t, err)

				_, err = storage.Purchase().Create(t.Context(), newPurchase("VTU-AIRTIME-11", models.PurchasePending, time.Now()))

				require.ErrorIs(t, err, apperrors.ErrPurchaseAlreadyExists)
			})
		})
	})

	t.Run("Get", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			created, err := storage.Purchase().Create(t.Context(), newPurchase("VTU-AIRTIME-12", models.PurchasePending, time.Now()))
			require.NoError(t, err)

			byID, err := storage.Purchase().Get(t.Context(), created.ID)
			require.NoError(t, err)
			require.Equal(t, created.Ref, byID.Ref)

			byRef, err := storage.Purchase().GetByRef(t.Context(), created.Ref)
			require.NoError(t, err)
			require.Equal(t, created.ID, byRef.ID)

			_, err = storage.Purchase().GetByRef(t.Context(), "VTU-UNKNOWN")
			require.ErrorIs(t, err, apperrors.ErrPurchaseNotFound)
		})
	})

	t.Run("SetOutcome", func(t *testing.T) {
		t.Run("success records provider ref", func(t *testing.T) {
			inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
				created, err := storage.Purchase().Create(t.Context(), newPurchase("VTU-AIRTIME-13", models.PurchasePending, time.Now()))
				require.NoError(t, err)

				providerRef := "prov-001"
				p, err := storage.Purchase().SetOutcome(t.Context(), created.Ref, models.PurchaseSuccess, &providerRef, nil)

				require.NoError(t, err)
				require.Equal(t, models.PurchaseSuccess, p.Status)
				require.NotNil(t, p.ProviderRef)
				require.Equal(t, "prov-001", *p.ProviderRef)
				require.Nil(t, p.FailureReason)
			})
		})

		t.Run("failure records reason and keeps earlier provider ref", func(t *testing.T) {
			inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
				created, err := storage.Purchase().Create(t.Context(), newPurchase("VTU-AIRTIME-14", models.PurchasePending, time.Now()))
				require.NoError(t, err)

				providerRef := "prov-002"
				_, err = storage.Purchase().SetOutcome(t.Context(), created.Ref, models.PurchaseAmbiguous, &providerRef, nil)
				require.NoError(t, err)

				reason := "rejected by provider"
				p, err := storage.Purchase().SetOutcome(t.Context(), created.Ref, models.PurchaseFailed, nil, &reason)

				require.NoError(t, err)
				require.Equal(t, models.PurchaseFailed, p.Status)
				require.NotNil(t, p.ProviderRef, "nil provider ref must not clobber the stored one")
				require.Equal(t, "prov-002", *p.ProviderRef)
				require.NotNil(t, p.FailureReason)
				require.Equal(t, "rejected by provider", *p.FailureReason)
			})
		})

		t.Run("unknown ref", func(t *testing.T) {
			inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
				_, err := storage.Purchase().SetOutcome(t.Context(), "VTU-UNKNOWN", models.PurchaseFailed, nil, nil)

				require.ErrorIs(t, err, apperrors.ErrPurchaseNotFound)
			})
		})
	})

	t.Run("ListUnresolved", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			now := time.Now()

			ambiguous, err := storage.Purchase().Create(t.Context(), newPurchase("VTU-AIRTIME-15", models.PurchaseAmbiguous, now))
			require.NoError(t, err)

			stuckPending, err := storage.Purchase().Create(t.Context(), newPurchase("VTU-AIRTIME-16", models.PurchasePending, now.Add(-time.Hour)))
			require.NoError(t, err)

			// Fresh pending and terminal purchases must not be listed
			_, err = storage.Purchase().Create(t.Context(), newPurchase("VTU-AIRTIME-17", models.PurchasePending, now))
			require.NoError(t, err)
			_, err = storage.Purchase().Create(t.Context(), newPurchase("VTU-AIRTIME-18", models.PurchaseSuccess, now.Add(-time.Hour)))
			require.NoError(t, err)

			list, err := storage.Purchase().ListUnresolved(t.Context(), now.Add(-time.Minute), 10)

			require.NoError(t, err)
			require.Len(t, list, 2)
			refs := []string{list[0].Ref, list[1].Ref}
			require.Contains(t, refs, ambiguous.Ref)
			require.Contains(t, refs, stuckPending.Ref)
		})
	})
}
