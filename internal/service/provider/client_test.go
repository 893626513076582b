package provider

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/vtumart/internal/apperrors"
	"github.com/nkiryanov/vtumart/internal/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(srv.URL, "test-key", logger.NewNoOpLogger())
}

func TestClient_PurchaseAirtime(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var gotAuth string
		var gotBody map[string]any

		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/airtime", r.URL.Path)
			gotAuth = r.Header.Get("Authorization")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

			_ = json.NewEncoder(w).Encode(map[string]string{"status": "success", "reference": "prov-1"})
		})

		result, err := client.PurchaseAirtime(t.Context(), "VTU-AIRTIME-1", "08031234567", "mtn", decimal.NewFromInt(100))

		require.NoError(t, err)
		require.Equal(t, StatusSuccess, result.Status)
		require.Equal(t, "VTU-AIRTIME-1", result.Ref)
		require.Equal(t, "prov-1", result.ProviderRef)

		require.Equal(t, "Bearer test-key", gotAuth)
		require.Equal(t, "VTU-AIRTIME-1", gotBody["request_id"])
		require.Equal(t, "08031234567", gotBody["phone"])
		require.Equal(t, "mtn", gotBody["service_id"])
	})

	t.Run("missing credential fails before any call", func(t *testing.T) {
		called := false
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			called = true
		})
		client.APIKey = ""

		_, err := client.PurchaseAirtime(t.Context(), "VTU-AIRTIME-2", "08031234567", "mtn", decimal.NewFromInt(100))

		require.ErrorIs(t, err, apperrors.ErrMissingCredential)
		require.False(t, called, "no network call may be attempted without a credential")
	})

	t.Run("structured rejection", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "invalid service id"})
		})

		_, err := client.PurchaseAirtime(t.Context(), "VTU-AIRTIME-3", "08031234567", "nope", decimal.NewFromInt(100))

		var provErr *Error
		require.ErrorAs(t, err, &provErr)
		require.Equal(t, CodeRejected, provErr.Code)
		require.Equal(t, "invalid service id", provErr.Reason)
	})

	t.Run("unparseable error body is transport", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("<html>bad gateway</html>"))
		})

		_, err := client.PurchaseAirtime(t.Context(), "VTU-AIRTIME-4", "08031234567", "mtn", decimal.NewFromInt(100))

		var provErr *Error
		require.ErrorAs(t, err, &provErr)
		require.Equal(t, CodeTransport, provErr.Code)
	})

	t.Run("timeout is ambiguous never failed", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(5 * time.Second):
			}
		})
		client.callTimeout = 50 * time.Millisecond

		_, err := client.PurchaseAirtime(t.Context(), "VTU-AIRTIME-5", "08031234567", "mtn", decimal.NewFromInt(100))

		var provErr *Error
		require.ErrorAs(t, err, &provErr)
		require.Equal(t, CodeAmbiguous, provErr.Code)
	})

	t.Run("duplicate answer confirms success", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "duplicate request", "reference": "prov-9"})
		})

		result, err := client.PurchaseAirtime(t.Context(), "VTU-AIRTIME-6", "08031234567", "mtn", decimal.NewFromInt(100))

		require.NoError(t, err, "a duplicate signal means the original request was applied")
		require.Equal(t, StatusSuccess, result.Status)
		require.Equal(t, "prov-9", result.ProviderRef)
	})
}

func TestClient_PurchaseData(t *testing.T) {
	t.Run("sends data purchase body", func(t *testing.T) {
		var gotBody map[string]any

		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/budget-data", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

			_ = json.NewEncoder(w).Encode(map[string]string{"status": "success"})
		})

		result, err := client.PurchaseData(t.Context(), "VTU-DATA-1", "08031234567", "1", "plan-500mb")

		require.NoError(t, err)
		require.Equal(t, StatusSuccess, result.Status)
		require.Equal(t, "VTU-DATA-1", gotBody["request_id"])
		require.Equal(t, "1", gotBody["network_id"])
		require.Equal(t, "plan-500mb", gotBody["data_plan"])
	})
}

func TestClient_LookupPurchase(t *testing.T) {
	t.Run("returns original outcome", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodGet, r.Method)
			require.Equal(t, "/requery", r.URL.Path)
			require.Equal(t, "VTU-AIRTIME-7", r.URL.Query().Get("request_id"))

			_ = json.NewEncoder(w).Encode(map[string]string{"status": "success", "reference": "prov-7"})
		})

		result, err := client.LookupPurchase(t.Context(), "VTU-AIRTIME-7")

		require.NoError(t, err)
		require.Equal(t, StatusSuccess, result.Status)
		require.Equal(t, "prov-7", result.ProviderRef)
	})

	t.Run("still pending stays ambiguous", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "processing"})
		})

		result, err := client.LookupPurchase(t.Context(), "VTU-AIRTIME-8")

		require.NoError(t, err)
		require.Equal(t, StatusPending, result.Status)
	})
}

func TestClient_ListDataPlans(t *testing.T) {
	t.Run("bare sequence", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/budget-data/plans", r.URL.Path)
			require.Equal(t, "1", r.URL.Query().Get("network_id"))

			_, _ = w.Write([]byte(`[{"id": "p1", "name": "500MB", "price": 150}, {"data_plan": 42, "plan": "1GB", "amount": "300"}]`))
		})

		plans, err := client.ListDataPlans(t.Context(), "1")

		require.NoError(t, err)
		require.Len(t, plans, 2)

		require.Equal(t, "p1", plans[0].ID)
		require.Equal(t, "500MB", plans[0].Label)
		require.True(t, plans[0].Price.Equal(decimal.NewFromInt(150)))

		require.Equal(t, "42", plans[1].ID, "numeric data_plan field should identify the plan")
		require.Equal(t, "1GB", plans[1].Label)
		require.True(t, plans[1].Price.Equal(decimal.NewFromInt(300)))
		require.Equal(t, "1", plans[1].NetworkID)
	})

	t.Run("wrapped in data object", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data": [{"variation_id": "v9", "name": "2GB", "price": "500"}]}`))
		})

		plans, err := client.ListDataPlans(t.Context(), "2")

		require.NoError(t, err)
		require.Len(t, plans, 1)
		require.Equal(t, "v9", plans[0].ID)
	})

	t.Run("empty catalogue is valid", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[]`))
		})

		plans, err := client.ListDataPlans(t.Context(), "3")

		require.NoError(t, err)
		require.Empty(t, plans)
	})

	t.Run("fetch failure is an error not an empty catalogue", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		_, err := client.ListDataPlans(t.Context(), "4")

		require.Error(t, err)
	})
}

func TestClient_FetchWallet(t *testing.T) {
	t.Run("all fields", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/wallet", r.URL.Path)
			_, _ = w.Write([]byte(`{"mainBalance": 500, "cashbackBalance": 20, "referralBalance": 10}`))
		})

		snap, err := client.FetchWallet(t.Context())

		require.NoError(t, err)
		require.True(t, snap.Main.Equal(decimal.NewFromInt(500)))
		require.True(t, snap.Cashback.Equal(decimal.NewFromInt(20)))
		require.True(t, snap.Referral.Equal(decimal.NewFromInt(10)))
	})

	t.Run("missing fields default to zero", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"mainBalance": 500}`))
		})

		snap, err := client.FetchWallet(t.Context())

		require.NoError(t, err)
		require.True(t, snap.Main.Equal(decimal.NewFromInt(500)))
		require.True(t, snap.Cashback.IsZero())
		require.True(t, snap.Referral.IsZero())
	})
}
