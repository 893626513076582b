package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/vtumart/internal/handlers/userctx"
)

// Allow to use a function as principal verifier
type verifierFunc func(r *http.Request) (uuid.UUID, error)

func (f verifierFunc) FromRequest(r *http.Request) (uuid.UUID, error) {
	return f(r)
}

func TestPrincipalMiddleware(t *testing.T) {
	// Simple handler that writes the user id from context
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Must always be true cause middleware has to set the id or write error to response
		userID, ok := userctx.FromContext(r.Context())
		require.True(t, ok)

		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte(userID.String()))
		require.NoError(t, err, "should write user id to response")
	})

	t.Run("verified ok", func(t *testing.T) {
		userID := uuid.New()
		middleware := PrincipalMiddleware(verifierFunc(func(r *http.Request) (uuid.UUID, error) {
			return userID, nil
		}))

		srv := httptest.NewServer(middleware(handler))
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/test")
		require.NoError(t, err, "should make request to test server")
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err, "should read response body")
		defer resp.Body.Close() // nolint:errcheck

		require.Equalf(t, http.StatusOK, resp.StatusCode, "should return status OK. Resp: %s", string(body))
		require.Equal(t, userID.String(), string(body), "should return user id in response")
	})

	t.Run("verification fail", func(t *testing.T) {
		middleware := PrincipalMiddleware(verifierFunc(func(r *http.Request) (uuid.UUID, error) {
			return uuid.Nil, errors.New("bad token")
		}))

		srv := httptest.NewServer(middleware(handler))
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/test")
		require.NoError(t, err, "should make request to test server")
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err, "should read response body")
		defer resp.Body.Close() // nolint:errcheck

		require.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "should return status Unauthorized. Resp: %s", string(body))
		require.JSONEq(t,
			`{
				"error": "service_error",
				"message": "Unauthorized"
			}`,
			string(body),
		)
	})
}
