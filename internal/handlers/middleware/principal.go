package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/vtumart/internal/handlers/render"
	"github.com/nkiryanov/vtumart/internal/handlers/userctx"
)

type principalVerifier interface {
	FromRequest(r *http.Request) (uuid.UUID, error)
}

// PrincipalMiddleware rejects requests without a valid access token and
// puts the authenticated user id on the request context
func PrincipalMiddleware(v principalVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := v.FromRequest(r)
			if err != nil {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := userctx.New(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
