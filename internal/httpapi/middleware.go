package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/msavelyev/calhub/internal/models"
	"github.com/msavelyev/calhub/internal/repositories/users"
)

type contextKey string

const userIDKey contextKey = "userID"

// jwtAuth validates the Bearer token, checks the user still exists and stores
// the user id in the request context. A signed token is not enough on its
// own: the row behind it may have been removed.
func jwtAuth(secret string, users users.Repository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			token, found := strings.CutPrefix(authHeader, "Bearer ")
			if !found || token == "" {
				writeError(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			userID, err := ValidateToken(token, secret)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ok, err := users.Exists(r.Context(), userID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			if !ok {
				writeError(w, http.StatusUnauthorized, "unknown user")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext extracts the authenticated user id from the request
// context.
func UserIDFromContext(ctx context.Context) (models.UserID, bool) {
	id, ok := ctx.Value(userIDKey).(models.UserID)
	return id, ok
}
