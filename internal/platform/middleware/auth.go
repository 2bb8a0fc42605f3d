package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"docextract/internal/jwttoken"
)

// JWTValidator validates reviewer access tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*jwttoken.Claims, error)
}

type contextKeyReviewerID struct{}

// ContextKeyReviewerID is exported for tests that need context.WithValue.
var ContextKeyReviewerID = contextKeyReviewerID{}

// GetReviewerID retrieves the authenticated reviewer ID from the context.
func GetReviewerID(ctx context.Context) string {
	id, ok := ctx.Value(ContextKeyReviewerID).(string)
	if !ok {
		return ""
	}
	return id
}

// RequireAuth guards reviewer actions. Requests without a valid bearer token
// are rejected with 401 before reaching the handler.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized: missing bearer token",
					"path", r.URL.Path,
					"request_id", GetRequestID(ctx),
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized: invalid token",
					"error", err,
					"request_id", GetRequestID(ctx),
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			ctx = context.WithValue(ctx, ContextKeyReviewerID, claims.ReviewerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
