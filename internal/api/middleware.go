package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

// AuthMiddleware guards the admin API with a static bearer token
type AuthMiddleware struct {
	token string
}

// NewAuthMiddleware creates new auth middleware
func NewAuthMiddleware(token string) *AuthMiddleware {
	return &AuthMiddleware{token: token}
}

// Authenticate verifies the admin token from the Authorization header.
// Supports "Bearer xxx" or a raw token; X-API-Key works as a fallback.
// An empty configured token disables the admin API entirely.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.token == "" {
			respondError(w, http.StatusForbidden, "admin_disabled", "admin API is not configured")
			return
		}

		presented := extractToken(r)
		if presented == "" {
			respondError(w, http.StatusUnauthorized, "missing_token", "provide Authorization header with Bearer token")
			return
		}

		if subtle.ConstantTimeCompare([]byte(presented), []byte(m.token)) != 1 {
			slog.Warn("invalid admin token attempt", "remote_addr", r.RemoteAddr)
			respondError(w, http.StatusUnauthorized, "invalid_token", "the provided token is not valid")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// extractToken extracts the admin token from request headers
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		if strings.HasPrefix(authHeader, "Bearer ") {
			return strings.TrimPrefix(authHeader, "Bearer ")
		}
		return authHeader
	}

	return r.Header.Get("X-API-Key")
}
