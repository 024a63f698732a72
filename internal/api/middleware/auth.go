package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/digestly/digestly-api/internal/api/shared"
	"github.com/digestly/digestly-api/internal/redact"
	"github.com/digestly/digestly-api/internal/service/auth"
)

// SessionValidator validates a bearer token through every layer: signature,
// expiry, revocation, and token version.
type SessionValidator interface {
	Validate(ctx context.Context, tokenString string) (*auth.Principal, error)
}

// AuthMiddleware provides bearer token authentication for routes.
type AuthMiddleware struct {
	sessions SessionValidator
}

// NewAuthMiddleware creates a new AuthMiddleware with the given dependencies.
func NewAuthMiddleware(sessions SessionValidator) *AuthMiddleware {
	return &AuthMiddleware{
		sessions: sessions,
	}
}

// Authenticate validates bearer tokens from the Authorization header and
// adds the principal to the request context for authorized requests.
// Every rejection returns the same 401 body, so the response does not
// disclose which validation layer failed.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Extract token from Authorization header
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		principal, err := m.sessions.Validate(r.Context(), parts[1])
		if err != nil {
			if isAuthError(err) {
				// Rejected tokens are logged at WARN so repeated failures
				// from one client are visible without debug logging.
				shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized,
					"Invalid or expired token", err, shared.WithElevatedLogLevel())
			} else {
				slog.Error("failed to validate token", "error", redact.Error(err))
				shared.RespondWithError(w, r, http.StatusInternalServerError, "Authentication error")
			}
			return
		}

		// Add principal to context
		ctx := context.WithValue(r.Context(), shared.PrincipalContextKey, principal)

		// Continue with the authenticated request
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects requests whose principal does not carry the admin
// role. Must run after Authenticate.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := GetPrincipal(r)
		if !ok {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		if !principal.IsAdmin() {
			shared.RespondWithError(w, r, http.StatusForbidden, "Forbidden")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// GetPrincipal extracts the authenticated principal from the request context.
// Returns the principal and a boolean indicating if it was found.
func GetPrincipal(r *http.Request) (*auth.Principal, bool) {
	principal, ok := r.Context().Value(shared.PrincipalContextKey).(*auth.Principal)
	return principal, ok
}

// isAuthError reports whether err is an expected token rejection rather
// than an infrastructure failure.
func isAuthError(err error) bool {
	return errors.Is(err, auth.ErrInvalidToken) ||
		errors.Is(err, auth.ErrExpiredToken) ||
		errors.Is(err, auth.ErrTokenNotYetValid) ||
		errors.Is(err, auth.ErrTokenRevoked) ||
		errors.Is(err, auth.ErrStaleTokenVersion) ||
		errors.Is(err, auth.ErrMissingToken)
}
