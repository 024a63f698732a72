package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/digestly/digestly-api/internal/api/shared"
	"github.com/digestly/digestly-api/internal/service/auth"
	"github.com/digestly/digestly-api/internal/store"
)

// AuthHandler handles authentication-related API requests.
type AuthHandler struct {
	sessions *auth.SessionService
}

// NewAuthHandler creates a new AuthHandler with the given dependencies.
func NewAuthHandler(sessions *auth.SessionService) *AuthHandler {
	return &AuthHandler{
		sessions: sessions,
	}
}

// Register handles POST /api/auth/register requests.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest

	// Parse request
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	// Validate request
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	// New accounts always start as agents. Role escalation is a separate,
	// admin-only concern.
	session, err := h.sessions.Register(r.Context(), req.Email, req.Password, "")
	if err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			shared.RespondWithError(w, r, http.StatusConflict, "Email already exists")
			return
		}
		slog.Error("failed to register user", "error", err)
		HandleAPIError(w, r, err, "Failed to create user")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, AuthResponse{
		UserID:      session.User.ID,
		AccessToken: session.Token,
		ExpiresAt:   session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Login handles POST /api/auth/login requests.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	// Parse request
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	// Validate request
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	session, err := h.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		slog.Error("failed to log in user", "error", err)
		HandleAPIError(w, r, err, "Failed to authenticate user")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, AuthResponse{
		UserID:      session.User.ID,
		AccessToken: session.Token,
		ExpiresAt:   session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Logout handles POST /api/auth/logout requests. The presented token is
// added to the revocation list for the remainder of its lifetime; the
// client should discard it either way.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	principal, ok := getPrincipalFromContext(w, r)
	if !ok {
		return
	}

	if err := h.sessions.Revoke(r.Context(), principal); err != nil {
		// A logout that cannot reach the revocation list must not report
		// success: the token would remain usable until expiry.
		slog.Error("failed to revoke token on logout",
			"error", err,
			"user_id", principal.UserID)
		shared.RespondWithErrorAndLog(w, r, http.StatusBadGateway,
			"Logout could not be completed", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"detail": "Logged out"})
}

// Me handles GET /api/auth/me requests.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := getPrincipalFromContext(w, r)
	if !ok {
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, UserResponse{
		ID:    principal.UserID,
		Email: principal.Email,
		Role:  string(principal.Role),
	})
}

// RevokeAll handles POST /api/auth/revoke-all requests. Bumping the token
// version invalidates every outstanding token for the caller, including the
// one used to make this request.
func (h *AuthHandler) RevokeAll(w http.ResponseWriter, r *http.Request) {
	principal, ok := getPrincipalFromContext(w, r)
	if !ok {
		return
	}

	if _, err := h.sessions.RevokeAllSessions(r.Context(), principal.UserID); err != nil {
		slog.Error("failed to revoke all sessions",
			"error", err,
			"user_id", principal.UserID)
		HandleAPIError(w, r, err, "Failed to revoke sessions")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"detail": "All sessions revoked"})
}
