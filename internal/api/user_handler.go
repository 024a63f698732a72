package api

import (
	"log/slog"
	"net/http"

	"github.com/digestly/digestly-api/internal/api/shared"
	"github.com/digestly/digestly-api/internal/domain"
	"github.com/digestly/digestly-api/internal/store"
)

// UserHandler handles user administration HTTP requests
type UserHandler struct {
	userStore store.UserStore
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userStore store.UserStore) *UserHandler {
	return &UserHandler{
		userStore: userStore,
	}
}

// ListUsers handles GET /api/users requests (admin only).
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userStore.List(r.Context())
	if err != nil {
		slog.Error("failed to list users", "error", err)
		HandleAPIError(w, r, err, "Failed to list users")
		return
	}

	out := make([]UserResponse, 0, len(users))
	for _, user := range users {
		out = append(out, userToResponse(user))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, out)
}

// UpdateUserRole handles PUT /api/users/{id}/role requests (admin only).
// Role changes take effect on the user's next token refresh; outstanding
// tokens keep their issued role claim until they expire.
func (h *UserHandler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	userID, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	var req UpdateUserRoleRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	if err := h.userStore.UpdateRole(r.Context(), userID, domain.UserRole(req.Role)); err != nil {
		slog.Error("failed to update user role", "error", err, "user_id", userID)
		HandleAPIError(w, r, err, "Failed to update user role")
		return
	}

	user, err := h.userStore.GetByID(r.Context(), userID)
	if err != nil {
		slog.Error("failed to load user after role update", "error", err, "user_id", userID)
		HandleAPIError(w, r, err, "Failed to load user")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, userToResponse(user))
}
