package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/digestly/digestly-api/internal/api/middleware"
	"github.com/digestly/digestly-api/internal/api/shared"
	"github.com/digestly/digestly-api/internal/domain"
	"github.com/digestly/digestly-api/internal/service/auth"
)

// HandleAPIError maps an internal error to an HTTP status and safe message,
// writes the response, and logs the underlying error with the trace ID.
// When userMessage is empty the mapped safe message is used.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, userMessage string) {
	status := MapErrorToStatusCode(err)
	if userMessage == "" {
		userMessage = GetSafeErrorMessage(err)
	}
	shared.RespondWithErrorAndLog(w, r, status, userMessage, err)
}

// getPrincipalFromContext extracts the authenticated principal from the
// request context. It writes a 401 response and returns false when the
// principal is missing, which only happens when a route is miswired without
// the auth middleware.
func getPrincipalFromContext(w http.ResponseWriter, r *http.Request) (*auth.Principal, bool) {
	principal, ok := middleware.GetPrincipal(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid or expired token")
		return nil, false
	}
	return principal, true
}

// getPathUUID extracts a UUID from the URL path parameters.
// It parses and validates the UUID, handling common error cases.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, fmt.Errorf("%w: %s is required", domain.ErrValidation, paramName)
	}

	id, err := uuid.Parse(pathParam)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s has invalid format", domain.ErrInvalidID, paramName)
	}

	return id, nil
}
