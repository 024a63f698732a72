package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digestly/digestly-api/internal/domain"
	"github.com/digestly/digestly-api/internal/service/auth"
)

// stubValidator returns a fixed principal or error.
type stubValidator struct {
	principal *auth.Principal
	err       error
	sawToken  string
}

func (s *stubValidator) Validate(ctx context.Context, tokenString string) (*auth.Principal, error) {
	s.sawToken = tokenString
	if s.err != nil {
		return nil, s.err
	}
	return s.principal, nil
}

func okHandler(captured **auth.Principal) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			principal, _ := GetPrincipal(r)
			*captured = principal
		}
		w.WriteHeader(http.StatusOK)
	})
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	principal := &auth.Principal{
		UserID: uuid.New(),
		Email:  "user@example.com",
		Role:   domain.RoleAgent,
	}

	t.Run("valid bearer token passes principal through", func(t *testing.T) {
		t.Parallel()
		validator := &stubValidator{principal: principal}
		mw := NewAuthMiddleware(validator)

		var seen *auth.Principal
		req := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
		req.Header.Set("Authorization", "Bearer some-token")
		rec := httptest.NewRecorder()

		mw.Authenticate(okHandler(&seen)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "some-token", validator.sawToken)
		require.NotNil(t, seen)
		assert.Equal(t, principal.UserID, seen.UserID)
	})

	t.Run("bearer scheme is case-insensitive", func(t *testing.T) {
		t.Parallel()
		mw := NewAuthMiddleware(&stubValidator{principal: principal})

		req := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
		req.Header.Set("Authorization", "bearer some-token")
		rec := httptest.NewRecorder()

		mw.Authenticate(okHandler(nil)).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	// Every rejection must produce the identical body, so the response
	// does not disclose which check failed.
	t.Run("uniform 401 for all rejections", func(t *testing.T) {
		t.Parallel()

		rejections := []struct {
			name   string
			header string
			err    error
		}{
			{name: "missing header", header: ""},
			{name: "malformed header", header: "NotBearer token"},
			{name: "bearer without token", header: "Bearer"},
			{name: "invalid token", header: "Bearer bad", err: auth.ErrInvalidToken},
			{name: "expired token", header: "Bearer old", err: auth.ErrExpiredToken},
			{name: "not yet valid", header: "Bearer early", err: auth.ErrTokenNotYetValid},
			{name: "revoked token", header: "Bearer revoked", err: auth.ErrTokenRevoked},
			{name: "stale version", header: "Bearer stale", err: auth.ErrStaleTokenVersion},
		}

		for _, tc := range rejections {
			tc := tc
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()
				mw := NewAuthMiddleware(&stubValidator{err: tc.err})

				req := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
				if tc.header != "" {
					req.Header.Set("Authorization", tc.header)
				}
				rec := httptest.NewRecorder()

				mw.Authenticate(okHandler(nil)).ServeHTTP(rec, req)

				assert.Equal(t, http.StatusUnauthorized, rec.Code)
				assert.Equal(t, "Invalid or expired token", errorBody(t, rec))
			})
		}
	})

	t.Run("infrastructure failure is a 500, not a 401", func(t *testing.T) {
		t.Parallel()
		mw := NewAuthMiddleware(&stubValidator{err: errors.New("db connection lost")})

		req := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
		req.Header.Set("Authorization", "Bearer some-token")
		rec := httptest.NewRecorder()

		mw.Authenticate(okHandler(nil)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Authentication error", errorBody(t, rec))
	})
}

func TestRequireAdmin(t *testing.T) {
	t.Parallel()

	serve := func(t *testing.T, principal *auth.Principal) *httptest.ResponseRecorder {
		t.Helper()
		validator := &stubValidator{principal: principal}
		mw := NewAuthMiddleware(validator)

		req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
		req.Header.Set("Authorization", "Bearer some-token")
		rec := httptest.NewRecorder()

		mw.Authenticate(mw.RequireAdmin(okHandler(nil))).ServeHTTP(rec, req)
		return rec
	}

	t.Run("admin passes", func(t *testing.T) {
		t.Parallel()
		rec := serve(t, &auth.Principal{UserID: uuid.New(), Role: domain.RoleAdmin})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("agent is forbidden", func(t *testing.T) {
		t.Parallel()
		rec := serve(t, &auth.Principal{UserID: uuid.New(), Role: domain.RoleAgent})
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "Forbidden", errorBody(t, rec))
	})

	t.Run("missing principal is unauthorized", func(t *testing.T) {
		t.Parallel()
		mw := NewAuthMiddleware(&stubValidator{})

		req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
		rec := httptest.NewRecorder()

		// RequireAdmin without Authenticate in front
		mw.RequireAdmin(okHandler(nil)).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
