package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/digestly/digestly-api/internal/api/middleware"
	"github.com/digestly/digestly-api/internal/config"
	"github.com/digestly/digestly-api/internal/domain"
	"github.com/digestly/digestly-api/internal/service/auth"
	"github.com/digestly/digestly-api/internal/store"
)

// memUserStore is an in-memory UserStore backing the auth endpoint tests.
type memUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[uuid.UUID]*domain.User)}
}

func (s *memUserStore) Create(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return store.ErrEmailExists
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.MinCost)
	if err != nil {
		return err
	}
	user.HashedPassword = string(hash)
	user.Password = ""
	s.users[user.ID] = user
	return nil
}

func (s *memUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *memUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (s *memUserStore) UpdateRole(ctx context.Context, id uuid.UUID, role domain.UserRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return store.ErrUserNotFound
	}
	user.Role = role
	return nil
}

func (s *memUserStore) List(ctx context.Context) ([]*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.User, 0, len(s.users))
	for _, user := range s.users {
		copied := *user
		out = append(out, &copied)
	}
	return out, nil
}

func (s *memUserStore) IncrementTokenVersion(ctx context.Context, id uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return 0, store.ErrUserNotFound
	}
	user.TokenVersion++
	return user.TokenVersion, nil
}

func (s *memUserStore) WithTx(tx *sql.Tx) store.UserStore { return s }

// memRevocationStore is an in-memory RevocationStore.
type memRevocationStore struct {
	mu      sync.Mutex
	revoked map[string]struct{}
	failing bool
}

func newMemRevocationStore() *memRevocationStore {
	return &memRevocationStore{revoked: make(map[string]struct{})}
}

func (s *memRevocationStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return store.ErrRevocationUnavailable
	}
	if ttl > 0 {
		s.revoked[jti] = struct{}{}
	}
	return nil
}

func (s *memRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return false, store.ErrRevocationUnavailable
	}
	_, ok := s.revoked[jti]
	return ok, nil
}

// authTestEnv is a minimal router exposing the auth endpoints against
// in-memory stores.
type authTestEnv struct {
	router      chi.Router
	users       *memUserStore
	revocations *memRevocationStore
	sessions    *auth.SessionService
}

func newAuthTestEnv(t *testing.T) *authTestEnv {
	t.Helper()

	jwtSvc, err := auth.NewJWTService(config.AuthConfig{
		JWTSecret:            "test-jwt-secret-that-is-32-chars-long",
		TokenLifetimeMinutes: 60,
		TokenIssuer:          "digestly-api",
		TokenAudience:        "digestly-clients",
	})
	require.NoError(t, err)

	users := newMemUserStore()
	revocations := newMemRevocationStore()
	sessions := auth.NewSessionService(jwtSvc, auth.NewBcryptVerifier(), users, revocations)

	authHandler := NewAuthHandler(sessions)
	authMiddleware := middleware.NewAuthMiddleware(sessions)

	router := chi.NewRouter()
	router.Post("/api/auth/register", authHandler.Register)
	router.Post("/api/auth/login", authHandler.Login)
	router.Group(func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)
		r.Post("/api/auth/logout", authHandler.Logout)
		r.Post("/api/auth/revoke-all", authHandler.RevokeAll)
		r.Get("/api/auth/me", authHandler.Me)
	})

	return &authTestEnv{
		router:      router,
		users:       users,
		revocations: revocations,
		sessions:    sessions,
	}
}

func (env *authTestEnv) do(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func (env *authTestEnv) register(t *testing.T, email, password string) AuthResponse {
	t.Helper()
	rec := env.do(http.MethodPost, "/api/auth/register",
		`{"email":"`+email+`","password":"`+password+`"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestAuthEndpoints_Register(t *testing.T) {
	t.Parallel()

	t.Run("creates account and returns token", func(t *testing.T) {
		t.Parallel()
		env := newAuthTestEnv(t)

		resp := env.register(t, "user@example.com", "password123")
		assert.NotEqual(t, uuid.Nil, resp.UserID)
		assert.NotEmpty(t, resp.AccessToken)
		assert.NotEmpty(t, resp.ExpiresAt)

		// The returned token is immediately usable
		me := env.do(http.MethodGet, "/api/auth/me", "", resp.AccessToken)
		assert.Equal(t, http.StatusOK, me.Code)
	})

	t.Run("duplicate email is a 409", func(t *testing.T) {
		t.Parallel()
		env := newAuthTestEnv(t)
		env.register(t, "user@example.com", "password123")

		rec := env.do(http.MethodPost, "/api/auth/register",
			`{"email":"user@example.com","password":"password456"}`, "")
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("short password is a 400", func(t *testing.T) {
		t.Parallel()
		env := newAuthTestEnv(t)

		rec := env.do(http.MethodPost, "/api/auth/register",
			`{"email":"user@example.com","password":"short"}`, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid email is a 400", func(t *testing.T) {
		t.Parallel()
		env := newAuthTestEnv(t)

		rec := env.do(http.MethodPost, "/api/auth/register",
			`{"email":"not-an-email","password":"password123"}`, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAuthEndpoints_Login(t *testing.T) {
	t.Parallel()

	t.Run("valid credentials return a fresh token", func(t *testing.T) {
		t.Parallel()
		env := newAuthTestEnv(t)
		env.register(t, "user@example.com", "password123")

		rec := env.do(http.MethodPost, "/api/auth/login",
			`{"email":"user@example.com","password":"password123"}`, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp AuthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.AccessToken)
	})

	// Wrong password and unknown email must be indistinguishable.
	t.Run("bad credentials are a uniform 401", func(t *testing.T) {
		t.Parallel()
		env := newAuthTestEnv(t)
		env.register(t, "user@example.com", "password123")

		wrongPassword := env.do(http.MethodPost, "/api/auth/login",
			`{"email":"user@example.com","password":"wrong-password"}`, "")
		unknownEmail := env.do(http.MethodPost, "/api/auth/login",
			`{"email":"nobody@example.com","password":"password123"}`, "")

		assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
		assert.Equal(t, http.StatusUnauthorized, unknownEmail.Code)
		assert.JSONEq(t, wrongPassword.Body.String(), unknownEmail.Body.String())
	})
}

func TestAuthEndpoints_Logout(t *testing.T) {
	t.Parallel()

	t.Run("logged-out token stops working", func(t *testing.T) {
		t.Parallel()
		env := newAuthTestEnv(t)
		resp := env.register(t, "user@example.com", "password123")

		rec := env.do(http.MethodPost, "/api/auth/logout", "", resp.AccessToken)
		require.Equal(t, http.StatusOK, rec.Code)

		me := env.do(http.MethodGet, "/api/auth/me", "", resp.AccessToken)
		assert.Equal(t, http.StatusUnauthorized, me.Code)
	})

	t.Run("logout is a 502 when the revocation store is down", func(t *testing.T) {
		t.Parallel()
		env := newAuthTestEnv(t)
		resp := env.register(t, "user@example.com", "password123")

		env.revocations.failing = true
		// The auth middleware fails open for revocation outages, so the
		// request reaches the handler; the revocation write then fails.
		rec := env.do(http.MethodPost, "/api/auth/logout", "", resp.AccessToken)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestAuthEndpoints_Me(t *testing.T) {
	t.Parallel()

	env := newAuthTestEnv(t)
	resp := env.register(t, "user@example.com", "password123")

	rec := env.do(http.MethodGet, "/api/auth/me", "", resp.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)

	var me UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, resp.UserID, me.ID)
	assert.Equal(t, "user@example.com", me.Email)
	assert.Equal(t, string(domain.RoleAgent), me.Role)
}

func TestAuthEndpoints_RevokeAll(t *testing.T) {
	t.Parallel()

	env := newAuthTestEnv(t)
	first := env.register(t, "user@example.com", "password123")

	login := env.do(http.MethodPost, "/api/auth/login",
		`{"email":"user@example.com","password":"password123"}`, "")
	require.Equal(t, http.StatusOK, login.Code)
	var second AuthResponse
	require.NoError(t, json.Unmarshal(login.Body.Bytes(), &second))

	rec := env.do(http.MethodPost, "/api/auth/revoke-all", "", first.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)

	// Both previously issued tokens carry the old version and are now dead
	assert.Equal(t, http.StatusUnauthorized,
		env.do(http.MethodGet, "/api/auth/me", "", first.AccessToken).Code)
	assert.Equal(t, http.StatusUnauthorized,
		env.do(http.MethodGet, "/api/auth/me", "", second.AccessToken).Code)

	// A new login works and carries the bumped version
	relogin := env.do(http.MethodPost, "/api/auth/login",
		`{"email":"user@example.com","password":"password123"}`, "")
	require.Equal(t, http.StatusOK, relogin.Code)
	var third AuthResponse
	require.NoError(t, json.Unmarshal(relogin.Body.Bytes(), &third))
	assert.Equal(t, http.StatusOK,
		env.do(http.MethodGet, "/api/auth/me", "", third.AccessToken).Code)
}
