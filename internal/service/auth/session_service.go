package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/digestly/digestly-api/internal/domain"
	"github.com/digestly/digestly-api/internal/platform/logger"
	"github.com/digestly/digestly-api/internal/store"
)

// Session is the result of a successful registration or login.
type Session struct {
	Token     string
	TokenID   string
	ExpiresAt time.Time
	User      *domain.User
}

// SessionService composes token issuance, password verification, the
// revocation list, and the user store into the full session lifecycle:
// register, login, validate, and revoke.
type SessionService struct {
	jwtService      JWTService
	verifier        PasswordVerifier
	userStore       store.UserStore
	revocationStore store.RevocationStore
	timeFunc        func() time.Time // Injectable for testing
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	jwtService JWTService,
	verifier PasswordVerifier,
	userStore store.UserStore,
	revocationStore store.RevocationStore,
) *SessionService {
	return &SessionService{
		jwtService:      jwtService,
		verifier:        verifier,
		userStore:       userStore,
		revocationStore: revocationStore,
		timeFunc:        time.Now,
	}
}

// Register creates a new user account and issues its first token.
// Returns store.ErrEmailExists when the email is already taken.
func (s *SessionService) Register(
	ctx context.Context,
	email, password string,
	role domain.UserRole,
) (*Session, error) {
	log := logger.FromContext(ctx)

	user, err := domain.NewUser(email, password)
	if err != nil {
		return nil, err
	}
	if role != "" {
		user.Role = role
		if err := user.Validate(); err != nil {
			return nil, err
		}
	}

	if err := s.userStore.Create(ctx, user); err != nil {
		return nil, err
	}

	log.Info("user registered", "user_id", user.ID, "role", user.Role)

	return s.issueSession(ctx, user)
}

// Login verifies the credentials and issues a token. Unknown emails and
// wrong passwords both return ErrInvalidCredentials, and both burn a bcrypt
// comparison so the two cases take comparable time.
func (s *SessionService) Login(ctx context.Context, email, password string) (*Session, error) {
	log := logger.FromContext(ctx)

	user, err := s.userStore.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			DummyCompare(s.verifier, password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := s.verifier.Compare(user.HashedPassword, password); err != nil {
		log.Debug("login failed: password mismatch", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}

	log.Info("user logged in", "user_id", user.ID)

	return s.issueSession(ctx, user)
}

// Validate runs the full token check: signature and time claims, then the
// revocation list, then the user's current token version. The order matters:
// cheap local checks reject garbage before any backend is consulted.
//
// When the revocation backend is unreachable the check is skipped with a
// warning rather than failing the request. Signature, expiry, and version
// checks still apply, so an outage only disables early revocation.
func (s *SessionService) Validate(ctx context.Context, tokenString string) (*Principal, error) {
	log := logger.FromContext(ctx)

	claims, err := s.jwtService.ValidateToken(ctx, tokenString)
	if err != nil {
		return nil, err
	}

	revoked, err := s.revocationStore.IsRevoked(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, store.ErrRevocationUnavailable) {
			log.Warn("revocation check unavailable, proceeding without it",
				"token_id", claims.ID,
				"error", err)
		} else {
			return nil, fmt.Errorf("failed to check revocation: %w", err)
		}
	} else if revoked {
		log.Info("rejected revoked token", "token_id", claims.ID, "user_id", claims.UserID)
		return nil, ErrTokenRevoked
	}

	user, err := s.userStore.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			log.Debug("token references unknown user", "user_id", claims.UserID)
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if claims.TokenVersion != user.TokenVersion {
		log.Info("rejected stale token version",
			"user_id", user.ID,
			"token_version", claims.TokenVersion,
			"current_version", user.TokenVersion)
		return nil, ErrStaleTokenVersion
	}

	return &Principal{
		UserID:       user.ID,
		Email:        user.Email,
		Role:         user.Role,
		TokenID:      claims.ID,
		TokenVersion: claims.TokenVersion,
		TokenExpiry:  claims.ExpiresAt,
	}, nil
}

// Revoke invalidates a single token by adding its ID to the revocation list
// for the remainder of its lifetime. Tokens that have already expired need
// no entry.
func (s *SessionService) Revoke(ctx context.Context, principal *Principal) error {
	log := logger.FromContext(ctx)

	ttl := principal.TokenExpiry.Sub(s.timeFunc())
	if ttl <= 0 {
		return nil
	}

	if err := s.revocationStore.Revoke(ctx, principal.TokenID, ttl); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	log.Info("token revoked", "token_id", principal.TokenID, "user_id", principal.UserID)
	return nil
}

// RevokeAllSessions invalidates every outstanding token for the user by
// bumping their token version. Tokens carrying the old version fail the
// version check on their next use, with no per-token bookkeeping.
func (s *SessionService) RevokeAllSessions(ctx context.Context, userID uuid.UUID) (int, error) {
	log := logger.FromContext(ctx)

	newVersion, err := s.userStore.IncrementTokenVersion(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to increment token version: %w", err)
	}

	log.Info("all sessions revoked", "user_id", userID, "new_token_version", newVersion)
	return newVersion, nil
}

// issueSession generates a token for the user at their current token version.
func (s *SessionService) issueSession(ctx context.Context, user *domain.User) (*Session, error) {
	token, jti, lifetime, err := s.jwtService.GenerateToken(ctx, user.ID, user.TokenVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	return &Session{
		Token:     token,
		TokenID:   jti,
		ExpiresAt: s.timeFunc().Add(lifetime),
		User:      user,
	}, nil
}
