package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"imshaby_bot/internal/domain"
	"imshaby_bot/internal/logging"
)

// ErrNotVerified is returned when a token is requested for a user whose
// email has not been verified yet.
var ErrNotVerified = errors.New("user has no verified email")

type tokenSource interface {
	RetrieveAccessToken(ctx context.Context, email string) (string, error)
}

type userStore interface {
	SetTokens(ctx context.Context, id, accessToken string, expiresAt int64, parishKeys []string) error
}

// Manager hands out access tokens for verified users, transparently
// refreshing them via the identity provider when the cached one is
// missing or inside the expiry buffer.
type Manager struct {
	source tokenSource
	users  userStore
	buffer time.Duration
	logger *logrus.Entry
}

// NewManager constructs a Manager backed by the given identity provider
// and user store.
func NewManager(source tokenSource, users userStore, logger *logrus.Entry) *Manager {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Manager{
		source: source,
		users:  users,
		buffer: DefaultExpiryBuffer,
		logger: logger,
	}
}

// ValidToken returns a usable access token for the user. The cached
// token is returned as-is while it is fresh; otherwise a new one is
// obtained, persisted to the user store, and the in-memory user is
// updated so the session reflects the refreshed state. Callers must
// treat an error as "re-authentication required" and never fall back
// to the stale token.
func (m *Manager) ValidToken(ctx context.Context, user *domain.User) (string, error) {
	if m == nil || m.source == nil || m.users == nil {
		return "", errors.New("token manager is not initialized")
	}
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if user == nil {
		return "", errors.New("user is required")
	}

	if user.Email == "" || !user.EmailVerified {
		m.logger.WithFields(logging.Fields{
			"event":   "token_user_not_verified",
			"user_id": user.ID,
		}).Warn("token requested for unverified user")
		return "", ErrNotVerified
	}

	if user.AccessToken != "" && !IsExpired(user.TokenExpiresAt, m.buffer) {
		return user.AccessToken, nil
	}

	m.logger.WithFields(logging.Fields{
		"event":   "token_refresh",
		"user_id": user.ID,
	}).Info("access token missing or expired, retrieving a new one")

	accessToken, err := m.source.RetrieveAccessToken(ctx, user.Email)
	if err != nil {
		m.logger.WithFields(logging.Fields{
			"event":   "token_refresh_failed",
			"user_id": user.ID,
			"error":   err.Error(),
		}).Error("failed to retrieve access token")
		return "", fmt.Errorf("retrieve access token: %w", err)
	}

	expiresAt := DecodeExpiry(accessToken)
	parishKeys := ExtractParishKeys(accessToken)

	if err := m.users.SetTokens(ctx, user.ID, accessToken, expiresAt, parishKeys); err != nil {
		m.logger.WithFields(logging.Fields{
			"event":   "token_persist_failed",
			"user_id": user.ID,
			"error":   err.Error(),
		}).Error("failed to persist refreshed token")
		return "", fmt.Errorf("persist refreshed token: %w", err)
	}

	user.AccessToken = accessToken
	user.TokenExpiresAt = expiresAt
	user.ObservableParishKeys = parishKeys

	m.logger.WithFields(logging.Fields{
		"event":    "token_refreshed",
		"user_id":  user.ID,
		"parishes": len(parishKeys),
	}).Info("refreshed access token")

	return accessToken, nil
}
