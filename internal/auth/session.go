// Package auth resolves bearer session tokens to authenticated users.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"wellness/internal/types"
)

// SessionStore is the data access the authenticator needs.
type SessionStore interface {
	GetByTokenHash(ctx context.Context, tokenHash string) (*types.Session, error)
	Touch(ctx context.Context, tokenHash string, now time.Time) error
}

// HashToken returns the hex SHA-256 digest under which a session token is
// stored. Raw tokens never reach the database.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// SessionAuthenticator implements core.Authenticator for signed-in users.
type SessionAuthenticator struct {
	store  SessionStore
	clock  types.Clock
	logger types.Logger
}

func NewSessionAuthenticator(store SessionStore, clock types.Clock, logger types.Logger) *SessionAuthenticator {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &SessionAuthenticator{store: store, clock: clock, logger: logger}
}

// ResolveToken looks the session up by digest.
//
// Distinct error codes:
//   - auth_token_invalid: no session matches, or it was revoked.
//   - auth_session_expired: the session exists but is past its expiry.
//
// Store failures are returned unchanged and surface as 500.
func (a *SessionAuthenticator) ResolveToken(ctx context.Context, token string) (*types.Actor, error) {
	hash := HashToken(token)
	sess, err := a.store.GetByTokenHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.RevokedAt != nil {
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid session token", nil)
	}

	now := a.clock.Now()
	if !now.Before(sess.ExpiresAt) {
		return nil, types.NewAppError(types.ErrCodeAuthSessionExpired, "session has expired", nil)
	}

	if err := a.store.Touch(ctx, hash, now); err != nil {
		a.logger.Warn("failed to touch session", "user_id", sess.UserID, "error", err)
	}

	return &types.Actor{ID: sess.UserID, Type: types.ActorTypeUser, Source: "session"}, nil
}
