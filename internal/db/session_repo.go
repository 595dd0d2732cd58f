package db

import (
	"context"
	"time"

	"wellness/internal/types"
)

// SessionRepository looks up bearer sessions by token digest.
type SessionRepository struct {
	db DBTX
}

func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

// GetByTokenHash returns the session, or nil when none matches.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*types.Session, error) {
	s := types.Session{TokenHash: tokenHash}
	err := r.db.QueryRow(ctx,
		`SELECT user_id, expires_at, revoked_at FROM sessions WHERE token_hash = $1`,
		tokenHash,
	).Scan(&s.UserID, &s.ExpiresAt, &s.RevokedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load session", err)
	}
	return &s, nil
}

// Touch records activity on the session.
func (r *SessionRepository) Touch(ctx context.Context, tokenHash string, now time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE sessions SET last_seen_at = $2 WHERE token_hash = $1`, tokenHash, now)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to touch session", err)
	}
	return nil
}
