package db

import (
	"context"

	"wellness/internal/types"
)

// PushDeviceRepository stores push tokens registered by user devices.
type PushDeviceRepository struct {
	db DBTX
}

func NewPushDeviceRepository(db DBTX) *PushDeviceRepository {
	return &PushDeviceRepository{db: db}
}

// Upsert registers a token or refreshes its last-seen time.
func (r *PushDeviceRepository) Upsert(ctx context.Context, d *types.PushDevice) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO push_devices (user_id, token, platform, created_at, last_seen_at)
		 VALUES ($1, $2, $3, $4, $4)
		 ON CONFLICT (user_id, token) DO UPDATE
		   SET platform = EXCLUDED.platform, last_seen_at = EXCLUDED.last_seen_at`,
		d.UserID, d.Token, d.Platform, d.LastSeenAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to register push device", err)
	}
	return nil
}

// Delete removes one of the user's tokens.
func (r *PushDeviceRepository) Delete(ctx context.Context, userID, token string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM push_devices WHERE user_id = $1 AND token = $2`, userID, token)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete push device", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundDevice, "push device not found", nil)
	}
	return nil
}

// ListTokens returns the user's push tokens, most recently seen first.
func (r *PushDeviceRepository) ListTokens(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT token FROM push_devices WHERE user_id = $1 ORDER BY last_seen_at DESC`, userID)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list push devices", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var tok string
		if err := rows.Scan(&tok); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan push token", err)
		}
		tokens = append(tokens, tok)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate push devices", err)
	}
	return tokens, nil
}

// Prune removes tokens the push provider reported as unregistered.
func (r *PushDeviceRepository) Prune(ctx context.Context, userID string, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `DELETE FROM push_devices WHERE user_id = $1 AND token = ANY($2)`, userID, tokens)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to prune push devices", err)
	}
	return nil
}
