package db

import (
	"context"
	"time"

	"wellness/internal/types"
)

// PreferenceRepository stores per-user alert preference overrides.
type PreferenceRepository struct {
	db Pool
}

func NewPreferenceRepository(db Pool) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// Get returns the user's override for an alert type, or nil when the user
// has none.
func (r *PreferenceRepository) Get(ctx context.Context, userID, alertTypeID string) (*types.UserAlertPreference, error) {
	var p types.UserAlertPreference
	err := r.db.QueryRow(ctx,
		`SELECT user_id, alert_type_id, enabled, priority, channel, quiet_start, quiet_end, updated_at
		 FROM user_alert_preferences
		 WHERE user_id = $1 AND alert_type_id = $2`,
		userID, alertTypeID,
	).Scan(&p.UserID, &p.AlertTypeID, &p.Enabled, &p.Priority, &p.Channel, &p.QuietStart, &p.QuietEnd, &p.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load alert preference", err)
	}
	return &p, nil
}

// ListForUser returns every enabled alert type joined with the user's
// override, ordered by category then label.
func (r *PreferenceRepository) ListForUser(ctx context.Context, userID string) ([]types.AlertPreferenceView, error) {
	rows, err := r.db.Query(ctx,
		`SELECT t.id, t.label, t.description, t.category, t.premium_only,
		        t.default_priority, t.default_channel, t.cooldown_minutes, t.enabled,
		        p.user_id, p.enabled, p.priority, p.channel, p.quiet_start, p.quiet_end, p.updated_at
		 FROM alert_types t
		 LEFT JOIN user_alert_preferences p
		   ON p.alert_type_id = t.id AND p.user_id = $1
		 WHERE t.enabled = TRUE
		 ORDER BY t.category, t.label`,
		userID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list alert preferences", err)
	}
	defer rows.Close()

	var out []types.AlertPreferenceView
	for rows.Next() {
		var (
			v         types.AlertPreferenceView
			prefUser  *string
			enabled   *bool
			priority  *types.Priority
			channel   *types.Channel
			quietFrom *string
			quietTo   *string
			updatedAt *time.Time
		)
		if err := rows.Scan(
			&v.Type.ID, &v.Type.Label, &v.Type.Description, &v.Type.Category, &v.Type.PremiumOnly,
			&v.Type.DefaultPriority, &v.Type.DefaultChannel, &v.Type.CooldownMinutes, &v.Type.Enabled,
			&prefUser, &enabled, &priority, &channel, &quietFrom, &quietTo, &updatedAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan alert preference", err)
		}
		if prefUser != nil {
			v.Preference = &types.UserAlertPreference{
				UserID:      *prefUser,
				AlertTypeID: v.Type.ID,
				Enabled:     enabled == nil || *enabled,
				Priority:    priority,
				Channel:     channel,
				QuietStart:  quietFrom,
				QuietEnd:    quietTo,
			}
			if updatedAt != nil {
				v.Preference.UpdatedAt = *updatedAt
			}
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate alert preferences", err)
	}
	return out, nil
}

// UpsertBatch writes all updates in one transaction. Either every row is
// written or none is. Returns the number of rows written. A cleared field is
// stored as NULL even when a value for it was also supplied.
func (r *PreferenceRepository) UpsertBatch(ctx context.Context, userID string, updates []types.PreferenceUpdate, now time.Time) (int, error) {
	written := 0
	err := RunInTx(ctx, r.db, func(tx DBTX) error {
		for _, u := range updates {
			_, err := tx.Exec(ctx,
				`INSERT INTO user_alert_preferences
				   (user_id, alert_type_id, enabled, priority, channel, quiet_start, quiet_end, updated_at)
				 VALUES ($1, $2, COALESCE($3, TRUE), $4, $5, $6, $7, $8)
				 ON CONFLICT (user_id, alert_type_id) DO UPDATE SET
				   enabled     = COALESCE($3, user_alert_preferences.enabled),
				   priority    = CASE WHEN $9 THEN NULL ELSE COALESCE($4, user_alert_preferences.priority) END,
				   channel     = CASE WHEN $10 THEN NULL ELSE COALESCE($5, user_alert_preferences.channel) END,
				   quiet_start = CASE WHEN $11 THEN NULL ELSE COALESCE($6, user_alert_preferences.quiet_start) END,
				   quiet_end   = CASE WHEN $12 THEN NULL ELSE COALESCE($7, user_alert_preferences.quiet_end) END,
				   updated_at  = $8`,
				userID, u.AlertTypeID, u.Enabled, u.Priority, u.Channel, u.QuietStart, u.QuietEnd, now,
				u.ClearPriority, u.ClearChannel, u.ClearQuietStart, u.ClearQuietEnd,
			)
			if err != nil {
				return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert alert preference", err)
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}
