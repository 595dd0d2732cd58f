package db

import (
	"context"

	"wellness/internal/types"
)

const alertTypeColumns = `id, label, description, category, premium_only,
	default_priority, default_channel, cooldown_minutes, enabled`

// AlertTypeRepository reads the alert_types catalog.
type AlertTypeRepository struct {
	db DBTX
}

func NewAlertTypeRepository(db DBTX) *AlertTypeRepository {
	return &AlertTypeRepository{db: db}
}

func scanAlertType(row interface{ Scan(...any) error }, t *types.AlertType) error {
	return row.Scan(
		&t.ID, &t.Label, &t.Description, &t.Category, &t.PremiumOnly,
		&t.DefaultPriority, &t.DefaultChannel, &t.CooldownMinutes, &t.Enabled,
	)
}

// GetByID returns the alert type, or nil when no such type exists.
func (r *AlertTypeRepository) GetByID(ctx context.Context, id string) (*types.AlertType, error) {
	var t types.AlertType
	err := scanAlertType(r.db.QueryRow(ctx,
		`SELECT `+alertTypeColumns+` FROM alert_types WHERE id = $1`, id), &t)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load alert type", err)
	}
	return &t, nil
}

// ExistingIDs returns the subset of ids present in the catalog.
func (r *AlertTypeRepository) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	found := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	rows, err := r.db.Query(ctx, `SELECT id FROM alert_types WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to check alert types", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan alert type id", err)
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate alert types", err)
	}
	return found, nil
}
