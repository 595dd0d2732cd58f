package db

import (
	"context"
	"time"

	"wellness/internal/types"
)

// AlertHistoryRepository appends delivery outcomes and answers cooldown
// queries. Rows are never updated.
type AlertHistoryRepository struct {
	db DBTX
}

func NewAlertHistoryRepository(db DBTX) *AlertHistoryRepository {
	return &AlertHistoryRepository{db: db}
}

func (r *AlertHistoryRepository) Insert(ctx context.Context, h *types.AlertHistory) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO alert_history
		   (user_id, alert_type_id, scheduled_alert_id, priority, channel, status,
		    title, body, data, error_message, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id`,
		h.UserID, h.AlertTypeID, h.ScheduledAlertID, h.Priority, h.Channel, h.Status,
		h.Title, h.Body, h.Data, h.ErrorMessage, h.CreatedAt,
	).Scan(&h.ID)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert alert history", err)
	}
	return nil
}

// ExistsSince reports whether any history row for (userID, alertTypeID) was
// written after since.
func (r *AlertHistoryRepository) ExistsSince(ctx context.Context, userID, alertTypeID string, since time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM alert_history
		   WHERE user_id = $1 AND alert_type_id = $2 AND created_at > $3
		 )`,
		userID, alertTypeID, since,
	).Scan(&exists)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to check alert cooldown", err)
	}
	return exists, nil
}
