package db

import (
	"context"
	"time"

	"wellness/internal/types"
)

const scheduledAlertColumns = `id, user_id, alert_type_id, title, body, data, priority, channel,
	status, scheduled_at, expires_at, attempts, max_attempts, recurrence, recurrence_rule,
	next_run_at, processed_at, claimed_at, last_error, created_at, updated_at`

// ScheduledAlertRepository persists ScheduledAlert rows and their state
// transitions.
type ScheduledAlertRepository struct {
	db DBTX
}

func NewScheduledAlertRepository(db DBTX) *ScheduledAlertRepository {
	return &ScheduledAlertRepository{db: db}
}

func scanScheduledAlert(row interface{ Scan(...any) error }, a *types.ScheduledAlert) error {
	return row.Scan(
		&a.ID, &a.UserID, &a.AlertTypeID, &a.Title, &a.Body, &a.Data, &a.Priority, &a.Channel,
		&a.Status, &a.ScheduledAt, &a.ExpiresAt, &a.Attempts, &a.MaxAttempts, &a.Recurrence, &a.RecurrenceRule,
		&a.NextRunAt, &a.ProcessedAt, &a.ClaimedAt, &a.LastError, &a.CreatedAt, &a.UpdatedAt,
	)
}

// Create inserts a new alert. ID, CreatedAt and UpdatedAt are populated from
// the database.
func (r *ScheduledAlertRepository) Create(ctx context.Context, a *types.ScheduledAlert) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO scheduled_alerts
		   (user_id, alert_type_id, title, body, data, priority, channel, status,
		    scheduled_at, expires_at, attempts, max_attempts, recurrence, recurrence_rule, next_run_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11, $12, $13, $14)
		 RETURNING id, created_at, updated_at`,
		a.UserID, a.AlertTypeID, a.Title, a.Body, a.Data, a.Priority, a.Channel, a.Status,
		a.ScheduledAt, a.ExpiresAt, a.MaxAttempts, a.Recurrence, a.RecurrenceRule, a.NextRunAt,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create scheduled alert", err)
	}
	return nil
}

// ExpireStale fails every live alert whose expiry has passed and whose
// schedule is more than a day old. Returns the number of rows expired.
func (r *ScheduledAlertRepository) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE scheduled_alerts
		 SET status = 'failed', last_error = 'Expired', processed_at = $1, updated_at = $1
		 WHERE status IN ('pending', 'queued')
		   AND expires_at IS NOT NULL
		   AND expires_at <= $1
		   AND scheduled_at <= $2`,
		now, now.Add(-24*time.Hour),
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to expire stale alerts", err)
	}
	return int(tag.RowsAffected()), nil
}

// ListDue returns up to limit live alerts that are due at now, ordered by
// priority rank then scheduled time.
func (r *ScheduledAlertRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]types.ScheduledAlert, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+scheduledAlertColumns+`
		 FROM scheduled_alerts
		 WHERE status IN ('pending', 'queued')
		   AND scheduled_at <= $1
		 ORDER BY CASE priority
		            WHEN 'urgent' THEN 0
		            WHEN 'high'   THEN 1
		            WHEN 'normal' THEN 2
		            WHEN 'low'    THEN 3
		            ELSE 4
		          END,
		          scheduled_at
		 LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list due alerts", err)
	}
	defer rows.Close()

	var out []types.ScheduledAlert
	for rows.Next() {
		var a types.ScheduledAlert
		if err := scanScheduledAlert(rows, &a); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan scheduled alert", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate scheduled alerts", err)
	}
	return out, nil
}

// Claim moves an alert to queued if it is pending, or queued by a claim older
// than claimTTL. Returns nil when another pass already holds the row.
func (r *ScheduledAlertRepository) Claim(ctx context.Context, id string, now time.Time, claimTTL time.Duration) (*types.ScheduledAlert, error) {
	var a types.ScheduledAlert
	err := scanScheduledAlert(r.db.QueryRow(ctx,
		`UPDATE scheduled_alerts
		 SET status = 'queued', claimed_at = $2, updated_at = $2
		 WHERE id = $1
		   AND (status = 'pending'
		        OR (status = 'queued' AND (claimed_at IS NULL OR claimed_at < $3)))
		 RETURNING `+scheduledAlertColumns,
		id, now, now.Add(-claimTTL),
	), &a)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to claim scheduled alert", err)
	}
	return &a, nil
}

// Cancel moves an alert to cancelled. It will never be retried.
func (r *ScheduledAlertRepository) Cancel(ctx context.Context, id string, reason string, now time.Time) error {
	return r.exec(ctx, "failed to cancel scheduled alert",
		`UPDATE scheduled_alerts
		 SET status = 'cancelled', last_error = $2, processed_at = $3, claimed_at = NULL, updated_at = $3
		 WHERE id = $1`,
		id, reason, now)
}

// Defer releases the claim and pushes the alert to until without consuming
// an attempt.
func (r *ScheduledAlertRepository) Defer(ctx context.Context, id string, until time.Time, now time.Time) error {
	return r.exec(ctx, "failed to defer scheduled alert",
		`UPDATE scheduled_alerts
		 SET status = 'pending', scheduled_at = $2, claimed_at = NULL, updated_at = $3
		 WHERE id = $1`,
		id, until, now)
}

// MarkSent records a successful one-shot delivery.
func (r *ScheduledAlertRepository) MarkSent(ctx context.Context, id string, attempts int, now time.Time) error {
	return r.exec(ctx, "failed to mark scheduled alert sent",
		`UPDATE scheduled_alerts
		 SET status = 'sent', attempts = $2, processed_at = $3, claimed_at = NULL,
		     last_error = NULL, updated_at = $3
		 WHERE id = $1`,
		id, attempts, now)
}

// Rearm rewrites a recurring alert for its next occurrence after a
// successful send.
func (r *ScheduledAlertRepository) Rearm(ctx context.Context, id string, scheduledAt time.Time, nextRunAt *time.Time, attempts int, now time.Time) error {
	return r.exec(ctx, "failed to rearm recurring alert",
		`UPDATE scheduled_alerts
		 SET status = 'pending', scheduled_at = $2, next_run_at = $3, attempts = $4,
		     processed_at = $5, claimed_at = NULL, last_error = NULL, updated_at = $5
		 WHERE id = $1`,
		id, scheduledAt, nextRunAt, attempts, now)
}

// Retry records a failed attempt and schedules the next one.
func (r *ScheduledAlertRepository) Retry(ctx context.Context, id string, retryAt time.Time, attempts int, lastError string, now time.Time) error {
	return r.exec(ctx, "failed to schedule alert retry",
		`UPDATE scheduled_alerts
		 SET status = 'pending', scheduled_at = $2, attempts = $3, last_error = $4,
		     claimed_at = NULL, updated_at = $5
		 WHERE id = $1`,
		id, retryAt, attempts, lastError, now)
}

// Fail moves an alert to the terminal failed state.
func (r *ScheduledAlertRepository) Fail(ctx context.Context, id string, attempts int, lastError string, now time.Time) error {
	return r.exec(ctx, "failed to mark scheduled alert failed",
		`UPDATE scheduled_alerts
		 SET status = 'failed', attempts = $2, last_error = $3, processed_at = $4,
		     claimed_at = NULL, updated_at = $4
		 WHERE id = $1`,
		id, attempts, lastError, now)
}

// ForceFail fails an alert without touching its attempt counter. Used when
// processing the row itself broke.
func (r *ScheduledAlertRepository) ForceFail(ctx context.Context, id string, lastError string, now time.Time) error {
	return r.exec(ctx, "failed to force-fail scheduled alert",
		`UPDATE scheduled_alerts
		 SET status = 'failed', last_error = $2, processed_at = $3, claimed_at = NULL, updated_at = $3
		 WHERE id = $1`,
		id, lastError, now)
}

func (r *ScheduledAlertRepository) exec(ctx context.Context, msg string, sql string, args ...any) error {
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, msg, err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundScheduledAlert, "scheduled alert not found", nil)
	}
	return nil
}
