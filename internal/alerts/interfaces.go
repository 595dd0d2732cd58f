// Package alerts implements the scheduled-alert pipeline: preference
// resolution, quiet-hours and cooldown gating, and the cron dispatcher that
// drives ScheduledAlert rows through their lifecycle.
package alerts

import (
	"context"
	"time"

	"wellness/internal/types"
)

// AlertTypeStore reads the alert type catalog.
type AlertTypeStore interface {
	GetByID(ctx context.Context, id string) (*types.AlertType, error)
}

// PreferenceStore reads per-user overrides.
type PreferenceStore interface {
	Get(ctx context.Context, userID, alertTypeID string) (*types.UserAlertPreference, error)
}

// ScheduledAlertStore persists ScheduledAlert rows and their transitions.
// Implemented by db.ScheduledAlertRepository.
type ScheduledAlertStore interface {
	Create(ctx context.Context, a *types.ScheduledAlert) error
	ExpireStale(ctx context.Context, now time.Time) (int, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]types.ScheduledAlert, error)
	Claim(ctx context.Context, id string, now time.Time, claimTTL time.Duration) (*types.ScheduledAlert, error)
	Cancel(ctx context.Context, id string, reason string, now time.Time) error
	Defer(ctx context.Context, id string, until time.Time, now time.Time) error
	MarkSent(ctx context.Context, id string, attempts int, now time.Time) error
	Rearm(ctx context.Context, id string, scheduledAt time.Time, nextRunAt *time.Time, attempts int, now time.Time) error
	Retry(ctx context.Context, id string, retryAt time.Time, attempts int, lastError string, now time.Time) error
	Fail(ctx context.Context, id string, attempts int, lastError string, now time.Time) error
	ForceFail(ctx context.Context, id string, lastError string, now time.Time) error
}

// HistoryStore appends delivery outcomes and answers cooldown lookups.
type HistoryStore interface {
	Insert(ctx context.Context, h *types.AlertHistory) error
	ExistsSince(ctx context.Context, userID, alertTypeID string, since time.Time) (bool, error)
}

// SettingsResolver produces the effective delivery settings for a
// (user, alert type) pair. A nil result means the alert must not be
// delivered.
type SettingsResolver interface {
	GetEffectiveSettings(ctx context.Context, userID, alertTypeID string) (*types.EffectiveSettings, error)
}

// PushSender delivers a message to every device of a user. Ordinary
// delivery failures are reported through PushResult.Success; an error is
// reserved for faults the caller cannot recover from.
type PushSender interface {
	SendPushToUser(ctx context.Context, userID, notificationType string, msg types.PushMessage) (types.PushResult, error)
}

// RunLocker serialises dispatch passes across processes.
type RunLocker interface {
	Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, owner string) error
}

// DispatchMetrics receives per-pass counters. Implementations must not fail
// the pass.
type DispatchMetrics interface {
	RecordPass(ctx context.Context, result DispatchResult, duration time.Duration)
	RecordPushFailure(ctx context.Context, channel types.Channel, priority types.Priority)
}
