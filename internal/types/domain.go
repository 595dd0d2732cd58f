package types

import "time"

// AlertType is a catalog entry describing a kind of alert and its defaults.
type AlertType struct {
	ID              string   `json:"id"`
	Label           string   `json:"label"`
	Description     string   `json:"description"`
	Category        string   `json:"category"`
	PremiumOnly     bool     `json:"premium_only"`
	DefaultPriority Priority `json:"default_priority"`
	DefaultChannel  Channel  `json:"default_channel"`
	CooldownMinutes int      `json:"cooldown_minutes"`
	Enabled         bool     `json:"enabled"`
}

// UserAlertPreference is a per-user override of an AlertType. Nil fields fall
// back to the type defaults.
type UserAlertPreference struct {
	UserID      string    `json:"user_id"`
	AlertTypeID string    `json:"alert_type_id"`
	Enabled     bool      `json:"enabled"`
	Priority    *Priority `json:"priority,omitempty"`
	Channel     *Channel  `json:"channel,omitempty"`
	QuietStart  *string   `json:"quiet_start,omitempty"`
	QuietEnd    *string   `json:"quiet_end,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EffectiveSettings is the resolved delivery configuration for one
// (user, alert type) pair.
type EffectiveSettings struct {
	Enabled         bool     `json:"enabled"`
	Priority        Priority `json:"priority"`
	Channel         Channel  `json:"channel"`
	QuietStart      *string  `json:"quiet_start"`
	QuietEnd        *string  `json:"quiet_end"`
	CooldownMinutes int      `json:"cooldown_minutes"`
}

// HasQuietHours reports whether both quiet-hour bounds are set.
func (s *EffectiveSettings) HasQuietHours() bool {
	return s.QuietStart != nil && s.QuietEnd != nil && *s.QuietStart != "" && *s.QuietEnd != ""
}

// ScheduledAlert is a unit of pending work for the dispatcher.
type ScheduledAlert struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	AlertTypeID    string          `json:"alert_type_id"`
	Title          string          `json:"title"`
	Body           string          `json:"body"`
	Data           AlertData       `json:"data,omitempty"`
	Priority       Priority        `json:"priority"`
	Channel        Channel         `json:"channel"`
	Status         AlertStatus     `json:"status"`
	ScheduledAt    time.Time       `json:"scheduled_at"`
	ExpiresAt      *time.Time      `json:"expires_at,omitempty"`
	Attempts       int             `json:"attempts"`
	MaxAttempts    int             `json:"max_attempts"`
	Recurrence     *Recurrence     `json:"recurrence,omitempty"`
	RecurrenceRule *RecurrenceRule `json:"recurrence_rule,omitempty"`
	NextRunAt      *time.Time      `json:"next_run_at,omitempty"`
	ProcessedAt    *time.Time      `json:"processed_at,omitempty"`
	ClaimedAt      *time.Time      `json:"claimed_at,omitempty"`
	LastError      *string         `json:"last_error,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// IsRecurring reports whether the alert repeats after a successful send.
func (a *ScheduledAlert) IsRecurring() bool {
	return a.Recurrence != nil && *a.Recurrence != ""
}

// AlertHistory is an append-only record of a delivery outcome.
type AlertHistory struct {
	ID               string        `json:"id"`
	UserID           string        `json:"user_id"`
	AlertTypeID      string        `json:"alert_type_id"`
	ScheduledAlertID string        `json:"scheduled_alert_id"`
	Priority         Priority      `json:"priority"`
	Channel          Channel       `json:"channel"`
	Status           HistoryStatus `json:"status"`
	Title            string        `json:"title"`
	Body             string        `json:"body"`
	Data             AlertData     `json:"data,omitempty"`
	ErrorMessage     *string       `json:"error_message,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
}

// XPEvent is one entry in the append-only XP ledger.
type XPEvent struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	EventType string    `json:"event_type"`
	Source    string    `json:"source"`
	Amount    int       `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// UserXP is the running XP balance of a user.
type UserXP struct {
	UserID    string    `json:"user_id"`
	TotalXP   int       `json:"total_xp"`
	Level     int       `json:"level"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UnlockedAchievement is an achievement newly granted to a user.
type UnlockedAchievement struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	XPReward int    `json:"xpReward"`
}

// PushDevice is a registered push token for a user's device.
type PushDevice struct {
	UserID     string       `json:"user_id"`
	Token      string       `json:"token"`
	Platform   PushPlatform `json:"platform"`
	CreatedAt  time.Time    `json:"created_at"`
	LastSeenAt time.Time    `json:"last_seen_at"`
}

// AlertPreferenceView pairs an alert type with the user's override, if any.
type AlertPreferenceView struct {
	Type       AlertType
	Preference *UserAlertPreference
}

// PreferenceUpdate is one entry of a batch preference write. Nil fields keep
// the stored value (or the type default for a new row). A Clear flag drops
// the stored override so the alert type default applies again.
type PreferenceUpdate struct {
	AlertTypeID string
	Enabled     *bool
	Priority    *Priority
	Channel     *Channel
	QuietStart  *string
	QuietEnd    *string

	ClearPriority   bool
	ClearChannel    bool
	ClearQuietStart bool
	ClearQuietEnd   bool
}

// Session is a bearer session issued to a signed-in user. Only the SHA-256
// digest of the token is stored.
type Session struct {
	TokenHash string     `json:"-"`
	UserID    string     `json:"user_id"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}
