package alerts

import (
	"context"
	"fmt"
	"time"

	"wellness/internal/types"
)

const (
	DefaultMaxAttempts = 3
	DefaultExpiry      = 24 * time.Hour
)

// EnqueueRequest describes an alert to schedule. Zero values take defaults:
// priority and channel from the alert type, ScheduledAt now, MaxAttempts 3,
// and ExpiresAt ScheduledAt+24h for one-shot alerts.
type EnqueueRequest struct {
	UserID         string
	AlertTypeID    string
	Title          string
	Body           string
	Data           types.AlertData
	Priority       types.Priority
	Channel        types.Channel
	ScheduledAt    time.Time
	ExpiresAt      *time.Time
	MaxAttempts    int
	Recurrence     *types.Recurrence
	RecurrenceRule *types.RecurrenceRule
}

// Producer inserts new pending alerts on behalf of other features.
type Producer struct {
	alertTypes AlertTypeStore
	store      ScheduledAlertStore
	clock      types.Clock
}

func NewProducer(alertTypes AlertTypeStore, store ScheduledAlertStore, clock types.Clock) *Producer {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Producer{alertTypes: alertTypes, store: store, clock: clock}
}

// Enqueue validates req and stores it as a pending ScheduledAlert.
func (p *Producer) Enqueue(ctx context.Context, req EnqueueRequest) (*types.ScheduledAlert, error) {
	if req.UserID == "" || req.AlertTypeID == "" || req.Title == "" {
		return nil, types.NewAppError(types.ErrCodeValidationMissingField, "user, alert type and title are required", nil)
	}

	at, err := p.alertTypes.GetByID(ctx, req.AlertTypeID)
	if err != nil {
		return nil, fmt.Errorf("loading alert type: %w", err)
	}
	if at == nil || !at.Enabled {
		return nil, types.NewAppError(types.ErrCodeValidationUnknownAlertType,
			fmt.Sprintf("unknown alert type: %s", req.AlertTypeID), nil)
	}

	a := &types.ScheduledAlert{
		UserID:         req.UserID,
		AlertTypeID:    req.AlertTypeID,
		Title:          req.Title,
		Body:           req.Body,
		Data:           req.Data,
		Priority:       req.Priority,
		Channel:        req.Channel,
		Status:         types.AlertStatusPending,
		ScheduledAt:    req.ScheduledAt,
		ExpiresAt:      req.ExpiresAt,
		MaxAttempts:    req.MaxAttempts,
		Recurrence:     req.Recurrence,
		RecurrenceRule: req.RecurrenceRule,
	}
	if a.Priority == "" {
		a.Priority = at.DefaultPriority
	}
	if a.Channel == "" {
		a.Channel = at.DefaultChannel
	}
	if !a.Priority.IsValid() {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidPriority,
			fmt.Sprintf("invalid priority: %s", a.Priority), nil)
	}
	if !a.Channel.IsValid() {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidChannel,
			fmt.Sprintf("invalid channel: %s", a.Channel), nil)
	}
	if a.ScheduledAt.IsZero() {
		a.ScheduledAt = p.clock.Now()
	}
	if a.MaxAttempts <= 0 {
		a.MaxAttempts = DefaultMaxAttempts
	}

	if a.IsRecurring() {
		if !a.Recurrence.IsValid() {
			return nil, types.NewAppError(types.ErrCodeValidationMissingField,
				fmt.Sprintf("invalid recurrence: %s", *a.Recurrence), nil)
		}
		a.NextRunAt = CalculateNextRun(*a.Recurrence, a.RecurrenceRule, a.ScheduledAt)
	} else if a.ExpiresAt == nil {
		exp := a.ScheduledAt.Add(DefaultExpiry)
		a.ExpiresAt = &exp
	}

	if err := p.store.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}
