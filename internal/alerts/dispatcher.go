package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"wellness/internal/types"
)

const (
	// ReasonDisabled is recorded on rows cancelled because the user or the
	// catalog switched the alert type off.
	ReasonDisabled = "User disabled or type removed"

	defaultPushError = "push delivery failed"

	// runLockKey names the cross-process dispatch lock.
	runLockKey = "alert-dispatch"

	// maxCatchUpSteps bounds how far a recurring series is fast-forwarded
	// past missed occurrences.
	maxCatchUpSteps = 10000
)

// DispatchResult summarises one dispatch pass.
type DispatchResult struct {
	Processed   int  `json:"processed"`
	Sent        int  `json:"sent"`
	Failed      int  `json:"failed"`
	Rescheduled int  `json:"rescheduled"`
	Expired     int  `json:"expired"`
	Cancelled   int  `json:"cancelled"`
	Skipped     bool `json:"skipped,omitempty"`
}

// DispatcherConfig holds the dispatcher tunables.
type DispatcherConfig struct {
	BatchSize  int            // Default: 50
	ClaimTTL   time.Duration  // Default: 10m
	RunLockTTL time.Duration  // Default: 2m
	Location   *time.Location // Zone used to evaluate quiet hours. Default: UTC
}

func (c *DispatcherConfig) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.ClaimTTL <= 0 {
		c.ClaimTTL = 10 * time.Minute
	}
	if c.RunLockTTL <= 0 {
		c.RunLockTTL = 2 * time.Minute
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeFailed
	outcomeRescheduled
	outcomeCancelled
)

// DispatcherOption customises a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithClock overrides the time source.
func WithClock(c types.Clock) DispatcherOption {
	return func(d *Dispatcher) { d.clock = c }
}

// WithMetrics attaches a metrics sink.
func WithMetrics(m DispatchMetrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithRunLocker makes overlapping passes skip instead of racing.
func WithRunLocker(l RunLocker) DispatcherOption {
	return func(d *Dispatcher) { d.locker = l }
}

// Dispatcher drives due ScheduledAlert rows through one lifecycle step per
// pass. Every row is claimed with a conditional update before any side
// effect, so concurrent passes never deliver the same row twice.
type Dispatcher struct {
	store    ScheduledAlertStore
	settings SettingsResolver
	history  HistoryStore
	cooldown *CooldownChecker
	sender   PushSender
	metrics  DispatchMetrics
	locker   RunLocker
	clock    types.Clock
	logger   types.Logger
	cfg      DispatcherConfig
	workerID string
}

func NewDispatcher(
	store ScheduledAlertStore,
	settings SettingsResolver,
	history HistoryStore,
	sender PushSender,
	cfg DispatcherConfig,
	logger types.Logger,
	opts ...DispatcherOption,
) *Dispatcher {
	cfg.applyDefaults()
	if logger == nil {
		logger = types.NopLogger{}
	}
	d := &Dispatcher{
		store:    store,
		settings: settings,
		history:  history,
		sender:   sender,
		metrics:  NopMetrics{},
		clock:    types.RealClock{},
		logger:   logger,
		cfg:      cfg,
		workerID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.cooldown = NewCooldownChecker(history, d.clock)
	return d
}

// Run executes one dispatch pass at the current time.
func (d *Dispatcher) Run(ctx context.Context) (DispatchResult, error) {
	return d.RunAt(ctx, d.clock.Now())
}

// RunAt executes one dispatch pass as of now: the expiry sweep, then up to
// BatchSize due rows in priority order. Errors from individual rows are
// absorbed into the result; only sweep and selection failures are returned.
func (d *Dispatcher) RunAt(ctx context.Context, now time.Time) (DispatchResult, error) {
	var result DispatchResult
	start := time.Now()

	if d.locker != nil {
		acquired, err := d.locker.Acquire(ctx, runLockKey, d.workerID, d.cfg.RunLockTTL)
		if err != nil {
			d.logger.Warn("run lock unavailable, continuing with row claims only", "error", err.Error())
		} else if !acquired {
			d.logger.Info("dispatch pass already running elsewhere, skipping")
			result.Skipped = true
			return result, nil
		} else {
			defer func() {
				if err := d.locker.Release(context.WithoutCancel(ctx), runLockKey, d.workerID); err != nil {
					d.logger.Warn("failed to release run lock", "error", err.Error())
				}
			}()
		}
	}

	expired, err := d.store.ExpireStale(ctx, now)
	if err != nil {
		return result, fmt.Errorf("expiry sweep: %w", err)
	}
	result.Expired = expired

	due, err := d.store.ListDue(ctx, now, d.cfg.BatchSize)
	if err != nil {
		return result, fmt.Errorf("selecting due alerts: %w", err)
	}

	for i := range due {
		if ctx.Err() != nil {
			d.logger.Warn("dispatch pass interrupted", "remaining", len(due)-i, "error", ctx.Err().Error())
			break
		}
		d.processCandidate(ctx, due[i].ID, now, &result)
	}

	d.metrics.RecordPass(ctx, result, time.Since(start))
	d.logger.Info("dispatch pass complete",
		"processed", result.Processed,
		"sent", result.Sent,
		"failed", result.Failed,
		"rescheduled", result.Rescheduled,
		"expired", result.Expired,
		"cancelled", result.Cancelled,
	)
	return result, nil
}

func (d *Dispatcher) processCandidate(ctx context.Context, id string, now time.Time, result *DispatchResult) {
	log := d.logger.With("alert_id", id)

	a, err := d.store.Claim(ctx, id, now, d.cfg.ClaimTTL)
	if err != nil {
		log.Error("failed to claim alert", "error", err.Error())
		return
	}
	if a == nil {
		// Claimed by a concurrent pass.
		return
	}
	result.Processed++

	o, err := d.safeHandle(ctx, a, now)
	if err != nil {
		log.Error("alert processing failed", "error", err.Error())
		if ferr := d.store.ForceFail(ctx, a.ID, err.Error(), now); ferr != nil {
			log.Error("failed to mark alert failed", "error", ferr.Error())
		}
		result.Failed++
		return
	}

	switch o {
	case outcomeSent:
		result.Sent++
	case outcomeFailed:
		result.Failed++
	case outcomeRescheduled:
		result.Rescheduled++
	case outcomeCancelled:
		result.Cancelled++
	}
}

func (d *Dispatcher) safeHandle(ctx context.Context, a *types.ScheduledAlert, now time.Time) (o outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return d.handle(ctx, a, now)
}

func (d *Dispatcher) handle(ctx context.Context, a *types.ScheduledAlert, now time.Time) (outcome, error) {
	settings, err := d.settings.GetEffectiveSettings(ctx, a.UserID, a.AlertTypeID)
	if err != nil {
		return 0, err
	}
	if settings == nil || !settings.Enabled {
		if err := d.store.Cancel(ctx, a.ID, ReasonDisabled, now); err != nil {
			return 0, err
		}
		return outcomeCancelled, nil
	}

	urgent := a.Priority == types.PriorityUrgent || settings.Priority == types.PriorityUrgent
	if !urgent && settings.HasQuietHours() {
		localNow := now.In(d.cfg.Location)
		if IsInQuietWindow(localNow.Format("15:04"), *settings.QuietStart, *settings.QuietEnd) {
			until, err := NextQuietEnd(localNow, *settings.QuietEnd)
			if err != nil {
				return 0, err
			}
			if err := d.store.Defer(ctx, a.ID, until.UTC(), now); err != nil {
				return 0, err
			}
			return outcomeRescheduled, nil
		}
	}

	cooling, err := d.cooldown.checkAt(ctx, a.UserID, a.AlertTypeID, settings.CooldownMinutes, now)
	if err != nil {
		return 0, err
	}
	if cooling {
		until := now.Add(time.Duration(settings.CooldownMinutes) * time.Minute)
		if err := d.store.Defer(ctx, a.ID, until, now); err != nil {
			return 0, err
		}
		return outcomeRescheduled, nil
	}

	res, err := d.sender.SendPushToUser(ctx, a.UserID, a.AlertTypeID, types.PushMessage{
		Title: a.Title,
		Body:  a.Body,
		Data:  a.Data,
	})
	if err != nil {
		return 0, fmt.Errorf("push adapter: %w", err)
	}

	if res.Success {
		return outcomeSent, d.recordSuccess(ctx, a, now)
	}
	return outcomeFailed, d.recordFailure(ctx, a, res, now)
}

func (d *Dispatcher) recordSuccess(ctx context.Context, a *types.ScheduledAlert, now time.Time) error {
	if err := d.history.Insert(ctx, newHistory(a, types.HistoryStatusSent, nil, now)); err != nil {
		return err
	}

	if a.IsRecurring() {
		if next := nextOccurrence(*a.Recurrence, a.RecurrenceRule, a.ScheduledAt, now); next != nil {
			following := CalculateNextRun(*a.Recurrence, a.RecurrenceRule, *next)
			return d.store.Rearm(ctx, a.ID, *next, following, 0, now)
		}
	}
	return d.store.MarkSent(ctx, a.ID, a.Attempts+1, now)
}

func (d *Dispatcher) recordFailure(ctx context.Context, a *types.ScheduledAlert, res types.PushResult, now time.Time) error {
	msg := res.Error
	if msg == "" {
		msg = defaultPushError
	}
	d.metrics.RecordPushFailure(ctx, a.Channel, a.Priority)

	if err := d.history.Insert(ctx, newHistory(a, types.HistoryStatusFailed, &msg, now)); err != nil {
		return err
	}

	attempts := a.Attempts + 1
	if attempts < a.MaxAttempts {
		return d.store.Retry(ctx, a.ID, now.Add(RetryDelay(a.Attempts)), attempts, msg, now)
	}
	return d.store.Fail(ctx, a.ID, attempts, msg, now)
}

// nextOccurrence advances from the row's scheduled time. Occurrences that
// already lie in the past are skipped so a series never replays a backlog.
func nextOccurrence(rec types.Recurrence, rule *types.RecurrenceRule, scheduledAt, now time.Time) *time.Time {
	next := CalculateNextRun(rec, rule, scheduledAt)
	for i := 0; next != nil && !next.After(now) && i < maxCatchUpSteps; i++ {
		next = CalculateNextRun(rec, rule, *next)
	}
	if next != nil && !next.After(now) {
		return nil
	}
	return next
}

func newHistory(a *types.ScheduledAlert, status types.HistoryStatus, errMsg *string, now time.Time) *types.AlertHistory {
	return &types.AlertHistory{
		UserID:           a.UserID,
		AlertTypeID:      a.AlertTypeID,
		ScheduledAlertID: a.ID,
		Priority:         a.Priority,
		Channel:          a.Channel,
		Status:           status,
		Title:            a.Title,
		Body:             a.Body,
		Data:             a.Data,
		ErrorMessage:     errMsg,
		CreatedAt:        now,
	}
}
