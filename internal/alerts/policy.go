package alerts

import (
	"context"
	"fmt"
	"time"

	"wellness/internal/types"
)

// timeOfDay is a wall-clock time with minute precision.
type timeOfDay struct {
	hour   int
	minute int
}

func (t timeOfDay) minutes() int {
	return t.hour*60 + t.minute
}

// parseTimeOfDay parses a "HH:MM" string.
func parseTimeOfDay(s string) (timeOfDay, error) {
	if !types.ValidTimeOfDay(s) {
		return timeOfDay{}, fmt.Errorf("expected HH:MM format, got %q", s)
	}
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return timeOfDay{}, fmt.Errorf("expected HH:MM format, got %q", s)
	}
	return timeOfDay{hour: h, minute: m}, nil
}

// IsInQuietWindow reports whether now (HH:MM) falls inside [start, end).
// Windows with start > end wrap midnight. An empty or malformed bound makes
// the window inactive, as does start == end.
func IsInQuietWindow(now, start, end string) bool {
	if start == "" || end == "" {
		return false
	}
	n, err := parseTimeOfDay(now)
	if err != nil {
		return false
	}
	s, err := parseTimeOfDay(start)
	if err != nil {
		return false
	}
	e, err := parseTimeOfDay(end)
	if err != nil {
		return false
	}

	nm, sm, em := n.minutes(), s.minutes(), e.minutes()
	if sm <= em {
		return nm >= sm && nm < em
	}
	return nm >= sm || nm < em
}

// NextQuietEnd returns the next occurrence of end (HH:MM) in localNow's
// location: today when still ahead of localNow, tomorrow otherwise.
func NextQuietEnd(localNow time.Time, end string) (time.Time, error) {
	e, err := parseTimeOfDay(end)
	if err != nil {
		return time.Time{}, err
	}
	resume := time.Date(localNow.Year(), localNow.Month(), localNow.Day(),
		e.hour, e.minute, 0, 0, localNow.Location())
	if !resume.After(localNow) {
		resume = resume.AddDate(0, 0, 1)
	}
	return resume, nil
}

// CooldownChecker answers whether an alert type fired for a user recently.
type CooldownChecker struct {
	history HistoryStore
	clock   types.Clock
}

func NewCooldownChecker(history HistoryStore, clock types.Clock) *CooldownChecker {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &CooldownChecker{history: history, clock: clock}
}

// CheckCooldown reports whether any history row for (userID, alertTypeID)
// was written in the last cooldownMinutes. A non-positive cooldown never
// blocks.
func (c *CooldownChecker) CheckCooldown(ctx context.Context, userID, alertTypeID string, cooldownMinutes int) (bool, error) {
	return c.checkAt(ctx, userID, alertTypeID, cooldownMinutes, c.clock.Now())
}

func (c *CooldownChecker) checkAt(ctx context.Context, userID, alertTypeID string, cooldownMinutes int, now time.Time) (bool, error) {
	if cooldownMinutes <= 0 {
		return false, nil
	}
	since := now.Add(-time.Duration(cooldownMinutes) * time.Minute)
	active, err := c.history.ExistsSince(ctx, userID, alertTypeID, since)
	if err != nil {
		return false, fmt.Errorf("checking cooldown: %w", err)
	}
	return active, nil
}
