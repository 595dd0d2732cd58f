package types

import "regexp"

// timeOfDayPattern is the wire format for quiet-hour bounds.
var timeOfDayPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// ValidTimeOfDay reports whether s is a 24-hour HH:MM string.
func ValidTimeOfDay(s string) bool {
	return timeOfDayPattern.MatchString(s)
}

// Priority orders alert delivery. Lower rank is dispatched first.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Rank returns the dispatch order of the priority (urgent=0 ... low=3).
// Unknown priorities sort after low.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

func (p Priority) IsValid() bool {
	return p.Rank() < 4
}

// Channel is the delivery surface for an alert.
type Channel string

const (
	ChannelPush  Channel = "push"
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
)

func (c Channel) IsValid() bool {
	switch c {
	case ChannelPush, ChannelInApp, ChannelEmail:
		return true
	}
	return false
}

// AlertStatus is the lifecycle state of a ScheduledAlert.
//
//	pending -> queued (claimed) -> sent | pending (deferred, retry, recurrence) | failed | cancelled
type AlertStatus string

const (
	AlertStatusPending   AlertStatus = "pending"
	AlertStatusQueued    AlertStatus = "queued"
	AlertStatusSent      AlertStatus = "sent"
	AlertStatusFailed    AlertStatus = "failed"
	AlertStatusCancelled AlertStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are possible.
func (s AlertStatus) IsTerminal() bool {
	return s == AlertStatusSent || s == AlertStatusFailed || s == AlertStatusCancelled
}

// HistoryStatus is the outcome recorded in the append-only alert history.
type HistoryStatus string

const (
	HistoryStatusSent   HistoryStatus = "sent"
	HistoryStatusFailed HistoryStatus = "failed"
)

// Recurrence names the repeat cadence of a recurring ScheduledAlert.
type Recurrence string

const (
	RecurrenceHourly  Recurrence = "hourly"
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
)

func (r Recurrence) IsValid() bool {
	switch r {
	case RecurrenceHourly, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return true
	}
	return false
}

// PushPlatform identifies the device OS that registered a push token.
type PushPlatform string

const (
	PlatformIOS     PushPlatform = "ios"
	PlatformAndroid PushPlatform = "android"
	PlatformWeb     PushPlatform = "web"
)
