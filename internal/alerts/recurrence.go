package alerts

import (
	"time"

	"wellness/internal/types"
)

// CalculateNextRun returns the first occurrence of the cadence after from,
// or nil when the series has ended or the cadence is unknown.
//
// A nil rule means every 1 unit, no weekday filter, no end date. For weekly
// cadences with DaysOfWeek the result is the next listed weekday strictly
// after from at the same wall-clock time; Interval is not applied in that
// case. Monthly steps keep the day of month, clamped to the month's length.
func CalculateNextRun(recurrence types.Recurrence, rule *types.RecurrenceRule, from time.Time) *time.Time {
	interval := 1
	var (
		days  []int
		until *time.Time
	)
	if rule != nil {
		if rule.Interval > 0 {
			interval = rule.Interval
		}
		days = rule.DaysOfWeek
		until = rule.Until
	}

	var next time.Time
	switch recurrence {
	case types.RecurrenceHourly:
		next = from.Add(time.Duration(interval) * time.Hour)
	case types.RecurrenceDaily:
		next = from.AddDate(0, 0, interval)
	case types.RecurrenceWeekly:
		if len(days) > 0 {
			var ok bool
			next, ok = nextListedWeekday(from, days)
			if !ok {
				return nil
			}
		} else {
			next = from.AddDate(0, 0, 7*interval)
		}
	case types.RecurrenceMonthly:
		next = addMonthsClamped(from, interval)
	default:
		return nil
	}

	if until != nil && next.After(*until) {
		return nil
	}
	return &next
}

func nextListedWeekday(from time.Time, days []int) (time.Time, bool) {
	listed := make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		if d >= 0 && d <= 6 {
			listed[time.Weekday(d)] = true
		}
	}
	if len(listed) == 0 {
		return time.Time{}, false
	}
	for i := 1; i <= 7; i++ {
		candidate := from.AddDate(0, 0, i)
		if listed[candidate.Weekday()] {
			return candidate, true
		}
	}
	return time.Time{}, false
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	lastDay := first.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	return first.AddDate(0, 0, d-1)
}
