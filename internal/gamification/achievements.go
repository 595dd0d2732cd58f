package gamification

import "time"

// Snapshot is the behavioural summary achievements are evaluated against.
type Snapshot struct {
	JournalCount       int
	CurrentStreak      int
	ModuleCounts       map[string]int
	FullDayStreak      int
	DistinctModules    int
	WeekendActiveDays  int
	CompletedGoals     int
	SoundscapeSessions int
}

// Achievement is one entry of the fixed rule set.
type Achievement struct {
	ID       string
	Title    string
	XPReward int
	met      func(Snapshot) bool
}

var achievements = []Achievement{
	{ID: "first_journal", Title: "First Words", XPReward: 20,
		met: func(s Snapshot) bool { return s.JournalCount >= 1 }},
	{ID: "journal_10", Title: "Reflective Mind", XPReward: 50,
		met: func(s Snapshot) bool { return s.JournalCount >= 10 }},
	{ID: "journal_50", Title: "Storyteller", XPReward: 150,
		met: func(s Snapshot) bool { return s.JournalCount >= 50 }},
	{ID: "streak_3", Title: "Warming Up", XPReward: 30,
		met: func(s Snapshot) bool { return s.CurrentStreak >= 3 }},
	{ID: "streak_7", Title: "One Week Strong", XPReward: 75,
		met: func(s Snapshot) bool { return s.CurrentStreak >= 7 }},
	{ID: "streak_30", Title: "Habit Formed", XPReward: 300,
		met: func(s Snapshot) bool { return s.CurrentStreak >= 30 }},
	{ID: "meditation_10", Title: "Still Waters", XPReward: 50,
		met: func(s Snapshot) bool { return s.ModuleCounts["meditation"] >= 10 }},
	{ID: "explorer", Title: "Explorer", XPReward: 40,
		met: func(s Snapshot) bool { return s.DistinctModules >= 5 }},
	{ID: "full_day_3", Title: "Full Circle", XPReward: 60,
		met: func(s Snapshot) bool { return s.FullDayStreak >= 3 }},
	{ID: "weekend_warrior", Title: "Weekend Warrior", XPReward: 40,
		met: func(s Snapshot) bool { return s.WeekendActiveDays >= 4 }},
	{ID: "goal_getter", Title: "Goal Getter", XPReward: 50,
		met: func(s Snapshot) bool { return s.CompletedGoals >= 5 }},
	{ID: "sound_seeker", Title: "Sound Seeker", XPReward: 40,
		met: func(s Snapshot) bool { return s.SoundscapeSessions >= 10 }},
}

// Evaluate returns the achievements satisfied by s that are not in unlocked,
// in rule-set order. It has no side effects, so re-running it after the
// unlocks are stored yields nothing new.
func Evaluate(s Snapshot, unlocked map[string]bool) []Achievement {
	var out []Achievement
	for _, a := range achievements {
		if unlocked[a.ID] {
			continue
		}
		if a.met(s) {
			out = append(out, a)
		}
	}
	return out
}

// buildSnapshot derives the snapshot from ledger aggregates. activeDays and
// fullDays are distinct local calendar days, most recent first.
func buildSnapshot(counts map[string]int, activeDays, fullDays []time.Time, weekendDays int, today time.Time) Snapshot {
	s := Snapshot{
		JournalCount:       counts[EventJournalEntry],
		CurrentStreak:      streak(activeDays, today),
		ModuleCounts:       make(map[string]int),
		FullDayStreak:      streak(fullDays, today),
		WeekendActiveDays:  weekendDays,
		CompletedGoals:     counts[EventGoalCompleted],
		SoundscapeSessions: counts[EventSoundscapeSession],
	}
	for event, n := range counts {
		module, ok := moduleByEvent[event]
		if !ok || n == 0 {
			continue
		}
		s.ModuleCounts[module] += n
	}
	s.DistinctModules = len(s.ModuleCounts)
	return s
}

// streak counts consecutive calendar days ending today, or yesterday when
// the user has not been active yet today.
func streak(days []time.Time, today time.Time) int {
	if len(days) == 0 {
		return 0
	}
	cursor := civilDate(today)
	first := civilDate(days[0])
	if first.Before(cursor) {
		cursor = cursor.AddDate(0, 0, -1)
	}
	if !first.Equal(cursor) {
		return 0
	}

	n := 0
	for _, d := range days {
		if !civilDate(d).Equal(cursor) {
			break
		}
		n++
		cursor = cursor.AddDate(0, 0, -1)
	}
	return n
}

// civilDate drops the time and zone of t, keeping its calendar date.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
