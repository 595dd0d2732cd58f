// Package gamification turns user activity into XP, levels and achievements.
package gamification

import "sort"

// Event types accepted by the XP endpoint.
const (
	EventJournalEntry       = "journal_entry"
	EventMeditationComplete = "meditation_complete"
	EventBreathworkComplete = "breathwork_complete"
	EventSoundscapeSession  = "soundscape_session"
	EventMoodCheckin        = "mood_checkin"
	EventDailyReading       = "daily_reading"
	EventCoachingSession    = "coaching_session"
	EventGoalCompleted      = "goal_completed"
	EventFullDayComplete    = "full_day_complete"
)

// rewardTable maps an event type to the XP it earns. It is never mutated
// after package initialisation; use XPFor to read it.
var rewardTable = map[string]int{
	EventJournalEntry:       10,
	EventMeditationComplete: 15,
	EventBreathworkComplete: 10,
	EventSoundscapeSession:  5,
	EventMoodCheckin:        5,
	EventDailyReading:       3,
	EventCoachingSession:    10,
	EventGoalCompleted:      25,
	EventFullDayComplete:    30,
}

// moduleByEvent names the app module an event belongs to. Events that are
// not module activity (goals, full-day bonuses) are absent.
var moduleByEvent = map[string]string{
	EventJournalEntry:       "journal",
	EventMeditationComplete: "meditation",
	EventBreathworkComplete: "breathwork",
	EventSoundscapeSession:  "soundscape",
	EventMoodCheckin:        "mood",
	EventDailyReading:       "reading",
	EventCoachingSession:    "coaching",
}

// XPFor returns the reward for eventType and whether the type is known.
func XPFor(eventType string) (int, bool) {
	xp, ok := rewardTable[eventType]
	return xp, ok
}

// eventTypes lists the accepted event types in sorted order.
func eventTypes() []string {
	out := make([]string, 0, len(rewardTable))
	for k := range rewardTable {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// levelThresholds[i] is the total XP needed to reach level i+1.
var levelThresholds = [...]int{0, 100, 250, 500, 1000, 2000, 3500, 5500, 8000, 11000, 15000}

// LevelFor maps a running XP total to a level. Level 1 starts at 0 XP and
// the result never decreases as total grows.
func LevelFor(total int) int {
	level := 0
	for _, t := range levelThresholds {
		if total >= t {
			level++
		}
	}
	if level == 0 {
		return 1
	}
	return level
}

// maxLevel is the highest reachable level.
func maxLevel() int { return len(levelThresholds) }
