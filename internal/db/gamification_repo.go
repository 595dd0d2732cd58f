package db

import (
	"context"
	"strings"
	"time"

	"wellness/internal/types"
)

// EventTypeAchievementBonus tags ledger rows written for achievement rewards.
// They are excluded from behavioural counters.
const EventTypeAchievementBonus = "achievement_bonus"

// AchievementGrant is an achievement to unlock together with its reward.
type AchievementGrant struct {
	ID       string
	XPReward int
}

// GamificationRepository owns the XP ledger, balances and unlocked
// achievements.
type GamificationRepository struct {
	db Pool
}

func NewGamificationRepository(db Pool) *GamificationRepository {
	return &GamificationRepository{db: db}
}

// RecordXP appends ev to the ledger and increments the user's balance in a
// single transaction. levelFor maps the new total to a level.
func (r *GamificationRepository) RecordXP(ctx context.Context, ev *types.XPEvent, levelFor func(total int) int) (types.UserXP, error) {
	var balance types.UserXP
	err := RunInTx(ctx, r.db, func(tx DBTX) error {
		if err := insertXPEvent(ctx, tx, ev); err != nil {
			return err
		}
		var err error
		balance, err = addToBalance(ctx, tx, ev.UserID, ev.Amount, ev.CreatedAt, levelFor)
		return err
	})
	return balance, err
}

// GrantAchievements unlocks grants that the user does not already hold and
// credits the sum of their rewards as one bonus ledger row, all in one
// transaction. Grants that were already unlocked contribute nothing.
// The returned balance is nil when nothing new was granted.
func (r *GamificationRepository) GrantAchievements(ctx context.Context, userID string, grants []AchievementGrant, now time.Time, levelFor func(total int) int) ([]string, *types.UserXP, error) {
	var (
		granted []string
		balance *types.UserXP
	)
	err := RunInTx(ctx, r.db, func(tx DBTX) error {
		bonus := 0
		for _, g := range grants {
			var id string
			err := tx.QueryRow(ctx,
				`INSERT INTO user_achievements (user_id, achievement_id, unlocked_at)
				 VALUES ($1, $2, $3)
				 ON CONFLICT (user_id, achievement_id) DO NOTHING
				 RETURNING achievement_id`,
				userID, g.ID, now,
			).Scan(&id)
			if err != nil {
				if isNoRows(err) {
					continue
				}
				return types.NewAppError(types.ErrCodeInternalDB, "failed to unlock achievement", err)
			}
			granted = append(granted, id)
			bonus += g.XPReward
		}

		if bonus == 0 {
			return nil
		}

		ev := &types.XPEvent{
			UserID:    userID,
			EventType: EventTypeAchievementBonus,
			Source:    strings.Join(granted, ","),
			Amount:    bonus,
			CreatedAt: now,
		}
		if err := insertXPEvent(ctx, tx, ev); err != nil {
			return err
		}
		b, err := addToBalance(ctx, tx, userID, bonus, now, levelFor)
		if err != nil {
			return err
		}
		balance = &b
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return granted, balance, nil
}

func insertXPEvent(ctx context.Context, tx DBTX, ev *types.XPEvent) error {
	err := tx.QueryRow(ctx,
		`INSERT INTO xp_events (user_id, event_type, source, amount, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		ev.UserID, ev.EventType, ev.Source, ev.Amount, ev.CreatedAt,
	).Scan(&ev.ID)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert xp event", err)
	}
	return nil
}

func addToBalance(ctx context.Context, tx DBTX, userID string, amount int, now time.Time, levelFor func(int) int) (types.UserXP, error) {
	b := types.UserXP{UserID: userID, UpdatedAt: now}
	err := tx.QueryRow(ctx,
		`INSERT INTO user_xp (user_id, total_xp, level, updated_at)
		 VALUES ($1, $2, 1, $3)
		 ON CONFLICT (user_id) DO UPDATE
		   SET total_xp = user_xp.total_xp + EXCLUDED.total_xp,
		       updated_at = EXCLUDED.updated_at
		 RETURNING total_xp`,
		userID, amount, now,
	).Scan(&b.TotalXP)
	if err != nil {
		return b, types.NewAppError(types.ErrCodeInternalDB, "failed to update xp balance", err)
	}

	b.Level = levelFor(b.TotalXP)
	if _, err := tx.Exec(ctx, `UPDATE user_xp SET level = $2 WHERE user_id = $1`, userID, b.Level); err != nil {
		return b, types.NewAppError(types.ErrCodeInternalDB, "failed to update level", err)
	}
	return b, nil
}

// SumXPSince totals ledger amounts (bonuses included) written at or after since.
func (r *GamificationRepository) SumXPSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var total int
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0)::int FROM xp_events WHERE user_id = $1 AND created_at >= $2`,
		userID, since,
	).Scan(&total)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to sum xp", err)
	}
	return total, nil
}

// EventCounts returns the number of ledger rows per event type, excluding
// achievement bonuses.
func (r *GamificationRepository) EventCounts(ctx context.Context, userID string) (map[string]int, error) {
	rows, err := r.db.Query(ctx,
		`SELECT event_type, COUNT(*)::int
		 FROM xp_events
		 WHERE user_id = $1 AND event_type <> $2
		 GROUP BY event_type`,
		userID, EventTypeAchievementBonus,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to count xp events", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			eventType string
			n         int
		)
		if err := rows.Scan(&eventType, &n); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan xp event count", err)
		}
		counts[eventType] = n
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate xp event counts", err)
	}
	return counts, nil
}

// ActiveDays returns the distinct local calendar days (most recent first) on
// which the user logged activity. An empty eventType matches every
// non-bonus event. At most limit days are returned.
func (r *GamificationRepository) ActiveDays(ctx context.Context, userID, eventType, timezone string, limit int) ([]time.Time, error) {
	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT (created_at AT TIME ZONE $3)::date AS day
		 FROM xp_events
		 WHERE user_id = $1
		   AND event_type <> $4
		   AND ($2 = '' OR event_type = $2)
		 ORDER BY day DESC
		 LIMIT $5`,
		userID, eventType, timezone, EventTypeAchievementBonus, limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list active days", err)
	}
	defer rows.Close()

	var days []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan active day", err)
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate active days", err)
	}
	return days, nil
}

// WeekendActiveDays counts distinct Saturdays and Sundays with activity.
func (r *GamificationRepository) WeekendActiveDays(ctx context.Context, userID, timezone string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(DISTINCT (created_at AT TIME ZONE $2)::date)::int
		 FROM xp_events
		 WHERE user_id = $1
		   AND event_type <> $3
		   AND EXTRACT(ISODOW FROM created_at AT TIME ZONE $2) IN (6, 7)`,
		userID, timezone, EventTypeAchievementBonus,
	).Scan(&n)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count weekend activity", err)
	}
	return n, nil
}

// UnlockedIDs returns the achievements the user already holds.
func (r *GamificationRepository) UnlockedIDs(ctx context.Context, userID string) (map[string]bool, error) {
	rows, err := r.db.Query(ctx, `SELECT achievement_id FROM user_achievements WHERE user_id = $1`, userID)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list achievements", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan achievement", err)
		}
		out[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate achievements", err)
	}
	return out, nil
}
