package gamification

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"wellness/internal/alerts"
	"wellness/internal/db"
	"wellness/internal/types"
)

// AchievementAlertType is the alert type used to announce unlocks.
const AchievementAlertType = "achievement_unlocked"

// activeDayWindow bounds how many distinct days are scanned for streaks.
const activeDayWindow = 400

// Store is the persistence the service needs. Implemented by
// db.GamificationRepository.
type Store interface {
	RecordXP(ctx context.Context, ev *types.XPEvent, levelFor func(total int) int) (types.UserXP, error)
	GrantAchievements(ctx context.Context, userID string, grants []db.AchievementGrant, now time.Time, levelFor func(total int) int) ([]string, *types.UserXP, error)
	SumXPSince(ctx context.Context, userID string, since time.Time) (int, error)
	EventCounts(ctx context.Context, userID string) (map[string]int, error)
	ActiveDays(ctx context.Context, userID, eventType, timezone string, limit int) ([]time.Time, error)
	WeekendActiveDays(ctx context.Context, userID, timezone string) (int, error)
	UnlockedIDs(ctx context.Context, userID string) (map[string]bool, error)
}

// AlertEnqueuer schedules a push alert. Implemented by alerts.Producer.
type AlertEnqueuer interface {
	Enqueue(ctx context.Context, req alerts.EnqueueRequest) (*types.ScheduledAlert, error)
}

// AwardResult is returned to the client after an XP event.
type AwardResult struct {
	TotalXP         int                         `json:"totalXP"`
	TodaysXP        int                         `json:"todaysXP"`
	Level           int                         `json:"level"`
	NewAchievements []types.UnlockedAchievement `json:"newAchievements"`
}

// Service records XP and evaluates achievements.
type Service struct {
	store    Store
	enqueuer AlertEnqueuer
	clock    types.Clock
	loc      *time.Location
	logger   types.Logger
}

// NewService builds a Service. loc defines calendar days for streaks and
// today's XP. enqueuer may be nil to skip unlock notifications.
func NewService(store Store, enqueuer AlertEnqueuer, clock types.Clock, loc *time.Location, logger types.Logger) *Service {
	if clock == nil {
		clock = types.RealClock{}
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &Service{store: store, enqueuer: enqueuer, clock: clock, loc: loc, logger: logger}
}

// AwardXP records eventType for userID and unlocks any achievements the
// new activity satisfies.
//
// The XP write and the achievement write are separate transactions. If the
// second fails the XP stays recorded and the error is returned; the next
// award re-evaluates and grants whatever is still missing.
func (s *Service) AwardXP(ctx context.Context, userID, eventType, source string) (*AwardResult, error) {
	amount, ok := XPFor(eventType)
	if !ok {
		return nil, types.NewAppError(types.ErrCodeValidationUnknownEventType,
			fmt.Sprintf("unknown event type: %s", eventType), nil)
	}

	now := s.clock.Now()
	balance, err := s.store.RecordXP(ctx, &types.XPEvent{
		UserID:    userID,
		EventType: eventType,
		Source:    source,
		Amount:    amount,
		CreatedAt: now,
	}, LevelFor)
	if err != nil {
		return nil, fmt.Errorf("recording xp: %w", err)
	}

	snap, unlocked, err := s.snapshot(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("building activity snapshot: %w", err)
	}

	newAchievements := []types.UnlockedAchievement{}
	if candidates := Evaluate(snap, unlocked); len(candidates) > 0 {
		grants := make([]db.AchievementGrant, len(candidates))
		byID := make(map[string]Achievement, len(candidates))
		for i, a := range candidates {
			grants[i] = db.AchievementGrant{ID: a.ID, XPReward: a.XPReward}
			byID[a.ID] = a
		}

		granted, bonusBalance, err := s.store.GrantAchievements(ctx, userID, grants, now, LevelFor)
		if err != nil {
			return nil, fmt.Errorf("granting achievements: %w", err)
		}
		if bonusBalance != nil {
			balance = *bonusBalance
		}
		for _, id := range granted {
			a := byID[id]
			newAchievements = append(newAchievements, types.UnlockedAchievement{ID: a.ID, Title: a.Title, XPReward: a.XPReward})
		}
	}

	todays, err := s.store.SumXPSince(ctx, userID, s.startOfDay(now))
	if err != nil {
		return nil, fmt.Errorf("summing today's xp: %w", err)
	}

	for _, a := range newAchievements {
		s.announce(ctx, userID, a, now)
	}

	return &AwardResult{
		TotalXP:         balance.TotalXP,
		TodaysXP:        todays,
		Level:           balance.Level,
		NewAchievements: newAchievements,
	}, nil
}

func (s *Service) snapshot(ctx context.Context, userID string, now time.Time) (Snapshot, map[string]bool, error) {
	var (
		counts      map[string]int
		activeDays  []time.Time
		fullDays    []time.Time
		weekendDays int
		unlocked    map[string]bool
	)
	tz := s.loc.String()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		counts, err = s.store.EventCounts(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		activeDays, err = s.store.ActiveDays(gctx, userID, "", tz, activeDayWindow)
		return err
	})
	g.Go(func() error {
		var err error
		fullDays, err = s.store.ActiveDays(gctx, userID, EventFullDayComplete, tz, activeDayWindow)
		return err
	})
	g.Go(func() error {
		var err error
		weekendDays, err = s.store.WeekendActiveDays(gctx, userID, tz)
		return err
	})
	g.Go(func() error {
		var err error
		unlocked, err = s.store.UnlockedIDs(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, nil, err
	}

	return buildSnapshot(counts, activeDays, fullDays, weekendDays, now.In(s.loc)), unlocked, nil
}

func (s *Service) startOfDay(now time.Time) time.Time {
	local := now.In(s.loc)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.loc)
}

func (s *Service) announce(ctx context.Context, userID string, a types.UnlockedAchievement, now time.Time) {
	if s.enqueuer == nil {
		return
	}
	_, err := s.enqueuer.Enqueue(ctx, alerts.EnqueueRequest{
		UserID:      userID,
		AlertTypeID: AchievementAlertType,
		Title:       "Achievement unlocked: " + a.Title,
		Body:        fmt.Sprintf("You earned %d bonus XP.", a.XPReward),
		Data:        types.AlertData{"achievement_id": a.ID},
		Priority:    types.PriorityNormal,
		Channel:     types.ChannelPush,
		ScheduledAt: now,
		MaxAttempts: alerts.DefaultMaxAttempts,
	})
	if err != nil {
		s.logger.Warn("failed to enqueue achievement alert",
			"user_id", userID,
			"achievement_id", a.ID,
			"error", err.Error(),
		)
	}
}
