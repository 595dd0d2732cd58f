package alerts

import (
	"context"
	"sort"
	"sync"
	"time"

	"wellness/internal/types"
)

// memStore is an in-memory ScheduledAlertStore with the same transition
// semantics as the SQL repository.
type memStore struct {
	mu      sync.Mutex
	rows    map[string]*types.ScheduledAlert
	created []*types.ScheduledAlert

	listErr   error
	expireErr error
	// stolen IDs are reported as claimed by another pass.
	stolen map[string]bool
}

func newMemStore(rows ...types.ScheduledAlert) *memStore {
	s := &memStore{rows: make(map[string]*types.ScheduledAlert), stolen: make(map[string]bool)}
	for i := range rows {
		r := rows[i]
		s.rows[r.ID] = &r
	}
	return s
}

func (s *memStore) get(id string) types.ScheduledAlert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.rows[id]
}

func (s *memStore) Create(_ context.Context, a *types.ScheduledAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = "new-" + a.AlertTypeID
	s.created = append(s.created, a)
	return nil
}

func (s *memStore) ExpireStale(_ context.Context, now time.Time) (int, error) {
	if s.expireErr != nil {
		return 0, s.expireErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.rows {
		if r.Status.IsTerminal() || r.ExpiresAt == nil {
			continue
		}
		if !r.ExpiresAt.After(now) && !r.ScheduledAt.After(now.Add(-24*time.Hour)) {
			r.Status = types.AlertStatusFailed
			msg := "Expired"
			r.LastError = &msg
			n++
		}
	}
	return n, nil
}

func (s *memStore) ListDue(_ context.Context, now time.Time, limit int) ([]types.ScheduledAlert, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.ScheduledAlert
	for _, r := range s.rows {
		if r.Status.IsTerminal() || r.ScheduledAt.After(now) {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority.Rank() != out[j].Priority.Rank() {
			return out[i].Priority.Rank() < out[j].Priority.Rank()
		}
		return out[i].ScheduledAt.Before(out[j].ScheduledAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) Claim(_ context.Context, id string, now time.Time, ttl time.Duration) (*types.ScheduledAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.rows[id]
	if s.stolen[id] || r == nil {
		return nil, nil
	}
	stale := r.Status == types.AlertStatusQueued && (r.ClaimedAt == nil || r.ClaimedAt.Before(now.Add(-ttl)))
	if r.Status != types.AlertStatusPending && !stale {
		return nil, nil
	}
	r.Status = types.AlertStatusQueued
	r.ClaimedAt = &now
	cp := *r
	return &cp, nil
}

func (s *memStore) update(id string, fn func(r *types.ScheduledAlert)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return types.NewAppError(types.ErrCodeNotFoundScheduledAlert, "scheduled alert not found", nil)
	}
	fn(r)
	r.ClaimedAt = nil
	return nil
}

func (s *memStore) Cancel(_ context.Context, id, reason string, now time.Time) error {
	return s.update(id, func(r *types.ScheduledAlert) {
		r.Status = types.AlertStatusCancelled
		r.LastError = &reason
		r.ProcessedAt = &now
	})
}

func (s *memStore) Defer(_ context.Context, id string, until, _ time.Time) error {
	return s.update(id, func(r *types.ScheduledAlert) {
		r.Status = types.AlertStatusPending
		r.ScheduledAt = until
	})
}

func (s *memStore) MarkSent(_ context.Context, id string, attempts int, now time.Time) error {
	return s.update(id, func(r *types.ScheduledAlert) {
		r.Status = types.AlertStatusSent
		r.Attempts = attempts
		r.ProcessedAt = &now
	})
}

func (s *memStore) Rearm(_ context.Context, id string, scheduledAt time.Time, nextRunAt *time.Time, attempts int, now time.Time) error {
	return s.update(id, func(r *types.ScheduledAlert) {
		r.Status = types.AlertStatusPending
		r.ScheduledAt = scheduledAt
		r.NextRunAt = nextRunAt
		r.Attempts = attempts
		r.ProcessedAt = &now
	})
}

func (s *memStore) Retry(_ context.Context, id string, retryAt time.Time, attempts int, lastError string, _ time.Time) error {
	return s.update(id, func(r *types.ScheduledAlert) {
		r.Status = types.AlertStatusPending
		r.ScheduledAt = retryAt
		r.Attempts = attempts
		r.LastError = &lastError
	})
}

func (s *memStore) Fail(_ context.Context, id string, attempts int, lastError string, now time.Time) error {
	return s.update(id, func(r *types.ScheduledAlert) {
		r.Status = types.AlertStatusFailed
		r.Attempts = attempts
		r.LastError = &lastError
		r.ProcessedAt = &now
	})
}

func (s *memStore) ForceFail(_ context.Context, id, lastError string, now time.Time) error {
	return s.update(id, func(r *types.ScheduledAlert) {
		r.Status = types.AlertStatusFailed
		r.LastError = &lastError
		r.ProcessedAt = &now
	})
}

type memHistory struct {
	mu        sync.Mutex
	rows      []types.AlertHistory
	insertErr error
}

func (h *memHistory) Insert(_ context.Context, row *types.AlertHistory) error {
	if h.insertErr != nil {
		return h.insertErr
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rows = append(h.rows, *row)
	return nil
}

func (h *memHistory) ExistsSince(_ context.Context, userID, alertTypeID string, since time.Time) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range h.rows {
		if r.UserID == userID && r.AlertTypeID == alertTypeID && r.CreatedAt.After(since) {
			return true, nil
		}
	}
	return false, nil
}

// staticSettings returns the same settings for every pair, or nil for
// alert types listed in removed.
type staticSettings struct {
	settings *types.EffectiveSettings
	removed  map[string]bool
	err      error
}

func (s staticSettings) GetEffectiveSettings(_ context.Context, _, alertTypeID string) (*types.EffectiveSettings, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.removed[alertTypeID] || s.settings == nil {
		return nil, nil
	}
	cp := *s.settings
	return &cp, nil
}

type fakeSender struct {
	mu    sync.Mutex
	calls []string
	fn    func(userID string) (types.PushResult, error)
}

func (f *fakeSender) SendPushToUser(_ context.Context, userID, _ string, _ types.PushMessage) (types.PushResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, userID)
	f.mu.Unlock()
	if f.fn == nil {
		return types.PushResult{Success: true}, nil
	}
	return f.fn(userID)
}

type fakeLocker struct {
	held     bool
	err      error
	released int
}

func (l *fakeLocker) Acquire(context.Context, string, string, time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	return !l.held, nil
}

func (l *fakeLocker) Release(context.Context, string, string) error {
	l.released++
	return nil
}

type alertTypeMap map[string]*types.AlertType

func (m alertTypeMap) GetByID(_ context.Context, id string) (*types.AlertType, error) {
	return m[id], nil
}

type prefMap map[string]*types.UserAlertPreference

func (m prefMap) Get(_ context.Context, userID, alertTypeID string) (*types.UserAlertPreference, error) {
	return m[userID+"/"+alertTypeID], nil
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }
