package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"wellness/internal/types"
)

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func TestAlertTypeRepository_GetByID(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		db := new(mockDBTX)
		db.On("QueryRow", ctx, sqlContains("FROM alert_types"), []any{"journal_reminder"}).
			Return(&mockRow{scanFn: func(dest ...any) error {
				*dest[0].(*string) = "journal_reminder"
				*dest[1].(*string) = "Journal reminder"
				*dest[5].(*types.Priority) = types.PriorityNormal
				*dest[6].(*types.Channel) = types.ChannelPush
				*dest[7].(*int) = 60
				*dest[8].(*bool) = true
				return nil
			}})

		got, err := NewAlertTypeRepository(db).GetByID(ctx, "journal_reminder")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, types.PriorityNormal, got.DefaultPriority)
		assert.Equal(t, 60, got.CooldownMinutes)
		assert.True(t, got.Enabled)
	})

	t.Run("missing returns nil", func(t *testing.T) {
		db := new(mockDBTX)
		db.On("QueryRow", ctx, mock.Anything, mock.Anything).Return(noRow())

		got, err := NewAlertTypeRepository(db).GetByID(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("db error", func(t *testing.T) {
		db := new(mockDBTX)
		db.On("QueryRow", ctx, mock.Anything, mock.Anything).Return(&mockRow{scanErr: errors.New("boom")})

		_, err := NewAlertTypeRepository(db).GetByID(ctx, "x")
		var appErr *types.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
	})
}

func TestAlertTypeRepository_ExistingIDs(t *testing.T) {
	ctx := context.Background()
	db := new(mockDBTX)
	db.On("Query", ctx, sqlContains("id = ANY($1)"), mock.Anything).
		Return(newMockRows([][]any{{"a"}, {"c"}}), nil)

	got, err := NewAlertTypeRepository(db).ExistingIDs(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"a": true, "c": true}, got)

	empty, err := NewAlertTypeRepository(new(mockDBTX)).ExistingIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPreferenceRepository_Get_NoRowIsNil(t *testing.T) {
	ctx := context.Background()
	db := new(mockDBTX)
	db.On("QueryRow", ctx, sqlContains("FROM user_alert_preferences"), mock.Anything).Return(noRow())

	got, err := NewPreferenceRepository(db).Get(ctx, "u1", "t1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPreferenceRepository_UpsertBatch_CommitsAll(t *testing.T) {
	ctx := context.Background()
	db := new(mockDBTX)
	tx := withTx(db)
	db.On("Exec", ctx, sqlContains("INSERT INTO user_alert_preferences"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil).Twice()

	enabled := false
	n, err := NewPreferenceRepository(db).UpsertBatch(ctx, "u1", []types.PreferenceUpdate{
		{AlertTypeID: "a", Enabled: &enabled},
		{AlertTypeID: "b"},
	}, testNow)

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, tx.committed)
	db.AssertExpectations(t)
}

func TestPreferenceRepository_UpsertBatch_SetThenClearQuietHours(t *testing.T) {
	ctx := context.Background()
	start, end := "22:00", "07:00"

	db := new(mockDBTX)
	withTx(db)
	db.On("Exec", ctx, sqlContains("quiet_start = CASE WHEN $11 THEN NULL"),
		[]any{"u1", "a", (*bool)(nil), (*types.Priority)(nil), (*types.Channel)(nil), &start, &end, testNow,
			false, false, false, false}).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil).Once()
	db.On("Exec", ctx, sqlContains("quiet_end   = CASE WHEN $12 THEN NULL"),
		[]any{"u1", "a", (*bool)(nil), (*types.Priority)(nil), (*types.Channel)(nil), (*string)(nil), (*string)(nil), testNow,
			false, false, true, true}).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil).Once()

	repo := NewPreferenceRepository(db)
	_, err := repo.UpsertBatch(ctx, "u1", []types.PreferenceUpdate{
		{AlertTypeID: "a", QuietStart: &start, QuietEnd: &end},
	}, testNow)
	require.NoError(t, err)

	_, err = repo.UpsertBatch(ctx, "u1", []types.PreferenceUpdate{
		{AlertTypeID: "a", ClearQuietStart: true, ClearQuietEnd: true},
	}, testNow)
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestPreferenceRepository_UpsertBatch_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	db := new(mockDBTX)
	tx := withTx(db)
	db.On("Exec", ctx, mock.Anything, mock.MatchedBy(func(args []any) bool { return args[1] == "a" })).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)
	db.On("Exec", ctx, mock.Anything, mock.MatchedBy(func(args []any) bool { return args[1] == "b" })).
		Return(pgconn.CommandTag{}, errors.New("check constraint"))

	n, err := NewPreferenceRepository(db).UpsertBatch(ctx, "u1", []types.PreferenceUpdate{
		{AlertTypeID: "a"}, {AlertTypeID: "b"},
	}, testNow)

	require.Error(t, err)
	assert.Zero(t, n)
	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)
}

func TestScheduledAlertRepository_ExpireStale(t *testing.T) {
	ctx := context.Background()
	db := new(mockDBTX)
	db.On("Exec", ctx, sqlContains("last_error = 'Expired'"), []any{testNow, testNow.Add(-24 * time.Hour)}).
		Return(pgconn.NewCommandTag("UPDATE 3"), nil)

	n, err := NewScheduledAlertRepository(db).ExpireStale(ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	db.AssertExpectations(t)
}

func TestScheduledAlertRepository_ListDue_PassesLimit(t *testing.T) {
	ctx := context.Background()
	db := new(mockDBTX)
	db.On("Query", ctx, sqlContains("ORDER BY CASE priority"), []any{testNow, 50}).
		Return(newMockRows(nil), nil)

	got, err := NewScheduledAlertRepository(db).ListDue(ctx, testNow, 50)
	require.NoError(t, err)
	assert.Empty(t, got)
	db.AssertExpectations(t)
}

func TestScheduledAlertRepository_Claim(t *testing.T) {
	ctx := context.Background()

	t.Run("already claimed", func(t *testing.T) {
		db := new(mockDBTX)
		db.On("QueryRow", ctx, sqlContains("SET status = 'queued'"),
			[]any{"a1", testNow, testNow.Add(-10 * time.Minute)}).Return(noRow())

		got, err := NewScheduledAlertRepository(db).Claim(ctx, "a1", testNow, 10*time.Minute)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("claimed", func(t *testing.T) {
		db := new(mockDBTX)
		db.On("QueryRow", ctx, mock.Anything, mock.Anything).Return(&mockRow{scanFn: func(dest ...any) error {
			*dest[0].(*string) = "a1"
			*dest[8].(*types.AlertStatus) = types.AlertStatusQueued
			return nil
		}})

		got, err := NewScheduledAlertRepository(db).Claim(ctx, "a1", testNow, 10*time.Minute)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, types.AlertStatusQueued, got.Status)
	})
}

func TestScheduledAlertRepository_TransitionMissingRow(t *testing.T) {
	ctx := context.Background()
	db := new(mockDBTX)
	db.On("Exec", ctx, mock.Anything, mock.Anything).Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := NewScheduledAlertRepository(db).Defer(ctx, "gone", testNow.Add(time.Hour), testNow)
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundScheduledAlert, appErr.Code)
}

func TestScheduledAlertRepository_RearmKeepsRow(t *testing.T) {
	ctx := context.Background()
	next := testNow.Add(24 * time.Hour)
	following := testNow.Add(48 * time.Hour)

	db := new(mockDBTX)
	db.On("Exec", ctx, sqlContains("SET status = 'pending', scheduled_at = $2, next_run_at = $3"),
		[]any{"a1", next, &following, 1, testNow}).Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	require.NoError(t, NewScheduledAlertRepository(db).Rearm(ctx, "a1", next, &following, 1, testNow))
	db.AssertExpectations(t)
}

func TestAlertHistoryRepository_ExistsSince(t *testing.T) {
	ctx := context.Background()
	since := testNow.Add(-time.Hour)
	db := new(mockDBTX)
	db.On("QueryRow", ctx, sqlContains("FROM alert_history"), []any{"u1", "t1", since}).
		Return(&mockRow{scanFn: func(dest ...any) error {
			*dest[0].(*bool) = true
			return nil
		}})

	got, err := NewAlertHistoryRepository(db).ExistsSince(ctx, "u1", "t1", since)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestJobLockRepository_Acquire(t *testing.T) {
	ctx := context.Background()
	clock := types.FixedClock{T: testNow}

	t.Run("acquired", func(t *testing.T) {
		db := new(mockDBTX)
		db.On("Exec", ctx, sqlContains("INSERT INTO job_locks"),
			[]any{"alert-dispatch", "w1", testNow, testNow.Add(2 * time.Minute)}).
			Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

		ok, err := NewJobLockRepository(db, clock).Acquire(ctx, "alert-dispatch", "w1", 2*time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("held elsewhere", func(t *testing.T) {
		db := new(mockDBTX)
		db.On("Exec", ctx, mock.Anything, mock.Anything).Return(pgconn.NewCommandTag("INSERT 0 0"), nil)

		ok, err := NewJobLockRepository(db, clock).Acquire(ctx, "alert-dispatch", "w2", 2*time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
