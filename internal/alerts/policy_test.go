package alerts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wellness/internal/types"
)

func TestIsInQuietWindow(t *testing.T) {
	tests := []struct {
		name       string
		now        string
		start, end string
		want       bool
	}{
		{"wrap late evening", "23:30", "22:00", "07:00", true},
		{"wrap early morning", "06:59", "22:00", "07:00", true},
		{"wrap midday", "12:00", "22:00", "07:00", false},
		{"wrap at end is outside", "07:00", "22:00", "07:00", false},
		{"wrap at start is inside", "22:00", "22:00", "07:00", true},
		{"same day inside", "10:00", "09:00", "17:00", true},
		{"same day before", "08:59", "09:00", "17:00", false},
		{"same day at end", "17:00", "09:00", "17:00", false},
		{"missing start", "10:00", "", "17:00", false},
		{"missing end", "10:00", "09:00", "", false},
		{"empty window", "10:00", "10:00", "10:00", false},
		{"malformed bound", "10:00", "9am", "17:00", false},
		{"out of range bound", "10:00", "24:00", "17:00", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsInQuietWindow(tt.now, tt.start, tt.end))
		})
	}
}

func TestNextQuietEnd(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)

	got, err := NextQuietEnd(time.Date(2026, 3, 14, 6, 15, 0, 0, loc), "07:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 14, 7, 0, 0, 0, loc), got)

	got, err = NextQuietEnd(time.Date(2026, 3, 14, 23, 0, 0, 0, loc), "07:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 15, 7, 0, 0, 0, loc), got)

	got, err = NextQuietEnd(time.Date(2026, 3, 14, 7, 0, 0, 0, loc), "07:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 15, 7, 0, 0, 0, loc), got)

	_, err = NextQuietEnd(time.Date(2026, 3, 14, 7, 0, 0, 0, loc), "7")
	assert.Error(t, err)
}

func TestCooldownChecker(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	history := &memHistory{rows: []types.AlertHistory{
		{UserID: "u1", AlertTypeID: "t1", CreatedAt: now.Add(-30 * time.Minute)},
	}}
	c := NewCooldownChecker(history, types.FixedClock{T: now})
	ctx := context.Background()

	active, err := c.CheckCooldown(ctx, "u1", "t1", 60)
	require.NoError(t, err)
	assert.True(t, active)

	active, err = c.CheckCooldown(ctx, "u1", "t1", 15)
	require.NoError(t, err)
	assert.False(t, active)

	active, err = c.CheckCooldown(ctx, "u1", "t2", 60)
	require.NoError(t, err)
	assert.False(t, active)

	active, err = c.CheckCooldown(ctx, "u1", "t1", 0)
	require.NoError(t, err)
	assert.False(t, active, "zero cooldown never blocks")
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 2*time.Minute, RetryDelay(0))
	assert.Equal(t, 4*time.Minute, RetryDelay(1))
	assert.Equal(t, 8*time.Minute, RetryDelay(2))
	assert.Equal(t, 4096*time.Minute, RetryDelay(50))
}
