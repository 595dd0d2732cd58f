package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidTimeOfDay(t *testing.T) {
	for _, ok := range []string{"00:00", "09:30", "19:59", "23:59"} {
		assert.True(t, ValidTimeOfDay(ok), ok)
	}
	for _, bad := range []string{"", "9:30", "24:00", "12:60", "12:5", "12-30", " 12:30"} {
		assert.False(t, ValidTimeOfDay(bad), bad)
	}
}

func TestPriorityRank(t *testing.T) {
	assert.Less(t, PriorityUrgent.Rank(), PriorityHigh.Rank())
	assert.Less(t, PriorityHigh.Rank(), PriorityNormal.Rank())
	assert.Less(t, PriorityNormal.Rank(), PriorityLow.Rank())
	assert.False(t, Priority("critical").IsValid())
	assert.True(t, ChannelInApp.IsValid())
	assert.False(t, Channel("sms").IsValid())
}
