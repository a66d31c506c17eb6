package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTask_Basics(t *testing.T) {
	rule := RecurrenceRule{Frequency: FrequencyDaily, Interval: 2, End: AfterCount(3)}
	task := &Task{UserID: "alice", DurationMinutes: 45, Rule: &rule}

	assert.True(t, task.IsRecurring())
	assert.Equal(t, 45*time.Minute, task.Duration())
	assert.Equal(t, "FREQ=DAILY;INTERVAL=2;COUNT=3", task.RuleString())
	assert.True(t, task.OwnedBy("alice"))
	assert.False(t, task.OwnedBy("bob"))
	assert.False(t, (&Task{}).OwnedBy(""))

	once := &Task{}
	assert.False(t, once.IsRecurring())
	assert.Empty(t, once.RuleString())
}

func TestTask_CloneCopiesRule(t *testing.T) {
	rule := RecurrenceRule{Frequency: FrequencyWeekly, Interval: 1, End: Never()}
	task := &Task{ID: "a", Rule: &rule}

	c := task.Clone()
	c.Rule.Interval = 3
	c.ID = "b"

	assert.Equal(t, 1, task.Rule.Interval)
	assert.Equal(t, "a", task.ID)
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("archived")
	require.NoError(t, err)
	assert.Equal(t, StatusArchived, st)

	_, err = ParseStatus("done")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "status", FieldOf(err))
}
