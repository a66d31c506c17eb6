package domain

import (
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scenarioTask is a weekly series of four Mondays starting 2024-03-04 09:00Z.
func scenarioTask() *Task {
	rule := weekly(AfterCount(4))
	return &Task{
		ID:              "task-a",
		UserID:          "alice",
		Title:           "Standup",
		Timezone:        "UTC",
		DTStart:         ts("2024-03-04T09:00:00Z"),
		DurationMinutes: 30,
		Rule:            &rule,
		Status:          StatusActive,
	}
}

func sixWeeks(t *testing.T) Window {
	return window(t, "2024-03-01T00:00:00Z", "2024-04-12T00:00:00Z")
}

func starts(instances []CalculatedInstance) []time.Time {
	out := make([]time.Time, 0, len(instances))
	for _, ci := range instances {
		out = append(out, ci.Start)
	}
	return out
}

func TestMaterialize_NoExceptions(t *testing.T) {
	task := scenarioTask()

	got, err := Materialize([]*Task{task}, nil, sixWeeks(t), DefaultLimits())
	require.NoError(t, err)

	require.Len(t, got.Instances, 4)
	for _, ci := range got.Instances {
		assert.Equal(t, "Standup", ci.Title)
		assert.Equal(t, 30, ci.DurationMinutes)
		assert.Equal(t, ci.OriginalStart, ci.Start)
		assert.Equal(t, InstanceID(task.ID, ci.OriginalStart), ci.ID)
		assert.False(t, ci.Overridden)
	}
	assert.Empty(t, got.CappedTaskIDs)
}

func TestMaterialize_SingleOverride(t *testing.T) {
	task := scenarioTask()
	second := ts("2024-03-11T09:00:00Z")
	exc := &Exception{
		ID:            "exc-1",
		TaskID:        task.ID,
		UserID:        task.UserID,
		OriginalStart: second,
		NewStart:      mo.Some(second.Add(2 * time.Hour)),
	}

	got, err := Materialize([]*Task{task}, []*Exception{exc}, sixWeeks(t), DefaultLimits())
	require.NoError(t, err)

	require.Len(t, got.Instances, 4)
	assert.Equal(t, []time.Time{
		ts("2024-03-04T09:00:00Z"),
		ts("2024-03-11T11:00:00Z"),
		ts("2024-03-18T09:00:00Z"),
		ts("2024-03-25T09:00:00Z"),
	}, starts(got.Instances))

	shifted := got.Instances[1]
	assert.Equal(t, second, shifted.OriginalStart)
	assert.Equal(t, "exc-1", shifted.ID)
	assert.True(t, shifted.Overridden)
	assert.Equal(t, "Standup", shifted.Title)
	assert.Equal(t, 30, shifted.DurationMinutes)
}

func TestMaterialize_OverrideFields(t *testing.T) {
	task := scenarioTask()
	doneAt := ts("2024-03-04T09:20:00Z")
	exc := &Exception{
		ID:            "exc-1",
		TaskID:        task.ID,
		OriginalStart: task.DTStart,
		OverrideTitle: mo.Some("Retro"),
		NewDuration:   mo.Some(90),
		Complete:      true,
		CompletedAt:   mo.Some(doneAt),
	}

	got, err := Materialize([]*Task{task}, []*Exception{exc}, sixWeeks(t), DefaultLimits())
	require.NoError(t, err)

	first := got.Instances[0]
	assert.Equal(t, "Retro", first.Title)
	assert.Equal(t, 90, first.DurationMinutes)
	assert.Equal(t, task.DTStart.Add(90*time.Minute), first.End())
	assert.True(t, first.Complete)
	require.NotNil(t, first.CompletedAt)
	assert.Equal(t, doneAt, *first.CompletedAt)
	assert.False(t, got.Instances[1].Complete)
}

func TestMaterialize_CancelledNeverAppears(t *testing.T) {
	task := scenarioTask()
	third := ts("2024-03-18T09:00:00Z")
	exceptions := []*Exception{
		{ID: "exc-1", TaskID: task.ID, OriginalStart: third, Cancelled: true},
		// A cancelled occurrence stays hidden even when it carries a reschedule.
		{ID: "exc-2", TaskID: task.ID, OriginalStart: ts("2024-03-25T09:00:00Z"), Cancelled: true,
			NewStart: mo.Some(ts("2024-03-26T09:00:00Z"))},
	}

	got, err := Materialize([]*Task{task}, exceptions, sixWeeks(t), DefaultLimits())
	require.NoError(t, err)

	require.Len(t, got.Instances, 2)
	for _, ci := range got.Instances {
		assert.NotEqual(t, third, ci.OriginalStart)
		assert.NotEqual(t, "exc-1", ci.ID)
		assert.NotEqual(t, "exc-2", ci.ID)
	}
}

func TestMaterialize_RescheduledAcrossWindow(t *testing.T) {
	task := scenarioTask()
	second := ts("2024-03-11T09:00:00Z")

	t.Run("moved into the window", func(t *testing.T) {
		exc := &Exception{ID: "exc-1", TaskID: task.ID, OriginalStart: second, NewStart: mo.Some(ts("2024-03-21T10:00:00Z"))}
		got, err := Materialize([]*Task{task}, []*Exception{exc}, window(t, "2024-03-20T00:00:00Z", "2024-03-31T00:00:00Z"), DefaultLimits())
		require.NoError(t, err)

		assert.Equal(t, []time.Time{ts("2024-03-21T10:00:00Z"), ts("2024-03-25T09:00:00Z")}, starts(got.Instances))
		assert.Equal(t, second, got.Instances[0].OriginalStart)
	})

	t.Run("moved out of the window", func(t *testing.T) {
		exc := &Exception{ID: "exc-1", TaskID: task.ID, OriginalStart: second, NewStart: mo.Some(ts("2024-04-01T09:00:00Z"))}
		got, err := Materialize([]*Task{task}, []*Exception{exc}, window(t, "2024-03-01T00:00:00Z", "2024-03-15T00:00:00Z"), DefaultLimits())
		require.NoError(t, err)

		assert.Equal(t, []time.Time{ts("2024-03-04T09:00:00Z")}, starts(got.Instances))
	})

	t.Run("stale key is ignored", func(t *testing.T) {
		exc := &Exception{ID: "exc-1", TaskID: task.ID, OriginalStart: ts("2024-03-12T09:00:00Z"), NewStart: mo.Some(ts("2024-03-21T10:00:00Z"))}
		got, err := Materialize([]*Task{task}, []*Exception{exc}, window(t, "2024-03-20T00:00:00Z", "2024-03-31T00:00:00Z"), DefaultLimits())
		require.NoError(t, err)

		assert.Equal(t, []time.Time{ts("2024-03-25T09:00:00Z")}, starts(got.Instances))
	})

	t.Run("each series picks up only its own", func(t *testing.T) {
		other := scenarioTask()
		other.ID = "task-b"
		other.Title = "Review"
		excs := []*Exception{
			{ID: "exc-b", TaskID: other.ID, OriginalStart: second, NewStart: mo.Some(ts("2024-03-22T10:00:00Z"))},
			{ID: "exc-a", TaskID: task.ID, OriginalStart: second, NewStart: mo.Some(ts("2024-03-21T10:00:00Z"))},
		}
		got, err := Materialize([]*Task{task, other}, excs, window(t, "2024-03-20T00:00:00Z", "2024-03-24T00:00:00Z"), DefaultLimits())
		require.NoError(t, err)

		require.Len(t, got.Instances, 2)
		assert.Equal(t, "exc-a", got.Instances[0].ID)
		assert.Equal(t, task.ID, got.Instances[0].TaskID)
		assert.Equal(t, "exc-b", got.Instances[1].ID)
		assert.Equal(t, "Review", got.Instances[1].Title)
	})

	t.Run("duplicate key keeps the last record", func(t *testing.T) {
		excs := []*Exception{
			{ID: "old", TaskID: task.ID, OriginalStart: second, NewStart: mo.Some(ts("2024-03-21T10:00:00Z"))},
			{ID: "new", TaskID: task.ID, OriginalStart: second, NewStart: mo.Some(ts("2024-03-22T10:00:00Z"))},
		}
		got, err := Materialize([]*Task{task}, excs, window(t, "2024-03-20T00:00:00Z", "2024-03-24T00:00:00Z"), DefaultLimits())
		require.NoError(t, err)

		require.Len(t, got.Instances, 1)
		assert.Equal(t, "new", got.Instances[0].ID)
	})
}

func TestMaterialize_IsIdempotentAndPure(t *testing.T) {
	task := scenarioTask()
	exceptions := []*Exception{
		{ID: "exc-1", TaskID: task.ID, OriginalStart: ts("2024-03-11T09:00:00Z"), NewStart: mo.Some(ts("2024-03-11T11:00:00Z"))},
		{ID: "exc-2", TaskID: task.ID, OriginalStart: ts("2024-03-18T09:00:00Z"), Cancelled: true},
	}
	taskBefore := task.Clone()
	excBefore := []*Exception{exceptions[0].Clone(), exceptions[1].Clone()}

	first, err := Materialize([]*Task{task}, exceptions, sixWeeks(t), DefaultLimits())
	require.NoError(t, err)
	second, err := Materialize([]*Task{task}, exceptions, sixWeeks(t), DefaultLimits())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, taskBefore, task)
	assert.Equal(t, excBefore, exceptions)
}

func TestMaterialize_OrderAndFilters(t *testing.T) {
	a := scenarioTask()
	b := scenarioTask()
	b.ID = "task-0"
	archived := scenarioTask()
	archived.ID = "task-archived"
	archived.Status = StatusArchived
	oneOff := &Task{ID: "task-once", Title: "Dentist", Timezone: "UTC", DTStart: ts("2024-03-11T08:00:00Z"), DurationMinutes: 60, Status: StatusActive}

	got, err := Materialize([]*Task{a, archived, oneOff, b}, nil, window(t, "2024-03-04T00:00:00Z", "2024-03-11T23:59:59Z"), DefaultLimits())
	require.NoError(t, err)

	var order []string
	for _, ci := range got.Instances {
		order = append(order, ci.TaskID+"@"+ci.Start.Format("01-02T15"))
	}
	assert.Equal(t, []string{
		"task-0@03-04T09",
		"task-a@03-04T09",
		"task-once@03-11T08",
		"task-0@03-11T09",
		"task-a@03-11T09",
	}, order)
}

func TestMaterialize_ReportsCappedSeries(t *testing.T) {
	rule := daily(Never())
	task := &Task{ID: "task-d", Title: "Water plants", Timezone: "UTC", DTStart: ts("2024-01-01T07:00:00Z"), DurationMinutes: 5, Rule: &rule}

	got, err := Materialize([]*Task{task}, nil, window(t, "2024-01-01T00:00:00Z", "2024-12-31T00:00:00Z"), Limits{MaxOccurrences: 10})
	require.NoError(t, err)

	assert.Len(t, got.Instances, 10)
	assert.Equal(t, []string{"task-d"}, got.CappedTaskIDs)
}

func TestInstanceID_IsDeterministic(t *testing.T) {
	at := ts("2024-03-04T09:00:00Z")
	assert.Equal(t, InstanceID("a", at), InstanceID("a", at.In(time.FixedZone("X", 3600))))
	assert.NotEqual(t, InstanceID("a", at), InstanceID("b", at))
	assert.NotEqual(t, InstanceID("a", at), InstanceID("a", at.Add(time.Second)))
}
