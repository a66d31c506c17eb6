package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/runoshun/taskcal/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggleCompletion(t *testing.T) {
	f := newFixture()
	f.addWeekly("task-a")
	f.clock.NowTime = ts("2024-03-11T09:31:12.1234567Z")

	out, err := f.toggle().Execute(context.Background(), ToggleCompletionInput{
		ActorID:       "alice",
		TaskID:        "task-a",
		OriginalStart: second,
		Complete:      true,
	})
	require.NoError(t, err)
	assert.True(t, out.Exception.Complete)
	assert.Equal(t, ts("2024-03-11T09:31:12.123456Z"), out.Exception.CompletedAt.MustGet())

	got := f.agenda(t)
	require.Len(t, got, 4)
	assert.True(t, got[1].Complete)
	require.NotNil(t, got[1].CompletedAt)
	assert.Equal(t, second, got[1].Start)

	// Reopening keeps the row and clears the state.
	out, err = f.toggle().Execute(context.Background(), ToggleCompletionInput{
		ActorID:       "alice",
		TaskID:        "task-a",
		OriginalStart: second,
	})
	require.NoError(t, err)
	assert.False(t, out.Exception.Complete)
	assert.True(t, out.Exception.CompletedAt.IsAbsent())
	assert.Len(t, f.store.ExceptionsOf("task-a"), 1)
	assert.False(t, f.agenda(t)[1].Complete)
}

func TestToggleCompletion_KeepsReschedule(t *testing.T) {
	f := newFixture()
	f.addWeekly("task-a")
	moved := second.Add(3 * time.Hour)
	_, err := f.edit().Execute(context.Background(), EditOccurrenceInput{
		ActorID:       "alice",
		TaskID:        "task-a",
		OriginalStart: second,
		Changes:       domain.OccurrenceChanges{Start: domain.SetTo(moved)},
	})
	require.NoError(t, err)

	_, err = f.toggle().Execute(context.Background(), ToggleCompletionInput{
		ActorID:       "alice",
		TaskID:        "task-a",
		OriginalStart: second,
		Complete:      true,
	})
	require.NoError(t, err)

	got := f.agenda(t)[1]
	assert.Equal(t, moved, got.Start)
	assert.True(t, got.Complete)
}

func TestToggleCompletion_OneOff(t *testing.T) {
	f := newFixture()
	f.store.AddTask(&domain.Task{
		ID:              "once",
		UserID:          "alice",
		Title:           "Dentist",
		Timezone:        "UTC",
		DTStart:         first,
		DurationMinutes: 60,
		Status:          domain.StatusActive,
	})

	_, err := f.toggle().Execute(context.Background(), ToggleCompletionInput{
		ActorID: "alice", TaskID: "once", OriginalStart: first, Complete: true,
	})
	require.NoError(t, err)

	_, err = f.toggle().Execute(context.Background(), ToggleCompletionInput{
		ActorID: "alice", TaskID: "once", OriginalStart: second, Complete: true,
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, "original_start", domain.FieldOf(err))
}

func TestToggleCompletion_Unauthorized(t *testing.T) {
	f := newFixture()
	f.addWeekly("task-a")

	_, err := f.toggle().Execute(context.Background(), ToggleCompletionInput{
		ActorID: "mallory", TaskID: "task-a", OriginalStart: first, Complete: true,
	})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Empty(t, f.store.Exceptions)
}
