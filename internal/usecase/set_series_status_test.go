package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/runoshun/taskcal/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetSeriesStatus(t *testing.T) {
	f := newFixture()
	f.addWeekly("task-a")
	f.clock.Advance(time.Minute)
	uc := NewSetSeriesStatus(f.store, f.clock, f.logger)

	out, err := uc.Execute(context.Background(), SetSeriesStatusInput{
		ActorID: "alice",
		TaskID:  "task-a",
		Status:  domain.StatusArchived,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusArchived, out.Task.Status)
	assert.Equal(t, f.clock.Now(), f.store.Tasks["task-a"].Updated)
	assert.Empty(t, f.agenda(t))

	_, err = uc.Execute(context.Background(), SetSeriesStatusInput{
		ActorID: "alice",
		TaskID:  "task-a",
		Status:  domain.StatusActive,
	})
	require.NoError(t, err)
	assert.Len(t, f.agenda(t), 4)
}

func TestSetSeriesStatus_Unchanged(t *testing.T) {
	f := newFixture()
	task := f.addWeekly("task-a")
	f.clock.Advance(time.Minute)

	_, err := NewSetSeriesStatus(f.store, f.clock, f.logger).Execute(context.Background(), SetSeriesStatusInput{
		ActorID: "alice",
		TaskID:  "task-a",
		Status:  domain.StatusActive,
	})
	require.NoError(t, err)
	assert.Equal(t, task.Updated, f.store.Tasks["task-a"].Updated)
}

func TestSetSeriesStatus_Errors(t *testing.T) {
	tests := []struct {
		wantErr error
		name    string
		input   SetSeriesStatusInput
	}{
		{name: "invalid status", input: SetSeriesStatusInput{ActorID: "alice", TaskID: "task-a", Status: "deleted"}, wantErr: domain.ErrValidation},
		{name: "other owner", input: SetSeriesStatusInput{ActorID: "bob", TaskID: "task-a", Status: domain.StatusArchived}, wantErr: domain.ErrUnauthorized},
		{name: "missing task", input: SetSeriesStatusInput{ActorID: "alice", TaskID: "none", Status: domain.StatusArchived}, wantErr: domain.ErrTaskNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.addWeekly("task-a")

			_, err := NewSetSeriesStatus(f.store, f.clock, f.logger).Execute(context.Background(), tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, domain.StatusActive, f.store.Tasks["task-a"].Status)
		})
	}
}
