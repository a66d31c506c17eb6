package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/runoshun/taskcal/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weeklyInput() CreateSeriesInput {
	return CreateSeriesInput{
		ActorID:         "alice",
		Title:           "  Standup ",
		LocalDate:       "2024-03-04",
		LocalTime:       "09:00",
		Timezone:        "UTC",
		DurationMinutes: 30,
		Recurrence:      domain.RecurrenceSpec{Frequency: "weekly", Count: 4},
	}
}

func TestCreateSeries_Execute(t *testing.T) {
	f := newFixture()
	uc := NewCreateSeries(f.store, f.ids, f.clock, f.logger, f.limits)

	out, err := uc.Execute(context.Background(), weeklyInput())
	require.NoError(t, err)

	task := out.Task
	assert.Equal(t, "id-1", task.ID)
	assert.Equal(t, "Standup", task.Title)
	assert.Equal(t, first, task.DTStart)
	assert.Equal(t, domain.StatusActive, task.Status)
	assert.Equal(t, f.clock.Now(), task.Created)
	require.NotNil(t, task.Rule)
	assert.Equal(t, "FREQ=WEEKLY;INTERVAL=1;COUNT=4", task.Rule.String())
	assert.Contains(t, f.store.Tasks, "id-1")
	assert.Equal(t, []string{"create"}, f.logger.Categories("info"))

	// Scenario A: four Mondays, none before dtstart.
	got := f.agenda(t)
	assert.Equal(t, []time.Time{first, second, third, fourth}, starts(got))
	for _, ci := range got {
		assert.Equal(t, time.Monday, ci.Start.Weekday())
		assert.False(t, ci.Start.Before(task.DTStart))
	}
}

func TestCreateSeries_LocalTimeInZone(t *testing.T) {
	f := newFixture()
	uc := NewCreateSeries(f.store, f.ids, f.clock, f.logger, f.limits)

	in := weeklyInput()
	in.Timezone = "Europe/Berlin"
	in.Recurrence = domain.RecurrenceSpec{Frequency: "daily", Until: "2024-04-02"}
	in.LocalDate = "2024-03-29"

	out, err := uc.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, ts("2024-03-29T08:00:00Z"), out.Task.DTStart)
	assert.Equal(t, ts("2024-04-02T21:59:59.999999999Z"), out.Task.Rule.End.Until)

	res, err := NewMaterialize(f.store, f.logger, f.limits).Execute(context.Background(), MaterializeInput{
		ActorID: "alice",
		From:    ts("2024-03-28T00:00:00Z"),
		To:      ts("2024-04-10T00:00:00Z"),
	})
	require.NoError(t, err)
	require.Len(t, res.Instances, 5)
	for _, ci := range res.Instances {
		_, clock, err := domain.ToLocal(ci.Start, "Europe/Berlin")
		require.NoError(t, err)
		assert.Equal(t, "09:00", clock)
	}
}

func TestCreateSeries_Validation(t *testing.T) {
	tests := []struct {
		wantErr   error
		modify    func(in *CreateSeriesInput)
		name      string
		wantField string
	}{
		{name: "no actor", modify: func(in *CreateSeriesInput) { in.ActorID = "" }, wantErr: domain.ErrNoActor},
		{name: "blank title", modify: func(in *CreateSeriesInput) { in.Title = "  " }, wantErr: domain.ErrValidation, wantField: "title"},
		{name: "zero duration", modify: func(in *CreateSeriesInput) { in.DurationMinutes = 0 }, wantErr: domain.ErrValidation, wantField: "duration_minutes"},
		{name: "duration above ceiling", modify: func(in *CreateSeriesInput) { in.DurationMinutes = 1441 }, wantErr: domain.ErrValidation, wantField: "duration_minutes"},
		{name: "unknown zone", modify: func(in *CreateSeriesInput) { in.Timezone = "Mars/Olympus" }, wantErr: domain.ErrValidation, wantField: "timezone"},
		{name: "bad date", modify: func(in *CreateSeriesInput) { in.LocalDate = "2024-13-01" }, wantErr: domain.ErrValidation},
		{name: "unknown frequency", modify: func(in *CreateSeriesInput) { in.Recurrence.Frequency = "hourly" }, wantErr: domain.ErrValidation},
		{name: "count above cap", modify: func(in *CreateSeriesInput) { in.Recurrence.Count = 26 }, wantErr: domain.ErrCapExceeded},
		{name: "count and until", modify: func(in *CreateSeriesInput) { in.Recurrence.Until = "2024-05-01" }, wantErr: domain.ErrValidation, wantField: "end"},
		{
			name: "until before start",
			modify: func(in *CreateSeriesInput) {
				in.Recurrence.Count = 0
				in.Recurrence.Until = "2024-03-01"
			},
			wantErr: domain.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			uc := NewCreateSeries(f.store, f.ids, f.clock, f.logger, f.limits)
			in := weeklyInput()
			tt.modify(&in)

			_, err := uc.Execute(context.Background(), in)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.wantField != "" {
				assert.Equal(t, tt.wantField, domain.FieldOf(err))
			}
			assert.Empty(t, f.store.Tasks)
		})
	}
}

func TestCreateSeries_CapIsConfigurable(t *testing.T) {
	f := newFixture()
	f.limits = domain.Limits{MaxOccurrences: 3}
	uc := NewCreateSeries(f.store, f.ids, f.clock, f.logger, f.limits)

	_, err := uc.Execute(context.Background(), weeklyInput())
	var capErr *domain.CapExceededError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, 3, capErr.Max)
	assert.Equal(t, 4, capErr.Requested)
}

func TestCreateSeries_StoreError(t *testing.T) {
	f := newFixture()
	f.store.FailOnce("InsertTask", errors.New("read-only"))
	uc := NewCreateSeries(f.store, f.ids, f.clock, f.logger, f.limits)

	_, err := uc.Execute(context.Background(), weeklyInput())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save task")
	assert.Empty(t, f.store.Tasks)
}
