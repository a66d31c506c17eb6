package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/runoshun/taskcal/internal/domain"
	"github.com/runoshun/taskcal/internal/testutil"
	"github.com/stretchr/testify/require"
)

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

// Occurrences of the weekly scenario series.
var (
	first  = ts("2024-03-04T09:00:00Z")
	second = ts("2024-03-11T09:00:00Z")
	third  = ts("2024-03-18T09:00:00Z")
	fourth = ts("2024-03-25T09:00:00Z")
)

type fixture struct {
	store  *testutil.MockStore
	ids    *testutil.SequenceIDs
	clock  *testutil.MockClock
	logger *testutil.MockLogger
	limits domain.Limits
}

func newFixture() *fixture {
	return &fixture{
		store:  testutil.NewMockStore(),
		ids:    &testutil.SequenceIDs{Prefix: "id"},
		clock:  &testutil.MockClock{NowTime: ts("2024-03-01T08:00:00Z")},
		logger: &testutil.MockLogger{},
		limits: domain.DefaultLimits(),
	}
}

// addWeekly stores a weekly series of four Mondays owned by alice, starting 2024-03-04 09:00Z.
func (f *fixture) addWeekly(id string) *domain.Task {
	rule := domain.RecurrenceRule{Frequency: domain.FrequencyWeekly, Interval: 1, End: domain.AfterCount(4)}
	task := &domain.Task{
		ID:              id,
		UserID:          "alice",
		Title:           "Standup",
		Timezone:        "UTC",
		DTStart:         first,
		DurationMinutes: 30,
		Rule:            &rule,
		Status:          domain.StatusActive,
		Created:         f.clock.Now(),
		Updated:         f.clock.Now(),
	}
	f.store.AddTask(task)
	return task
}

func (f *fixture) addException(taskID string, original time.Time, mutate func(e *domain.Exception)) {
	e := &domain.Exception{ID: f.ids.NewID(), TaskID: taskID, UserID: "alice", OriginalStart: original}
	if mutate != nil {
		mutate(e)
	}
	f.store.AddException(e)
}

func (f *fixture) edit() *EditOccurrence {
	return NewEditOccurrence(f.store, f.ids, f.clock, f.logger, f.limits)
}

func (f *fixture) remove() *DeleteOccurrence {
	return NewDeleteOccurrence(f.store, f.ids, f.clock, f.logger, f.limits)
}

func (f *fixture) toggle() *ToggleCompletion {
	return NewToggleCompletion(f.store, f.ids, f.clock, f.logger, f.limits)
}

// agenda materializes alice's series over six weeks from 2024-03-01.
func (f *fixture) agenda(t *testing.T) []domain.CalculatedInstance {
	t.Helper()
	out, err := NewMaterialize(f.store, f.logger, f.limits).Execute(context.Background(), MaterializeInput{
		ActorID: "alice",
		From:    ts("2024-03-01T00:00:00Z"),
		To:      ts("2024-04-12T00:00:00Z"),
	})
	require.NoError(t, err)
	return out.Instances
}

func starts(instances []domain.CalculatedInstance) []time.Time {
	out := make([]time.Time, 0, len(instances))
	for _, ci := range instances {
		out = append(out, ci.Start)
	}
	return out
}
