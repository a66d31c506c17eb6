package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/runoshun/taskcal/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskQuery(t *testing.T) {
	tests := []struct {
		name     string
		filter   domain.TaskFilter
		want     string
		wantArgs int
	}{
		{
			name:   "no filter",
			filter: domain.TaskFilter{},
			want:   "SELECT " + taskColumns + " FROM tasks ORDER BY dtstart, id",
		},
		{
			name:     "owner and status",
			filter:   domain.TaskFilter{UserID: "alice", Status: domain.StatusActive},
			want:     "SELECT " + taskColumns + " FROM tasks WHERE user_id = $1 AND status = $2 ORDER BY dtstart, id",
			wantArgs: 2,
		},
		{
			name:     "ids",
			filter:   domain.TaskFilter{IDs: []string{"a", "b"}, UserID: "alice"},
			want:     "SELECT " + taskColumns + " FROM tasks WHERE id = ANY($1) AND user_id = $2 ORDER BY dtstart, id",
			wantArgs: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, args := taskQuery(tt.filter)
			assert.Equal(t, tt.want, got)
			assert.Len(t, args, tt.wantArgs)
		})
	}
}

func TestExceptionQuery(t *testing.T) {
	w := domain.Window{Start: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)}

	got, args := exceptionQuery(domain.ExceptionFilter{TaskIDs: []string{"a"}, Window: &w})

	assert.Contains(t, got, "task_id = ANY($1)")
	assert.Contains(t, got, "FROM task_instance_exceptions WHERE")
	assert.Contains(t, got, "(original_occurrence_time BETWEEN $2 AND $3 OR new_start_time BETWEEN $2 AND $3)")
	assert.True(t, strings.HasSuffix(got, "ORDER BY task_id, original_occurrence_time"), got)
	assert.Len(t, args, 3)
}

func TestSchema_TableLayout(t *testing.T) {
	ddl := strings.Join(schema, "\n")

	for _, col := range []string{
		"icon_name", "rule             TEXT NULL", "created_at", "updated_at",
		"original_occurrence_time", "new_start_time", "new_duration_minutes",
		"is_cancelled", "is_complete", "completion_time",
		"REFERENCES tasks (id) ON DELETE CASCADE",
		"UNIQUE (task_id, original_occurrence_time)",
	} {
		assert.Contains(t, ddl, col)
	}
	assert.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS task_instance_exceptions (\n\t\tid ")

	// Every selected column must exist in the DDL.
	for _, cols := range []string{taskColumns, exceptionColumns} {
		for _, col := range strings.Split(cols, ", ") {
			assert.Contains(t, ddl, "\t"+col+" ", "column %s", col)
		}
	}
	assert.Contains(t, upsertExceptionSQL, "ON CONFLICT (task_id, original_occurrence_time)")
	assert.NotContains(t, upsertExceptionSQL, "id = EXCLUDED.id")
}

func TestNullRule(t *testing.T) {
	rule := domain.RecurrenceRule{Frequency: domain.FrequencyDaily, Interval: 2, End: domain.Never()}

	assert.Equal(t, sql.NullString{}, nullRule(&domain.Task{}))
	assert.Equal(t, sql.NullString{String: rule.String(), Valid: true}, nullRule(&domain.Task{Rule: &rule}))
}

func TestMapError(t *testing.T) {
	tests := []struct {
		err  error
		want error
		name string
	}{
		{name: "serialization failure", err: &pq.Error{Code: codeSerializationFailure}, want: domain.ErrConflict},
		{name: "deadlock", err: &pq.Error{Code: codeDeadlockDetected}, want: domain.ErrConflict},
		{name: "duplicate key", err: &pq.Error{Code: codeUniqueViolation}, want: domain.ErrConflict},
		{name: "missing task", err: &pq.Error{Code: codeForeignKeyViolation}, want: domain.ErrTaskNotFound},
		{name: "wrapped", err: fmt.Errorf("exec: %w", &pq.Error{Code: codeSerializationFailure}), want: domain.ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, mapError(tt.err), tt.want)
		})
	}

	other := errors.New("other")
	assert.Same(t, other, mapError(other))
	assert.NoError(t, mapError(nil))
}

// openTestStore connects to TASKCAL_TEST_DSN and resets the schema.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TASKCAL_TEST_DSN")
	if dsn == "" {
		t.Skip("TASKCAL_TEST_DSN not set")
	}
	ctx := context.Background()
	store, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = store.db.ExecContext(ctx, `DROP TABLE IF EXISTS task_instance_exceptions, tasks`)
	require.NoError(t, err)
	require.NoError(t, store.Initialize(ctx))
	return store
}

func TestStore_Integration(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	monday := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	stamp := time.Date(2024, 3, 1, 8, 0, 0, 123456000, time.UTC)
	rule := domain.RecurrenceRule{Frequency: domain.FrequencyWeekly, Interval: 1, End: domain.AfterCount(4)}
	task := &domain.Task{
		ID: "a", UserID: "alice", Title: "Standup", Timezone: "UTC", DTStart: monday,
		DurationMinutes: 30, Rule: &rule, Status: domain.StatusActive, Created: stamp, Updated: stamp,
	}

	ok, err := store.IsInitialized(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, store.Initialize(ctx))

	require.NoError(t, store.Atomic(ctx, func(tx domain.Tx) error {
		if err := tx.InsertTask(ctx, task); err != nil {
			return err
		}
		p := domain.CompletionPatch("a", "alice", monday.AddDate(0, 0, 7), true, stamp)
		p.ID = "e1"
		if _, err := tx.UpsertException(ctx, p); err != nil {
			return err
		}
		_, err := tx.UpsertException(ctx, domain.ExceptionPatch{
			TaskID: "a", UserID: "alice", OriginalStart: monday.AddDate(0, 0, 7),
			Title: domain.SetTo("Retro"),
		})
		return err
	}))

	got, err := store.GetTask(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Rule.Equal(rule))
	assert.True(t, got.Updated.Equal(stamp))

	excs, err := store.ListExceptions(ctx, domain.ExceptionFilter{TaskIDs: []string{"a"}})
	require.NoError(t, err)
	require.Len(t, excs, 1)
	assert.True(t, excs[0].Complete)
	assert.Equal(t, "Retro", excs[0].OverrideTitle.OrEmpty())
	assert.Equal(t, "e1", excs[0].ID)

	t.Run("one-off task stores a null rule", func(t *testing.T) {
		once := &domain.Task{
			ID: "once", UserID: "alice", Title: "Dentist", Timezone: "UTC", DTStart: monday,
			DurationMinutes: 45, Status: domain.StatusActive, Created: stamp, Updated: stamp,
		}
		require.NoError(t, store.Atomic(ctx, func(tx domain.Tx) error { return tx.InsertTask(ctx, once) }))

		var rule sql.NullString
		require.NoError(t, store.db.QueryRowContext(ctx, `SELECT rule FROM tasks WHERE id = 'once'`).Scan(&rule))
		assert.False(t, rule.Valid)

		got, err := store.GetTask(ctx, "once")
		require.NoError(t, err)
		assert.Nil(t, got.Rule)
	})

	t.Run("compare and swap", func(t *testing.T) {
		next := task.Clone()
		next.Title = "Renamed"
		next.Updated = stamp.Add(time.Second)
		err := store.Atomic(ctx, func(tx domain.Tx) error { return tx.UpdateTask(ctx, next, stamp) })
		require.NoError(t, err)

		err = store.Atomic(ctx, func(tx domain.Tx) error { return tx.UpdateTask(ctx, next, stamp) })
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("rollback", func(t *testing.T) {
		boom := errors.New("boom")
		err := store.Atomic(ctx, func(tx domain.Tx) error {
			if _, err := tx.DeleteExceptions(ctx, "a", nil); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)
		excs, err := store.ListExceptions(ctx, domain.ExceptionFilter{})
		require.NoError(t, err)
		assert.Len(t, excs, 1)
	})

	t.Run("delete cascades", func(t *testing.T) {
		require.NoError(t, store.Atomic(ctx, func(tx domain.Tx) error { return tx.DeleteTask(ctx, "a") }))
		excs, err := store.ListExceptions(ctx, domain.ExceptionFilter{})
		require.NoError(t, err)
		assert.Empty(t, excs)
	})
}
