// Package pgstore provides a PostgreSQL implementation of domain.Store.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/runoshun/taskcal/internal/domain"
	"github.com/samber/mo"
)

// Postgres error codes mapped to domain errors.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS tasks (
		id               TEXT PRIMARY KEY,
		user_id          TEXT NOT NULL,
		title            TEXT NOT NULL,
		icon_name        TEXT NOT NULL DEFAULT '',
		dtstart          TIMESTAMPTZ NOT NULL,
		duration_minutes INTEGER NOT NULL CHECK (duration_minutes > 0),
		rule             TEXT NULL,
		timezone         TEXT NOT NULL,
		status           TEXT NOT NULL DEFAULT 'active',
		created_at       TIMESTAMPTZ NOT NULL,
		updated_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS tasks_user_status_idx ON tasks (user_id, status)`,
	`CREATE TABLE IF NOT EXISTS task_instance_exceptions (
		id                       TEXT PRIMARY KEY,
		task_id                  TEXT NOT NULL REFERENCES tasks (id) ON DELETE CASCADE,
		user_id                  TEXT NOT NULL,
		original_occurrence_time TIMESTAMPTZ NOT NULL,
		override_title           TEXT NULL,
		new_start_time           TIMESTAMPTZ NULL,
		new_duration_minutes     INTEGER NULL,
		is_cancelled             BOOLEAN NOT NULL DEFAULT false,
		is_complete              BOOLEAN NOT NULL DEFAULT false,
		completion_time          TIMESTAMPTZ NULL,
		UNIQUE (task_id, original_occurrence_time)
	)`,
	`CREATE INDEX IF NOT EXISTS task_instance_exceptions_new_start_idx ON task_instance_exceptions (task_id, new_start_time)`,
}

const taskColumns = `id, user_id, title, icon_name, dtstart, duration_minutes, rule, timezone, status, created_at, updated_at`

const exceptionColumns = `id, task_id, user_id, original_occurrence_time, override_title, new_start_time, ` +
	`new_duration_minutes, is_cancelled, is_complete, completion_time`

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements domain.Store on PostgreSQL. Atomic runs at serializable
// isolation; serialization failures surface as domain.ErrConflict.
type Store struct {
	db *sql.DB
}

// Ensure Store implements the store ports.
var (
	_ domain.Store            = (*Store)(nil)
	_ domain.StoreInitializer = (*Store)(nil)
)

// Open connects to the database at dsn.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// IsInitialized reports whether the tasks table exists.
func (s *Store) IsInitialized(ctx context.Context) (bool, error) {
	var ok bool
	if err := s.db.QueryRowContext(ctx, `SELECT to_regclass('tasks') IS NOT NULL`).Scan(&ok); err != nil {
		return false, fmt.Errorf("check schema: %w", err)
	}
	return ok, nil
}

// Initialize creates the schema. It is idempotent.
func (s *Store) Initialize(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// GetTask retrieves a task by ID.
func (s *Store) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	return (&tx{q: s.db}).GetTask(ctx, id)
}

// ListTasks retrieves tasks matching the filter.
func (s *Store) ListTasks(ctx context.Context, filter domain.TaskFilter) ([]*domain.Task, error) {
	return (&tx{q: s.db}).ListTasks(ctx, filter)
}

// ListExceptions retrieves exceptions matching the filter.
func (s *Store) ListExceptions(ctx context.Context, filter domain.ExceptionFilter) ([]*domain.Exception, error) {
	return (&tx{q: s.db}).ListExceptions(ctx, filter)
}

// Atomic runs fn in a serializable transaction and commits when fn succeeds.
func (s *Store) Atomic(ctx context.Context, fn func(domain.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin: %w", mapError(err))
	}
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(&tx{q: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", mapError(err))
	}
	return nil
}

// mapError translates Postgres errors into domain errors.
func mapError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch string(pqErr.Code) {
	case codeSerializationFailure, codeDeadlockDetected, codeUniqueViolation:
		return fmt.Errorf("%w: %s", domain.ErrConflict, pqErr.Message)
	case codeForeignKeyViolation:
		return fmt.Errorf("%w: %s", domain.ErrTaskNotFound, pqErr.Message)
	}
	return err
}

// tx runs queries on the pool or inside a transaction.
type tx struct {
	q querier
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*domain.Task, error) {
	var (
		t    domain.Task
		rule sql.NullString
	)
	err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Icon, &t.DTStart, &t.DurationMinutes,
		&rule, &t.Timezone, &t.Status, &t.Created, &t.Updated)
	if err != nil {
		return nil, err
	}
	t.DTStart = t.DTStart.UTC()
	t.Created = t.Created.UTC()
	t.Updated = t.Updated.UTC()
	if rule.Valid {
		r, err := domain.ParseRule(rule.String)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", t.ID, err)
		}
		t.Rule = &r
	}
	return &t, nil
}

func scanException(row scanner) (*domain.Exception, error) {
	var (
		e           domain.Exception
		newStart    sql.NullTime
		title       sql.NullString
		duration    sql.NullInt64
		completedAt sql.NullTime
	)
	err := row.Scan(&e.ID, &e.TaskID, &e.UserID, &e.OriginalStart, &title, &newStart,
		&duration, &e.Cancelled, &e.Complete, &completedAt)
	if err != nil {
		return nil, err
	}
	e.OriginalStart = e.OriginalStart.UTC()
	if newStart.Valid {
		e.NewStart = mo.Some(newStart.Time.UTC())
	}
	if title.Valid {
		e.OverrideTitle = mo.Some(title.String)
	}
	if duration.Valid {
		e.NewDuration = mo.Some(int(duration.Int64))
	}
	if completedAt.Valid {
		e.CompletedAt = mo.Some(completedAt.Time.UTC())
	}
	return &e, nil
}

func (t *tx) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	row := t.q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err)
	}
	return task, nil
}

// taskQuery builds the SELECT for filter.
func taskQuery(filter domain.TaskFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if len(filter.IDs) > 0 {
		args = append(args, pq.Array(filter.IDs))
		where = append(where, fmt.Sprintf("id = ANY($%d)", len(args)))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	return query + ` ORDER BY dtstart, id`, args
}

func (t *tx) ListTasks(ctx context.Context, filter domain.TaskFilter) ([]*domain.Task, error) {
	query, args := taskQuery(filter)
	rows, err := t.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, mapError(rows.Err())
}

// exceptionQuery builds the SELECT for filter.
func exceptionQuery(filter domain.ExceptionFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if len(filter.TaskIDs) > 0 {
		args = append(args, pq.Array(filter.TaskIDs))
		where = append(where, fmt.Sprintf("task_id = ANY($%d)", len(args)))
	}
	if filter.Window != nil {
		args = append(args, filter.Window.Start, filter.Window.End)
		from, to := len(args)-1, len(args)
		where = append(where, fmt.Sprintf(
			"(original_occurrence_time BETWEEN $%d AND $%d OR new_start_time BETWEEN $%d AND $%d)", from, to, from, to))
	}

	query := `SELECT ` + exceptionColumns + ` FROM task_instance_exceptions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	return query + ` ORDER BY task_id, original_occurrence_time`, args
}

func (t *tx) ListExceptions(ctx context.Context, filter domain.ExceptionFilter) ([]*domain.Exception, error) {
	query, args := exceptionQuery(filter)
	rows, err := t.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []*domain.Exception
	for rows.Next() {
		e, err := scanException(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, mapError(rows.Err())
}

func (t *tx) InsertTask(ctx context.Context, task *domain.Task) error {
	_, err := t.q.ExecContext(ctx, `INSERT INTO tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		task.ID, task.UserID, task.Title, task.Icon, task.DTStart.UTC(), task.DurationMinutes,
		nullRule(task), task.Timezone, string(task.Status), task.Created.UTC(), task.Updated.UTC())
	if err != nil {
		return fmt.Errorf("insert task %s: %w", task.ID, mapError(err))
	}
	return nil
}

func (t *tx) UpdateTask(ctx context.Context, task *domain.Task, expected time.Time) error {
	res, err := t.q.ExecContext(ctx, `UPDATE tasks SET
			title = $2, icon_name = $3, dtstart = $4, duration_minutes = $5,
			rule = $6, timezone = $7, status = $8, updated_at = $9
		WHERE id = $1 AND updated_at = $10`,
		task.ID, task.Title, task.Icon, task.DTStart.UTC(), task.DurationMinutes,
		nullRule(task), task.Timezone, string(task.Status), task.Updated.UTC(), expected.UTC())
	if err != nil {
		return fmt.Errorf("update task %s: %w", task.ID, mapError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task %s: %w", task.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("update task %s: %w", task.ID, domain.ErrConflict)
	}
	return nil
}

func (t *tx) DeleteTask(ctx context.Context, id string) error {
	if _, err := t.q.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete task %s: %w", id, mapError(err))
	}
	return nil
}

// upsertExceptionSQL keeps the existing row id on conflict; only the override
// fields follow the patch.
const upsertExceptionSQL = `INSERT INTO task_instance_exceptions (` + exceptionColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (task_id, original_occurrence_time) DO UPDATE SET
		override_title = EXCLUDED.override_title,
		new_start_time = EXCLUDED.new_start_time,
		new_duration_minutes = EXCLUDED.new_duration_minutes,
		is_cancelled = EXCLUDED.is_cancelled,
		is_complete = EXCLUDED.is_complete,
		completion_time = EXCLUDED.completion_time`

// UpsertException merges the patch into the locked row, if any, and writes the
// result with a single INSERT ... ON CONFLICT statement.
func (t *tx) UpsertException(ctx context.Context, patch domain.ExceptionPatch) (*domain.Exception, error) {
	row := t.q.QueryRowContext(ctx, `SELECT `+exceptionColumns+` FROM task_instance_exceptions
		WHERE task_id = $1 AND original_occurrence_time = $2 FOR UPDATE`, patch.TaskID, patch.OriginalStart.UTC())
	cur, err := scanException(row)
	var e *domain.Exception
	switch {
	case errors.Is(err, sql.ErrNoRows):
		e = patch.NewException()
	case err != nil:
		return nil, fmt.Errorf("read exception: %w", mapError(err))
	default:
		e = cur
		patch.ApplyTo(e)
	}

	_, err = t.q.ExecContext(ctx, upsertExceptionSQL,
		e.ID, e.TaskID, e.UserID, e.OriginalStart.UTC(),
		nullString(e.OverrideTitle), nullTime(e.NewStart), nullInt(e.NewDuration),
		e.Cancelled, e.Complete, nullTime(e.CompletedAt))
	if err != nil {
		return nil, fmt.Errorf("upsert exception: %w", mapError(err))
	}
	return e, nil
}

func (t *tx) DeleteExceptions(ctx context.Context, taskID string, from *time.Time) (int, error) {
	query := `DELETE FROM task_instance_exceptions WHERE task_id = $1`
	args := []any{taskID}
	if from != nil {
		query += ` AND original_occurrence_time >= $2`
		args = append(args, from.UTC())
	}
	res, err := t.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete exceptions: %w", mapError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete exceptions: %w", err)
	}
	return int(n), nil
}

// nullRule stores a one-off task's missing rule as NULL.
func nullRule(task *domain.Task) sql.NullString {
	if task.Rule == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: task.RuleString(), Valid: true}
}

func nullTime(o mo.Option[time.Time]) sql.NullTime {
	v, ok := o.Get()
	return sql.NullTime{Time: v.UTC(), Valid: ok}
}

func nullString(o mo.Option[string]) sql.NullString {
	v, ok := o.Get()
	return sql.NullString{String: v, Valid: ok}
}

func nullInt(o mo.Option[int]) sql.NullInt64 {
	v, ok := o.Get()
	return sql.NullInt64{Int64: int64(v), Valid: ok}
}
