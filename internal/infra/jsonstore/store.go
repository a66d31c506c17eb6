// Package jsonstore provides a JSON file-based implementation of domain.Store.
package jsonstore

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/runoshun/taskcal/internal/domain"
	"github.com/samber/mo"
)

// formatVersion is written to new files and checked on read.
const formatVersion = 1

// storeData represents the JSON file structure.
// Fields are ordered to minimize memory padding.
type storeData struct {
	Tasks      map[string]*taskRecord        `json:"tasks"`
	Exceptions map[string][]*exceptionRecord `json:"exceptions"` // keyed by task id
	Meta       meta                          `json:"meta"`
}

// meta contains store metadata.
type meta struct {
	Version int `json:"version"`
}

// taskRecord is the JSON representation of a task (without ID, which is the map key).
// Fields are ordered to minimize memory padding.
type taskRecord struct {
	DTStart         time.Time     `json:"dtstart"`
	Created         time.Time     `json:"created"`
	Updated         time.Time     `json:"updated"`
	UserID          string        `json:"userID"`
	Title           string        `json:"title"`
	Icon            string        `json:"icon,omitempty"`
	Timezone        string        `json:"timezone"`
	Rule            string        `json:"rule,omitempty"` // RecurrenceRule.String; empty = one-off
	Status          domain.Status `json:"status"`
	DurationMinutes int           `json:"durationMinutes"`
}

// exceptionRecord is the JSON representation of an exception (without TaskID).
// Fields are ordered to minimize memory padding.
type exceptionRecord struct {
	OriginalStart time.Time            `json:"originalStart"`
	NewStart      mo.Option[time.Time] `json:"newStart"`
	CompletedAt   mo.Option[time.Time] `json:"completedAt"`
	OverrideTitle mo.Option[string]    `json:"overrideTitle"`
	NewDuration   mo.Option[int]       `json:"newDuration"`
	ID            string               `json:"id"`
	UserID        string               `json:"userID"`
	Cancelled     bool                 `json:"cancelled"`
	Complete      bool                 `json:"complete"`
}

func toTaskRecord(t *domain.Task) *taskRecord {
	return &taskRecord{
		DTStart:         t.DTStart.UTC(),
		Created:         t.Created.UTC(),
		Updated:         t.Updated.UTC(),
		UserID:          t.UserID,
		Title:           t.Title,
		Icon:            t.Icon,
		Timezone:        t.Timezone,
		Rule:            t.RuleString(),
		Status:          t.Status,
		DurationMinutes: t.DurationMinutes,
	}
}

func (r *taskRecord) toTask(id string) (*domain.Task, error) {
	t := &domain.Task{
		ID:              id,
		DTStart:         r.DTStart.UTC(),
		Created:         r.Created.UTC(),
		Updated:         r.Updated.UTC(),
		UserID:          r.UserID,
		Title:           r.Title,
		Icon:            r.Icon,
		Timezone:        r.Timezone,
		Status:          r.Status,
		DurationMinutes: r.DurationMinutes,
	}
	if r.Rule != "" {
		rule, err := domain.ParseRule(r.Rule)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", id, err)
		}
		t.Rule = &rule
	}
	return t, nil
}

func toExceptionRecord(e *domain.Exception) *exceptionRecord {
	return &exceptionRecord{
		OriginalStart: e.OriginalStart.UTC(),
		NewStart:      e.NewStart,
		CompletedAt:   e.CompletedAt,
		OverrideTitle: e.OverrideTitle,
		NewDuration:   e.NewDuration,
		ID:            e.ID,
		UserID:        e.UserID,
		Cancelled:     e.Cancelled,
		Complete:      e.Complete,
	}
}

func (r *exceptionRecord) toException(taskID string) *domain.Exception {
	return &domain.Exception{
		OriginalStart: r.OriginalStart.UTC(),
		NewStart:      r.NewStart,
		CompletedAt:   r.CompletedAt,
		OverrideTitle: r.OverrideTitle,
		NewDuration:   r.NewDuration,
		ID:            r.ID,
		TaskID:        taskID,
		UserID:        r.UserID,
		Cancelled:     r.Cancelled,
		Complete:      r.Complete,
	}
}

// Store implements domain.Store using a JSON file. Every call takes an flock on
// a sibling lock file, so several processes can share one store.
type Store struct {
	path     string
	lockPath string
}

// Ensure Store implements the store ports.
var (
	_ domain.Store            = (*Store)(nil)
	_ domain.StoreInitializer = (*Store)(nil)
)

// New creates a new Store for the given file path.
// The file must be created with Initialize before use.
func New(path string) *Store {
	return &Store{
		path:     path,
		lockPath: path + ".lock",
	}
}

// Path returns the store file path.
func (s *Store) Path() string {
	return s.path
}

// GetTask retrieves a task by ID.
func (s *Store) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	var task *domain.Task
	err := s.withLock(func(data *storeData) error {
		var err error
		task, err = (&tx{data: data}).GetTask(ctx, id)
		return err
	})
	return task, err
}

// ListTasks retrieves tasks matching the filter.
func (s *Store) ListTasks(ctx context.Context, filter domain.TaskFilter) ([]*domain.Task, error) {
	var tasks []*domain.Task
	err := s.withLock(func(data *storeData) error {
		var err error
		tasks, err = (&tx{data: data}).ListTasks(ctx, filter)
		return err
	})
	return tasks, err
}

// ListExceptions retrieves exceptions matching the filter.
func (s *Store) ListExceptions(ctx context.Context, filter domain.ExceptionFilter) ([]*domain.Exception, error) {
	var exceptions []*domain.Exception
	err := s.withLock(func(data *storeData) error {
		var err error
		exceptions, err = (&tx{data: data}).ListExceptions(ctx, filter)
		return err
	})
	return exceptions, err
}

// Atomic runs fn under the exclusive lock. The file is rewritten only when fn
// succeeds.
func (s *Store) Atomic(ctx context.Context, fn func(domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.withLockWrite(func(data *storeData) error {
		return fn(&tx{data: data})
	})
}

// IsInitialized checks if the store file exists.
func (s *Store) IsInitialized(_ context.Context) (bool, error) {
	_, err := os.Stat(s.path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat store file: %w", err)
}

// Initialize creates an empty store file if it doesn't exist.
func (s *Store) Initialize(_ context.Context) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	lock, err := s.acquireLock(syscall.LOCK_EX)
	if err != nil {
		return err
	}
	defer s.releaseLock(lock)

	if _, err := os.Stat(s.path); err == nil {
		return nil
	}

	return s.write(&storeData{
		Meta:       meta{Version: formatVersion},
		Tasks:      make(map[string]*taskRecord),
		Exceptions: make(map[string][]*exceptionRecord),
	})
}

// withLock executes fn with a shared (read) lock.
func (s *Store) withLock(fn func(*storeData) error) error {
	lock, err := s.acquireLock(syscall.LOCK_SH)
	if err != nil {
		return err
	}
	defer s.releaseLock(lock)

	data, err := s.read()
	if err != nil {
		return err
	}

	return fn(data)
}

// withLockWrite executes fn with an exclusive (write) lock and writes the result.
func (s *Store) withLockWrite(fn func(*storeData) error) error {
	lock, err := s.acquireLock(syscall.LOCK_EX)
	if err != nil {
		return err
	}
	defer s.releaseLock(lock)

	data, err := s.read()
	if err != nil {
		return err
	}

	if err := fn(data); err != nil {
		return err
	}

	return s.write(data)
}

func (s *Store) acquireLock(lockType int) (*os.File, error) {
	dir := filepath.Dir(s.lockPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	lock, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(lock.Fd()), lockType); err != nil {
		_ = lock.Close()
		return nil, fmt.Errorf("acquire lock: %w", err)
	}

	return lock, nil
}

func (s *Store) releaseLock(lock *os.File) {
	_ = syscall.Flock(int(lock.Fd()), syscall.LOCK_UN)
	_ = lock.Close()
}

func (s *Store) read() (*storeData, error) {
	content, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotInitialized
		}
		return nil, fmt.Errorf("read store file: %w", err)
	}

	var data storeData
	if err := json.Unmarshal(content, &data); err != nil {
		return nil, fmt.Errorf("parse store file: %w", err)
	}
	if data.Meta.Version > formatVersion {
		return nil, fmt.Errorf("store file version %d is newer than supported version %d", data.Meta.Version, formatVersion)
	}

	if data.Tasks == nil {
		data.Tasks = make(map[string]*taskRecord)
	}
	if data.Exceptions == nil {
		data.Exceptions = make(map[string][]*exceptionRecord)
	}

	return &data, nil
}

func (s *Store) write(data *storeData) error {
	data.Meta.Version = formatVersion
	content, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store data: %w", err)
	}

	// Write to temp file first, then rename for atomicity
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}

// tx operates on the decoded file held under the store lock.
type tx struct {
	data *storeData
}

func (t *tx) GetTask(_ context.Context, id string) (*domain.Task, error) {
	r, ok := t.data.Tasks[id]
	if !ok {
		return nil, nil
	}
	return r.toTask(id)
}

func (t *tx) ListTasks(_ context.Context, filter domain.TaskFilter) ([]*domain.Task, error) {
	var tasks []*domain.Task
	for id, r := range t.data.Tasks {
		task, err := r.toTask(id)
		if err != nil {
			return nil, err
		}
		if filter.Matches(task) {
			tasks = append(tasks, task)
		}
	}
	slices.SortFunc(tasks, func(a, b *domain.Task) int {
		if c := a.DTStart.Compare(b.DTStart); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return tasks, nil
}

func (t *tx) ListExceptions(_ context.Context, filter domain.ExceptionFilter) ([]*domain.Exception, error) {
	var out []*domain.Exception
	for taskID, records := range t.data.Exceptions {
		for _, r := range records {
			if e := r.toException(taskID); filter.Matches(e) {
				out = append(out, e)
			}
		}
	}
	slices.SortFunc(out, func(a, b *domain.Exception) int {
		if c := cmp.Compare(a.TaskID, b.TaskID); c != 0 {
			return c
		}
		return a.OriginalStart.Compare(b.OriginalStart)
	})
	return out, nil
}

func (t *tx) InsertTask(_ context.Context, task *domain.Task) error {
	if _, ok := t.data.Tasks[task.ID]; ok {
		return fmt.Errorf("insert task %s: %w", task.ID, domain.ErrConflict)
	}
	t.data.Tasks[task.ID] = toTaskRecord(task)
	return nil
}

func (t *tx) UpdateTask(_ context.Context, task *domain.Task, expected time.Time) error {
	cur, ok := t.data.Tasks[task.ID]
	if !ok || !cur.Updated.Equal(expected) {
		return fmt.Errorf("update task %s: %w", task.ID, domain.ErrConflict)
	}
	t.data.Tasks[task.ID] = toTaskRecord(task)
	return nil
}

func (t *tx) DeleteTask(_ context.Context, id string) error {
	delete(t.data.Tasks, id)
	delete(t.data.Exceptions, id)
	return nil
}

func (t *tx) UpsertException(_ context.Context, patch domain.ExceptionPatch) (*domain.Exception, error) {
	if _, ok := t.data.Tasks[patch.TaskID]; !ok {
		return nil, fmt.Errorf("upsert exception: %w: %s", domain.ErrTaskNotFound, patch.TaskID)
	}

	records := t.data.Exceptions[patch.TaskID]
	original := patch.OriginalStart.UTC()
	for i, r := range records {
		if r.OriginalStart.Equal(original) {
			e := r.toException(patch.TaskID)
			patch.ApplyTo(e)
			records[i] = toExceptionRecord(e)
			return e, nil
		}
	}

	e := patch.NewException()
	t.data.Exceptions[patch.TaskID] = append(records, toExceptionRecord(e))
	return e, nil
}

func (t *tx) DeleteExceptions(_ context.Context, taskID string, from *time.Time) (int, error) {
	records := t.data.Exceptions[taskID]
	kept := records[:0]
	for _, r := range records {
		if from != nil && r.OriginalStart.Before(*from) {
			kept = append(kept, r)
		}
	}
	n := len(records) - len(kept)
	if len(kept) == 0 {
		delete(t.data.Exceptions, taskID)
	} else {
		t.data.Exceptions[taskID] = kept
	}
	return n, nil
}
