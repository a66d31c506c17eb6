package domain

import (
	"context"
	"io"
	"slices"
	"time"
)

// StoreInitializer initializes the data store.
type StoreInitializer interface {
	// Initialize creates the store (file or schema) if it doesn't exist.
	Initialize(ctx context.Context) error

	// IsInitialized reports whether Initialize has run.
	IsInitialized(ctx context.Context) (bool, error)
}

// SeriesReader reads tasks and their exceptions.
type SeriesReader interface {
	// GetTask retrieves a task by ID. Returns nil if not found.
	GetTask(ctx context.Context, id string) (*Task, error)

	// ListTasks retrieves tasks matching the filter, ordered by DTStart then ID.
	ListTasks(ctx context.Context, filter TaskFilter) ([]*Task, error)

	// ListExceptions retrieves exceptions matching the filter.
	ListExceptions(ctx context.Context, filter ExceptionFilter) ([]*Exception, error)
}

// SeriesWriter mutates tasks and exceptions. It is only reachable inside a
// transaction, see Store.Atomic.
type SeriesWriter interface {
	// InsertTask stores a new task.
	InsertTask(ctx context.Context, task *Task) error

	// UpdateTask replaces a task only if its stored Updated equals expected.
	// Returns ErrConflict otherwise.
	UpdateTask(ctx context.Context, task *Task, expected time.Time) error

	// DeleteTask removes a task and every exception it owns.
	DeleteTask(ctx context.Context, id string) error

	// UpsertException inserts or merges the exception at the patch key as a
	// single operation and returns the stored row.
	UpsertException(ctx context.Context, patch ExceptionPatch) (*Exception, error)

	// DeleteExceptions removes the exceptions of taskID, all of them when from
	// is nil, otherwise those with OriginalStart >= *from. Returns the count.
	DeleteExceptions(ctx context.Context, taskID string, from *time.Time) (int, error)
}

// Tx is the view of the store inside a transaction.
type Tx interface {
	SeriesReader
	SeriesWriter
}

// Store persists series. Writes happen only through Atomic, which commits every
// write of fn or none of them.
type Store interface {
	SeriesReader

	// Atomic runs fn in a serializable transaction. If fn returns an error
	// nothing is committed and the error is returned.
	Atomic(ctx context.Context, fn func(tx Tx) error) error
}

// TaskFilter specifies criteria for listing tasks.
// Fields are ordered to minimize memory padding.
type TaskFilter struct {
	IDs    []string // Empty = any id
	UserID string   // Owner; empty = any owner
	Status Status   // Empty = any status
}

// ExceptionFilter specifies criteria for listing exceptions.
type ExceptionFilter struct {
	Window  *Window  // nil = any time; otherwise original or new start inside the window
	TaskIDs []string // Empty = every task
}

// Matches reports whether e satisfies the filter.
func (f ExceptionFilter) Matches(e *Exception) bool {
	if len(f.TaskIDs) > 0 && !slices.Contains(f.TaskIDs, e.TaskID) {
		return false
	}
	if f.Window == nil || f.Window.Contains(e.OriginalStart) {
		return true
	}
	newStart, ok := e.NewStart.Get()
	return ok && f.Window.Contains(newStart)
}

// Matches reports whether t satisfies the filter.
func (f TaskFilter) Matches(t *Task) bool {
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, t.ID) {
		return false
	}
	if f.UserID != "" && t.UserID != f.UserID {
		return false
	}
	return f.Status == "" || t.Status == f.Status
}

// IDGenerator produces opaque ids for new rows.
type IDGenerator interface {
	NewID() string
}

// Logger records operational events. seriesID may be empty for global events.
type Logger interface {
	Debug(seriesID, category, msg string)
	Info(seriesID, category, msg string)
	Warn(seriesID, category, msg string)
	Error(seriesID, category, msg string)
}

// ConfigLoader loads configuration from files.
type ConfigLoader interface {
	// Load returns the merged configuration (defaults + global + explicit file).
	Load() (*Config, error)

	// LoadGlobal returns only the global configuration.
	LoadGlobal() (*Config, error)
}

// ConfigManager manages configuration files.
type ConfigManager interface {
	// GlobalConfigInfo returns information about the global config file.
	GlobalConfigInfo() ConfigInfo

	// FileConfigInfo returns information about the config file given with --config.
	FileConfigInfo() ConfigInfo

	// InitGlobalConfig writes the commented config template for cfg.
	// Returns ErrConfigExists if the file is already there.
	InitGlobalConfig(cfg *Config) error
}

// ConfigInfo describes a config file.
type ConfigInfo struct {
	Path    string
	Content string
	Exists  bool
}

// CalendarEncoder renders a series as an iCalendar document.
type CalendarEncoder interface {
	// EncodeSeries writes task with its exceptions to w. Occurrences are
	// generated with limits.
	EncodeSeries(w io.Writer, task *Task, exceptions []*Exception, limits Limits) error
}

// Clock provides time operations for testability.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// RealClock implements Clock using the system clock.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time {
	return time.Now()
}
