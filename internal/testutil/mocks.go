// Package testutil provides shared test utilities and mock implementations.
package testutil

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/runoshun/taskcal/internal/domain"
)

// MockClock is a test double for domain.Clock.
type MockClock struct {
	NowTime time.Time
}

// Now returns the configured time.
func (m *MockClock) Now() time.Time {
	return m.NowTime
}

// Advance moves the clock forward by d.
func (m *MockClock) Advance(d time.Duration) {
	m.NowTime = m.NowTime.Add(d)
}

// SequenceIDs is a test double for domain.IDGenerator returning prefix-1, prefix-2, ...
type SequenceIDs struct {
	Prefix string
	mu     sync.Mutex
	n      int
}

// NewID returns the next id of the sequence.
func (s *SequenceIDs) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	prefix := s.Prefix
	if prefix == "" {
		prefix = "id"
	}
	return fmt.Sprintf("%s-%d", prefix, s.n)
}

// Ensure MockStore implements domain.Store.
var _ domain.Store = (*MockStore)(nil)

// MockStore is an in-memory, transactional test double for domain.Store.
// Atomic works on a copy of the data and commits it only when the callback
// succeeds, so injected failures can be used to check all-or-nothing writes.
// Fields are ordered to minimize memory padding.
type MockStore struct {
	Tasks       map[string]*domain.Task
	Exceptions  map[domain.ExceptionKey]*domain.Exception
	failures    map[string][]error
	GetErr      error
	AtomicCalls int
	Commits     int
	mu          sync.Mutex
}

// NewMockStore creates an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		Tasks:      make(map[string]*domain.Task),
		Exceptions: make(map[domain.ExceptionKey]*domain.Exception),
		failures:   make(map[string][]error),
	}
}

// FailOnce makes the next call of op (a SeriesWriter or SeriesReader method
// name such as "UpdateTask") inside a transaction fail with err. Calls queue up.
func (m *MockStore) FailOnce(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = append(m.failures[op], err)
}

// AddTask stores a copy of task outside of a transaction.
func (m *MockStore) AddTask(task *domain.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Tasks[task.ID] = task.Clone()
}

// AddException stores a copy of e outside of a transaction.
func (m *MockStore) AddException(e *domain.Exception) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Exceptions[e.Key()] = e.Clone()
}

// ExceptionsOf returns the stored exceptions of taskID ordered by OriginalStart.
func (m *MockStore) ExceptionsOf(taskID string) []*domain.Exception {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&mockData{tasks: m.Tasks, exceptions: m.Exceptions}).listExceptions(domain.ExceptionFilter{TaskIDs: []string{taskID}})
}

// GetTask retrieves a task by ID.
func (m *MockStore) GetTask(_ context.Context, id string) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	if t, ok := m.Tasks[id]; ok {
		return t.Clone(), nil
	}
	return nil, nil
}

// ListTasks returns tasks matching the filter.
func (m *MockStore) ListTasks(_ context.Context, filter domain.TaskFilter) ([]*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	return (&mockData{tasks: m.Tasks}).listTasks(filter), nil
}

// ListExceptions returns exceptions matching the filter.
func (m *MockStore) ListExceptions(_ context.Context, filter domain.ExceptionFilter) ([]*domain.Exception, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	return (&mockData{exceptions: m.Exceptions}).listExceptions(filter), nil
}

// Atomic runs fn against a copy of the store and commits the copy on success.
func (m *MockStore) Atomic(ctx context.Context, fn func(tx domain.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AtomicCalls++

	tx := &mockTx{
		store: m,
		data: mockData{
			tasks:      maps.Clone(m.Tasks),
			exceptions: maps.Clone(m.Exceptions),
		},
	}
	if err := fn(tx); err != nil {
		return err
	}
	m.Tasks = tx.data.tasks
	m.Exceptions = tx.data.exceptions
	m.Commits++
	return nil
}

// fail pops the next injected failure for op. Callers hold m.mu.
func (m *MockStore) fail(op string) error {
	queue := m.failures[op]
	if len(queue) == 0 {
		return nil
	}
	m.failures[op] = queue[1:]
	return queue[0]
}

type mockData struct {
	tasks      map[string]*domain.Task
	exceptions map[domain.ExceptionKey]*domain.Exception
}

func (d *mockData) listTasks(filter domain.TaskFilter) []*domain.Task {
	var out []*domain.Task
	for _, t := range d.tasks {
		if filter.Matches(t) {
			out = append(out, t.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *domain.Task) int {
		if c := a.DTStart.Compare(b.DTStart); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (d *mockData) listExceptions(filter domain.ExceptionFilter) []*domain.Exception {
	var out []*domain.Exception
	for _, e := range d.exceptions {
		if filter.Matches(e) {
			out = append(out, e.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *domain.Exception) int {
		if c := cmp.Compare(a.TaskID, b.TaskID); c != 0 {
			return c
		}
		return a.OriginalStart.Compare(b.OriginalStart)
	})
	return out
}

// mockTx is the transaction view handed to Atomic callbacks. Maps are copied
// on entry; rows are replaced, never mutated in place.
type mockTx struct {
	store *MockStore
	data  mockData
}

func (tx *mockTx) GetTask(_ context.Context, id string) (*domain.Task, error) {
	if err := tx.store.fail("GetTask"); err != nil {
		return nil, err
	}
	if t, ok := tx.data.tasks[id]; ok {
		return t.Clone(), nil
	}
	return nil, nil
}

func (tx *mockTx) ListTasks(_ context.Context, filter domain.TaskFilter) ([]*domain.Task, error) {
	if err := tx.store.fail("ListTasks"); err != nil {
		return nil, err
	}
	return tx.data.listTasks(filter), nil
}

func (tx *mockTx) ListExceptions(_ context.Context, filter domain.ExceptionFilter) ([]*domain.Exception, error) {
	if err := tx.store.fail("ListExceptions"); err != nil {
		return nil, err
	}
	return tx.data.listExceptions(filter), nil
}

func (tx *mockTx) InsertTask(_ context.Context, task *domain.Task) error {
	if err := tx.store.fail("InsertTask"); err != nil {
		return err
	}
	if _, ok := tx.data.tasks[task.ID]; ok {
		return fmt.Errorf("insert task %s: %w", task.ID, domain.ErrConflict)
	}
	tx.data.tasks[task.ID] = task.Clone()
	return nil
}

func (tx *mockTx) UpdateTask(_ context.Context, task *domain.Task, expected time.Time) error {
	if err := tx.store.fail("UpdateTask"); err != nil {
		return err
	}
	cur, ok := tx.data.tasks[task.ID]
	if !ok || !cur.Updated.Equal(expected) {
		return fmt.Errorf("update task %s: %w", task.ID, domain.ErrConflict)
	}
	tx.data.tasks[task.ID] = task.Clone()
	return nil
}

func (tx *mockTx) DeleteTask(_ context.Context, id string) error {
	if err := tx.store.fail("DeleteTask"); err != nil {
		return err
	}
	delete(tx.data.tasks, id)
	for key := range tx.data.exceptions {
		if key.TaskID == id {
			delete(tx.data.exceptions, key)
		}
	}
	return nil
}

func (tx *mockTx) UpsertException(_ context.Context, patch domain.ExceptionPatch) (*domain.Exception, error) {
	if err := tx.store.fail("UpsertException"); err != nil {
		return nil, err
	}
	if _, ok := tx.data.tasks[patch.TaskID]; !ok {
		return nil, fmt.Errorf("upsert exception: %w", domain.ErrTaskNotFound)
	}
	key := patch.Key()
	var e *domain.Exception
	if cur, ok := tx.data.exceptions[key]; ok {
		e = cur.Clone()
		patch.ApplyTo(e)
	} else {
		e = patch.NewException()
	}
	tx.data.exceptions[key] = e
	return e.Clone(), nil
}

func (tx *mockTx) DeleteExceptions(_ context.Context, taskID string, from *time.Time) (int, error) {
	if err := tx.store.fail("DeleteExceptions"); err != nil {
		return 0, err
	}
	n := 0
	for key, e := range tx.data.exceptions {
		if key.TaskID != taskID || (from != nil && e.OriginalStart.Before(*from)) {
			continue
		}
		delete(tx.data.exceptions, key)
		n++
	}
	return n, nil
}

// MockStoreInitializer is a test double for domain.StoreInitializer.
type MockStoreInitializer struct {
	InitErr     error
	Initialized bool
}

// Initialize marks the store initialized.
func (m *MockStoreInitializer) Initialize(_ context.Context) error {
	if m.InitErr != nil {
		return m.InitErr
	}
	m.Initialized = true
	return nil
}

// IsInitialized reports whether Initialize ran.
func (m *MockStoreInitializer) IsInitialized(_ context.Context) (bool, error) {
	return m.Initialized, nil
}

// MockConfigLoader is a test double for domain.ConfigLoader.
type MockConfigLoader struct {
	Config *domain.Config
	Err    error
}

// Load returns the configured Config, or defaults.
func (m *MockConfigLoader) Load() (*domain.Config, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Config == nil {
		return domain.NewDefaultConfig(), nil
	}
	return m.Config, nil
}

// LoadGlobal returns the same as Load.
func (m *MockConfigLoader) LoadGlobal() (*domain.Config, error) {
	return m.Load()
}

// Ensure MockConfigManager implements domain.ConfigManager.
var _ domain.ConfigManager = (*MockConfigManager)(nil)

// MockConfigManager is a test double for domain.ConfigManager.
type MockConfigManager struct {
	InitConfig       *domain.Config // Config passed to InitGlobalConfig
	InitErr          error
	Global           domain.ConfigInfo
	File             domain.ConfigInfo
	InitGlobalCalled bool
}

// GlobalConfigInfo returns Global.
func (m *MockConfigManager) GlobalConfigInfo() domain.ConfigInfo {
	return m.Global
}

// FileConfigInfo returns File.
func (m *MockConfigManager) FileConfigInfo() domain.ConfigInfo {
	return m.File
}

// InitGlobalConfig records the call. An existing global file yields ErrConfigExists.
func (m *MockConfigManager) InitGlobalConfig(cfg *domain.Config) error {
	m.InitGlobalCalled = true
	if m.InitErr != nil {
		return m.InitErr
	}
	if m.Global.Exists {
		return domain.ErrConfigExists
	}
	m.InitConfig = cfg
	m.Global.Exists = true
	m.Global.Content = domain.RenderConfigTemplate(cfg)
	return nil
}

// LogEntry is one record captured by MockLogger.
type LogEntry struct {
	Level    string
	SeriesID string
	Category string
	Msg      string
}

// MockLogger is a test double for domain.Logger that records entries.
type MockLogger struct {
	Entries []LogEntry
	mu      sync.Mutex
}

func (m *MockLogger) add(level, id, category, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries = append(m.Entries, LogEntry{Level: level, SeriesID: id, Category: category, Msg: msg})
}

// Debug records a debug entry.
func (m *MockLogger) Debug(id, category, msg string) { m.add("debug", id, category, msg) }

// Info records an info entry.
func (m *MockLogger) Info(id, category, msg string) { m.add("info", id, category, msg) }

// Warn records a warning entry.
func (m *MockLogger) Warn(id, category, msg string) { m.add("warn", id, category, msg) }

// Error records an error entry.
func (m *MockLogger) Error(id, category, msg string) { m.add("error", id, category, msg) }

// Categories returns the categories logged at level, in order.
func (m *MockLogger) Categories(level string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.Entries {
		if e.Level == level {
			out = append(out, e.Category)
		}
	}
	return out
}
