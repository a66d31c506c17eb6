// Package logging provides line-oriented logging for taskcal.
// Entries go to a log file when one is configured, otherwise to stderr.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/runoshun/taskcal/internal/domain"
)

// Ensure Logger implements domain.Logger interface.
var _ domain.Logger = (*Logger)(nil)

// Logger writes formatted entries to a file or writer.
// Fields are ordered to minimize memory padding.
type Logger struct {
	out   io.Writer
	file  *os.File
	now   func() time.Time
	path  string
	mu    sync.Mutex
	level slog.Level
}

// New creates a Logger appending to the file at path. The file is opened on the
// first entry. An empty path logs to stderr.
func New(path string, level slog.Level) *Logger {
	l := &Logger{path: path, level: level, now: time.Now}
	if path == "" {
		l.out = os.Stderr
	}
	return l
}

// NewWriter creates a Logger writing to w.
func NewWriter(w io.Writer, level slog.Level) *Logger {
	return &Logger{out: w, level: level, now: time.Now}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return NewWriter(io.Discard, slog.LevelError+1)
}

// ParseLevel parses a log level string into slog.Level.
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// writer opens or returns the output. Callers hold l.mu.
func (l *Logger) writer() (io.Writer, error) {
	if l.out != nil {
		return l.out, nil
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640) //nolint:gosec // Log file readable by owner and group
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	l.file = f
	l.out = f
	return f, nil
}

// Close closes the log file if one was opened.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	l.out = nil
	return err
}

// formatLog formats a log entry.
// Format: [2025-12-30 09:32:51] [INFO] [series-id] [category] message
func formatLog(t time.Time, level slog.Level, seriesID, category, msg string) string {
	if seriesID == "" {
		seriesID = "global"
	}
	return fmt.Sprintf("[%s] [%s] [%s] [%s] %s\n",
		t.Format("2006-01-02 15:04:05"),
		levelToString(level),
		seriesID,
		category,
		msg,
	)
}

func levelToString(level slog.Level) string {
	switch level {
	case slog.LevelDebug:
		return "DEBUG"
	case slog.LevelInfo:
		return "INFO"
	case slog.LevelWarn:
		return "WARN"
	case slog.LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func (l *Logger) log(level slog.Level, seriesID, category, msg string) {
	if level < l.level {
		return
	}
	entry := formatLog(l.now(), level, seriesID, category, msg)

	l.mu.Lock()
	defer l.mu.Unlock()
	w, err := l.writer()
	if err != nil {
		return
	}
	_, _ = io.WriteString(w, entry)
}

// Info logs an info message.
func (l *Logger) Info(seriesID, category, msg string) {
	l.log(slog.LevelInfo, seriesID, category, msg)
}

// Debug logs a debug message.
func (l *Logger) Debug(seriesID, category, msg string) {
	l.log(slog.LevelDebug, seriesID, category, msg)
}

// Warn logs a warning message.
func (l *Logger) Warn(seriesID, category, msg string) {
	l.log(slog.LevelWarn, seriesID, category, msg)
}

// Error logs an error message.
func (l *Logger) Error(seriesID, category, msg string) {
	l.log(slog.LevelError, seriesID, category, msg)
}
