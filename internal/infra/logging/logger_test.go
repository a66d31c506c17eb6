package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo}, // default
		{"", slog.LevelInfo},        // default
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseLevel(tt.input)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "taskcal.log")
	logger := New(path, slog.LevelInfo)

	logger.Info("series-1", "create", "test message")
	require.NoError(t, logger.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "[INFO]")
	assert.Contains(t, string(content), "[series-1]")
	assert.Contains(t, string(content), "[create]")
	assert.Contains(t, string(content), "test message")

	// Reopens after Close
	logger.Warn("", "store", "second")
	require.NoError(t, logger.Close())
	content, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(content), "\n"))
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, slog.LevelWarn)

	logger.Debug("s", "edit", "debug message")
	logger.Info("s", "edit", "info message")
	logger.Warn("s", "edit", "warn message")
	logger.Error("s", "edit", "error message")

	assert.NotContains(t, buf.String(), "debug message")
	assert.NotContains(t, buf.String(), "info message")
	assert.Contains(t, buf.String(), "warn message")
	assert.Contains(t, buf.String(), "error message")
}

func TestLogger_Nop(t *testing.T) {
	logger := Nop()

	// Should not panic
	logger.Error("s", "edit", "dropped")
	assert.NoError(t, logger.Close())
}

func TestLogger_LogFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, slog.LevelDebug)
	logger.now = func() time.Time { return time.Date(2025, 12, 30, 9, 32, 51, 0, time.UTC) }

	logger.Info("", "usecase", `series created: "my series"`)
	logger.Debug("abc", "conflict", "retrying")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `[2025-12-30 09:32:51] [INFO] [global] [usecase] series created: "my series"`, lines[0])
	assert.Equal(t, `[2025-12-30 09:32:51] [DEBUG] [abc] [conflict] retrying`, lines[1])
}
