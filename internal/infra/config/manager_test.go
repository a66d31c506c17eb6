package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/runoshun/taskcal/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_FileConfigInfo(t *testing.T) {
	t.Run("returns info when file exists", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "taskcal.toml", `user = "alice"`)

		info := NewManagerWithGlobalDir(path, "").FileConfigInfo()

		assert.Equal(t, path, info.Path)
		assert.Equal(t, `user = "alice"`, info.Content)
		assert.True(t, info.Exists)
	})

	t.Run("returns info when file does not exist", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing.toml")

		info := NewManagerWithGlobalDir(path, "").FileConfigInfo()

		assert.Equal(t, path, info.Path)
		assert.Empty(t, info.Content)
		assert.False(t, info.Exists)
	})

	t.Run("returns empty info without --config", func(t *testing.T) {
		info := NewManagerWithGlobalDir("", "").FileConfigInfo()

		assert.Equal(t, domain.ConfigInfo{}, info)
	})
}

func TestManager_GlobalConfigInfo(t *testing.T) {
	globalDir := t.TempDir()
	configContent := "[log]\nlevel = \"debug\""
	writeFile(t, globalDir, domain.ConfigFileName, configContent)

	info := NewManagerWithGlobalDir("", globalDir).GlobalConfigInfo()

	assert.Equal(t, filepath.Join(globalDir, domain.ConfigFileName), info.Path)
	assert.Equal(t, configContent, info.Content)
	assert.True(t, info.Exists)
}

func TestManager_InitGlobalConfig(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		globalDir := filepath.Join(t.TempDir(), "taskcal")
		manager := NewManagerWithGlobalDir("", globalDir)

		err := manager.InitGlobalConfig(domain.NewDefaultConfig())
		require.NoError(t, err)

		path := filepath.Join(globalDir, domain.ConfigFileName)
		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), "[recurrence]")
		assert.Contains(t, string(content), "# max_occurrences = 25")

		stat, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), stat.Mode().Perm())
	})

	t.Run("returns error if file exists", func(t *testing.T) {
		globalDir := t.TempDir()
		writeFile(t, globalDir, domain.ConfigFileName, "existing")

		err := NewManagerWithGlobalDir("", globalDir).InitGlobalConfig(domain.NewDefaultConfig())

		assert.ErrorIs(t, err, domain.ErrConfigExists)
	})

	t.Run("returns error without global dir", func(t *testing.T) {
		err := NewManagerWithGlobalDir("", "").InitGlobalConfig(domain.NewDefaultConfig())

		assert.Error(t, err)
	})
}
