package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/runoshun/taskcal/internal/domain"
)

// Ensure Manager implements domain.ConfigManager.
var _ domain.ConfigManager = (*Manager)(nil)

// Manager manages configuration files.
type Manager struct {
	filePath      string // Path given with --config (optional)
	globalConfDir string // Path to global config directory (e.g., ~/.config/taskcal)
}

// NewManager creates a new Manager.
func NewManager(filePath string) *Manager {
	return &Manager{
		filePath:      filePath,
		globalConfDir: DefaultGlobalConfigDir(),
	}
}

// NewManagerWithGlobalDir creates a new Manager with a custom global config directory.
// This is useful for testing.
func NewManagerWithGlobalDir(filePath, globalConfDir string) *Manager {
	return &Manager{
		filePath:      filePath,
		globalConfDir: globalConfDir,
	}
}

// GlobalConfigInfo returns information about the global config file.
func (m *Manager) GlobalConfigInfo() domain.ConfigInfo {
	if m.globalConfDir == "" {
		return domain.ConfigInfo{}
	}
	return m.getConfigInfo(filepath.Join(m.globalConfDir, domain.ConfigFileName))
}

// FileConfigInfo returns information about the --config file.
func (m *Manager) FileConfigInfo() domain.ConfigInfo {
	if m.filePath == "" {
		return domain.ConfigInfo{}
	}
	return m.getConfigInfo(m.filePath)
}

// getConfigInfo reads a config file and returns its info.
func (m *Manager) getConfigInfo(path string) domain.ConfigInfo {
	content, err := os.ReadFile(path)
	if err != nil {
		return domain.ConfigInfo{
			Path:   path,
			Exists: false,
		}
	}
	return domain.ConfigInfo{
		Path:    path,
		Content: string(content),
		Exists:  true,
	}
}

// InitGlobalConfig creates a global config file with default template.
func (m *Manager) InitGlobalConfig(cfg *domain.Config) error {
	if m.globalConfDir == "" {
		return errors.New("global config directory not available")
	}
	if err := os.MkdirAll(m.globalConfDir, 0o700); err != nil {
		return err
	}
	return m.initConfig(filepath.Join(m.globalConfDir, domain.ConfigFileName), cfg)
}

// initConfig creates a config file with default template.
func (m *Manager) initConfig(path string, cfg *domain.Config) error {
	if _, err := os.Stat(path); err == nil {
		return domain.ErrConfigExists
	}
	// The file may hold the JWT secret
	return os.WriteFile(path, []byte(domain.RenderConfigTemplate(cfg)), 0o600)
}
