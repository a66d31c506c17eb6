// Package config provides configuration loading functionality.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"
	"github.com/runoshun/taskcal/internal/domain"
)

// Ensure Loader implements domain.ConfigLoader.
var _ domain.ConfigLoader = (*Loader)(nil)

// Loader loads configuration from TOML files.
type Loader struct {
	filePath      string // Path given with --config (optional)
	globalConfDir string // Path to global config directory (e.g., ~/.config/taskcal)
}

// NewLoader creates a new Loader. filePath may be empty.
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath:      filePath,
		globalConfDir: DefaultGlobalConfigDir(),
	}
}

// NewLoaderWithGlobalDir creates a new Loader with a custom global config directory.
// This is useful for testing.
func NewLoaderWithGlobalDir(filePath, globalConfDir string) *Loader {
	return &Loader{
		filePath:      filePath,
		globalConfDir: globalConfDir,
	}
}

// DefaultGlobalConfigDir returns the default global config directory.
func DefaultGlobalConfigDir() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return domain.GlobalAppDir(configHome)
}

// DefaultDataDir returns the directory holding the default JSON store.
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "."
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return dataHome
}

// Load returns the merged configuration: defaults <- global <- --config file.
// A missing global file is fine; a missing --config file is an error.
func (l *Loader) Load() (*domain.Config, error) {
	global, err := l.LoadGlobal()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	var file *domain.Config
	if l.filePath != "" {
		file, err = l.loadFile(l.filePath)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", l.filePath, err)
		}
	}

	base := domain.NewDefaultConfig()
	if global != nil {
		base = mergeConfigs(base, global)
	}
	if file != nil {
		base = mergeConfigs(base, file)
	}
	if base.Store.Driver == domain.StoreDriverJSON && base.Store.Path == "" {
		base.Store.Path = domain.DefaultStorePath(DefaultDataDir())
	}
	if err := validate(base); err != nil {
		return nil, err
	}
	return base, nil
}

// LoadGlobal returns only the global configuration.
func (l *Loader) LoadGlobal() (*domain.Config, error) {
	if l.globalConfDir == "" {
		return nil, os.ErrNotExist
	}
	return l.loadFile(filepath.Join(l.globalConfDir, domain.ConfigFileName))
}

// loadFile loads a configuration from a file.
func (l *Loader) loadFile(path string) (*domain.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return convertRawToDomainConfig(raw), nil
}

// validate rejects merged values the application cannot run with.
func validate(cfg *domain.Config) error {
	switch cfg.Store.Driver {
	case domain.StoreDriverJSON:
	case domain.StoreDriverPostgres:
		if cfg.Store.DSN == "" {
			return domain.NewValidationError("store.dsn", "store.dsn is required for the postgres driver")
		}
	default:
		return domain.NewValidationError("store.driver", "unknown store driver %q", cfg.Store.Driver)
	}
	if cfg.Recurrence.MaxOccurrences < 0 {
		return domain.NewValidationError("recurrence.max_occurrences", "max_occurrences must be positive")
	}
	if cfg.Recurrence.MaxDurationMinutes < 0 {
		return domain.NewValidationError("recurrence.max_duration_minutes", "max_duration_minutes must be positive")
	}
	return nil
}

// convertRawToDomainConfig converts the raw map to domain config and collects warnings.
func convertRawToDomainConfig(raw map[string]any) *domain.Config {
	res := &domain.Config{}
	var warnings []string

	for section, value := range raw {
		switch section {
		case "user":
			if s, ok := value.(string); ok {
				res.User = s
			}
		case "store":
			if m, ok := value.(map[string]any); ok {
				for k, v := range m {
					switch k {
					case "driver":
						if s, ok := v.(string); ok {
							res.Store.Driver = s
						}
					case "path":
						if s, ok := v.(string); ok {
							res.Store.Path = s
						}
					case "dsn":
						if s, ok := v.(string); ok {
							res.Store.DSN = s
						}
					default:
						warnings = append(warnings, fmt.Sprintf("unknown key in [store]: %s", k))
					}
				}
			}
		case "recurrence":
			if m, ok := value.(map[string]any); ok {
				for k, v := range m {
					switch k {
					case "max_occurrences":
						if n, ok := v.(int64); ok {
							res.Recurrence.MaxOccurrences = int(n)
						}
					case "max_duration_minutes":
						if n, ok := v.(int64); ok {
							res.Recurrence.MaxDurationMinutes = int(n)
						}
					default:
						warnings = append(warnings, fmt.Sprintf("unknown key in [recurrence]: %s", k))
					}
				}
			}
		case "log":
			if m, ok := value.(map[string]any); ok {
				for k, v := range m {
					switch k {
					case "level":
						if s, ok := v.(string); ok {
							res.Log.Level = s
						}
					case "file":
						if s, ok := v.(string); ok {
							res.Log.File = s
						}
					default:
						warnings = append(warnings, fmt.Sprintf("unknown key in [log]: %s", k))
					}
				}
			}
		case "http":
			if m, ok := value.(map[string]any); ok {
				for k, v := range m {
					switch k {
					case "listen":
						if s, ok := v.(string); ok {
							res.HTTP.Listen = s
						}
					case "jwt_secret":
						if s, ok := v.(string); ok {
							res.HTTP.JWTSecret = s
						}
					default:
						warnings = append(warnings, fmt.Sprintf("unknown key in [http]: %s", k))
					}
				}
			}
		default:
			warnings = append(warnings, fmt.Sprintf("unknown section: %s", section))
		}
	}

	sort.Strings(warnings)
	res.Warnings = warnings
	return res
}

// mergeConfigs merges two configs, with override taking precedence.
func mergeConfigs(base, override *domain.Config) *domain.Config {
	result := *base
	result.Warnings = append(append([]string{}, base.Warnings...), override.Warnings...)

	if override.User != "" {
		result.User = override.User
	}
	if override.Store.Driver != "" {
		result.Store.Driver = override.Store.Driver
	}
	if override.Store.Path != "" {
		result.Store.Path = override.Store.Path
	}
	if override.Store.DSN != "" {
		result.Store.DSN = override.Store.DSN
	}
	if override.Recurrence.MaxOccurrences != 0 {
		result.Recurrence.MaxOccurrences = override.Recurrence.MaxOccurrences
	}
	if override.Recurrence.MaxDurationMinutes != 0 {
		result.Recurrence.MaxDurationMinutes = override.Recurrence.MaxDurationMinutes
	}
	if override.Log.Level != "" {
		result.Log.Level = override.Log.Level
	}
	if override.Log.File != "" {
		result.Log.File = override.Log.File
	}
	if override.HTTP.Listen != "" {
		result.HTTP.Listen = override.HTTP.Listen
	}
	if override.HTTP.JWTSecret != "" {
		result.HTTP.JWTSecret = override.HTTP.JWTSecret
	}
	return &result
}
