package domain

import (
	"bytes"
	_ "embed"
	"path/filepath"
	"text/template"
)

//go:embed config_template.toml
var configTemplateContent string

// Config represents the application configuration.
// Fields are ordered to minimize memory padding.
type Config struct {
	Warnings   []string         `toml:"-"`
	User       string           `toml:"user,omitempty"` // Default actor for the CLI
	Store      StoreConfig      `toml:"store"`
	Log        LogConfig        `toml:"log"`
	HTTP       HTTPConfig       `toml:"http"`
	Recurrence RecurrenceConfig `toml:"recurrence"`
}

// StoreConfig holds settings from the [store] section.
type StoreConfig struct {
	Driver string `toml:"driver,omitempty"` // "json" (default) or "postgres"
	Path   string `toml:"path,omitempty"`   // JSON store file
	DSN    string `toml:"dsn,omitempty"`    // Postgres connection string
}

// RecurrenceConfig holds settings from the [recurrence] section.
type RecurrenceConfig struct {
	MaxOccurrences     int `toml:"max_occurrences,omitempty"`
	MaxDurationMinutes int `toml:"max_duration_minutes,omitempty"`
}

// LogConfig holds logging settings from the [log] section.
type LogConfig struct {
	Level string `toml:"level,omitempty"` // Log level: debug, info, warn, error
	File  string `toml:"file,omitempty"`  // Log file; empty = stderr
}

// HTTPConfig holds settings from the [http] section.
type HTTPConfig struct {
	Listen    string `toml:"listen,omitempty"`
	JWTSecret string `toml:"jwt_secret,omitempty"`
}

// Store drivers.
const (
	StoreDriverJSON     = "json"
	StoreDriverPostgres = "postgres"
)

// Default configuration values.
const (
	DefaultLogLevel   = "info"
	DefaultHTTPListen = "127.0.0.1:8080"
)

// Directory and file names for taskcal.
const (
	AppDirName     = "taskcal"
	ConfigFileName = "config.toml"
	StoreFileName  = "tasks.json"
)

// GlobalAppDir returns the global taskcal directory.
// configHome is typically XDG_CONFIG_HOME or ~/.config (resolved by caller).
func GlobalAppDir(configHome string) string {
	return filepath.Join(configHome, AppDirName)
}

// GlobalConfigPath returns the global config path.
func GlobalConfigPath(configHome string) string {
	return filepath.Join(GlobalAppDir(configHome), ConfigFileName)
}

// DefaultStorePath returns the JSON store path under dataHome
// (typically XDG_DATA_HOME or ~/.local/share).
func DefaultStorePath(dataHome string) string {
	return filepath.Join(dataHome, AppDirName, StoreFileName)
}

// NewDefaultConfig returns a Config with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{Driver: StoreDriverJSON},
		Recurrence: RecurrenceConfig{
			MaxOccurrences:     DefaultMaxOccurrences,
			MaxDurationMinutes: DefaultMaxDurationMinutes,
		},
		Log:  LogConfig{Level: DefaultLogLevel},
		HTTP: HTTPConfig{Listen: DefaultHTTPListen},
	}
}

// Limits returns the recurrence limits configured in [recurrence].
func (c *Config) Limits() Limits {
	return Limits{
		MaxOccurrences:     c.Recurrence.MaxOccurrences,
		MaxDurationMinutes: c.Recurrence.MaxDurationMinutes,
	}.Normalize()
}

// RenderConfigTemplate renders the commented config file written by
// 'taskcal config init', showing the values of cfg as defaults.
func RenderConfigTemplate(cfg *Config) string {
	tmpl := template.Must(template.New("config").Parse(configTemplateContent))
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, cfg); err != nil {
		return configTemplateContent
	}
	return buf.String()
}
