package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Connectivity modes.
const (
	ConnectivityModeProbe = "probe"
	ConnectivityModeFile  = "file"
)

// Config represents the application configuration.
type Config struct {
	App          ApplicationConfig  `yaml:"app"`
	SQLite       SQLiteConfig       `yaml:"sqlite"`
	Remote       RemoteConfig       `yaml:"remote"`
	Connectivity ConnectivityConfig `yaml:"connectivity"`
	Sync         SyncConfig         `yaml:"sync"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.SQLite.Validate(); err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	if err := c.Remote.Validate(); err != nil {
		return fmt.Errorf("remote: %w", err)
	}
	if err := c.Connectivity.Validate(); err != nil {
		return fmt.Errorf("connectivity: %w", err)
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level    `yaml:"log_level"`
	LogFile  LogFileConfig `yaml:"log_file"`
	HTTP     HTTPConfig    `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := c.LogFile.Validate(); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// LogFileConfig enables a rotated log file. An empty Path logs to the
// standard streams only.
type LogFileConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Enabled reports whether file logging is configured.
func (c *LogFileConfig) Enabled() bool {
	return c.Path != ""
}

// Validate validates the log file configuration.
func (c *LogFileConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxSizeMB, validation.Min(0)),
		validation.Field(&c.MaxBackups, validation.Min(0)),
		validation.Field(&c.MaxAgeDays, validation.Min(0)),
	)
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// RemoteConfig describes the remote note store.
type RemoteConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Validate validates the remote configuration.
func (c *RemoteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, validation.By(httpURL)),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Millisecond)),
	)
}

func httpURL(value interface{}) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("must be an absolute http(s) URL")
	}
	return nil
}

// ConnectivityConfig selects the connectivity signal.
//
// Mode is one of:
//   - "probe" (default): periodically request the remote; reachable means online.
//   - "file": watch StateFile; content "offline" forces offline mode.
type ConnectivityConfig struct {
	Mode          string        `yaml:"mode"`
	ProbeInterval time.Duration `yaml:"probe_interval"`
	ProbeTimeout  time.Duration `yaml:"probe_timeout"`
	StateFile     string        `yaml:"state_file"`
}

// Validate validates the connectivity configuration.
func (c *ConnectivityConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = ConnectivityModeProbe
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(ConnectivityModeProbe, ConnectivityModeFile)),
		validation.Field(&c.ProbeInterval, validation.When(c.Mode == ConnectivityModeProbe, validation.Required, validation.Min(10*time.Millisecond))),
		validation.Field(&c.ProbeTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.StateFile, validation.When(c.Mode == ConnectivityModeFile, validation.Required)),
	)
}

// SyncConfig tunes the sync engine.
type SyncConfig struct {
	// DurableQueue keeps the retry queue in SQLite so it survives restarts.
	DurableQueue bool `yaml:"durable_queue"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			LogFile: LogFileConfig{
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
			},
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./offnote.db",
		},
		Remote: RemoteConfig{
			BaseURL: "http://localhost:9090",
			Timeout: 10 * time.Second,
		},
		Connectivity: ConnectivityConfig{
			Mode:          ConnectivityModeProbe,
			ProbeInterval: 5 * time.Second,
			ProbeTimeout:  2 * time.Second,
			StateFile:     "./offnote.connectivity",
		},
		Sync: SyncConfig{
			DurableQueue: true,
		},
	}
}
