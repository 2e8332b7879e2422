package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// FileEnv names the environment variable pointing at an optional config file.
const FileEnv = "NOTEBOOK_CONFIG"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `toml:"server" yaml:"server"`
	Notebook  NotebookConfig  `toml:"notebook" yaml:"notebook"`
	HTTP      HTTPConfig      `toml:"http" yaml:"http"`
	Logging   LogConfig       `toml:"logging" yaml:"logging"`
	RateLimit RateLimitConfig `toml:"rate_limit" yaml:"rate_limit"`
}

// ServerConfig holds the control API listener configuration.
type ServerConfig struct {
	Host string `envconfig:"HOST" toml:"host" yaml:"host"`
	Port string `envconfig:"PORT" toml:"port" yaml:"port"`
}

// NotebookConfig describes how notebook servers are launched and addressed.
type NotebookConfig struct {
	Command       string   `envconfig:"NOTEBOOK_COMMAND" toml:"command" yaml:"command"`
	Args          []string `envconfig:"NOTEBOOK_ARGS" toml:"args" yaml:"args"`
	RootDirFlag   string   `envconfig:"NOTEBOOK_ROOT_FLAG" toml:"root_dir_flag" yaml:"root_dir_flag"`
	TokenFlag     string   `envconfig:"NOTEBOOK_TOKEN_FLAG" toml:"token_flag" yaml:"token_flag"`
	DarkThemeFlag string   `envconfig:"NOTEBOOK_DARK_FLAG" toml:"dark_theme_flag" yaml:"dark_theme_flag"`
	Theme         string   `envconfig:"NOTEBOOK_THEME" toml:"theme" yaml:"theme"`
	Route         string   `envconfig:"NOTEBOOK_ROUTE" toml:"route" yaml:"route"`
	StartTimeout  Duration `envconfig:"NOTEBOOK_START_TIMEOUT" toml:"start_timeout" yaml:"start_timeout"`
	ShutdownGrace Duration `envconfig:"NOTEBOOK_SHUTDOWN_GRACE" toml:"shutdown_grace" yaml:"shutdown_grace"`
	OutputLines   int      `envconfig:"NOTEBOOK_OUTPUT_LINES" toml:"output_lines" yaml:"output_lines"`
	UsePTY        bool     `envconfig:"NOTEBOOK_USE_PTY" toml:"use_pty" yaml:"use_pty"`
}

// HTTPConfig holds the notebook REST client configuration.
type HTTPConfig struct {
	Timeout      Duration `envconfig:"HTTP_TIMEOUT" toml:"timeout" yaml:"timeout"`
	RetryCount   int      `envconfig:"HTTP_RETRY_COUNT" toml:"retry_count" yaml:"retry_count"`
	RetryWait    Duration `envconfig:"HTTP_RETRY_WAIT" toml:"retry_wait" yaml:"retry_wait"`
	RetryMaxWait Duration `envconfig:"HTTP_RETRY_MAX_WAIT" toml:"retry_max_wait" yaml:"retry_max_wait"`
	RateLimit    float64  `envconfig:"HTTP_RATE_LIMIT" toml:"rate_limit" yaml:"rate_limit"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" toml:"level" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" toml:"development" yaml:"development"`
}

// RateLimitConfig holds control API rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" toml:"requests_per_second" yaml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" toml:"burst" yaml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" toml:"enabled" yaml:"enabled"`
}

// Duration is a time.Duration read from "30s" style strings in env vars and
// config files.
type Duration struct {
	time.Duration
}

// D is shorthand for building a Duration.
func D(d time.Duration) Duration {
	return Duration{Duration: d}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Load builds configuration from defaults, the optional config file named by
// NOTEBOOK_CONFIG, and environment variables, in that order of precedence.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv(FileEnv))
}

// LoadFrom is Load with an explicit config file path ("" for none).
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate rejects settings that would make the manager unusable.
func (c *Config) Validate() error {
	if c.Notebook.Command == "" {
		return fmt.Errorf("notebook command must not be empty")
	}
	if c.Notebook.StartTimeout.Duration <= 0 {
		return fmt.Errorf("notebook start timeout must be positive, got %s", c.Notebook.StartTimeout)
	}
	if c.Notebook.ShutdownGrace.Duration < 0 {
		return fmt.Errorf("notebook shutdown grace must not be negative, got %s", c.Notebook.ShutdownGrace)
	}
	switch c.Notebook.Theme {
	case "same", "light", "dark":
	default:
		return fmt.Errorf("unknown notebook theme %q", c.Notebook.Theme)
	}
	if c.HTTP.RetryCount < 0 {
		return fmt.Errorf("http retry count must not be negative")
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: "8765",
		},
		Notebook: NotebookConfig{
			Command:       "jupyter",
			Args:          []string{"notebook", "--no-browser"},
			RootDirFlag:   "--ServerApp.root_dir",
			TokenFlag:     "--IdentityProvider.token",
			DarkThemeFlag: "",
			Theme:         "same",
			Route:         "notebooks",
			StartTimeout:  D(30 * time.Second),
			ShutdownGrace: D(5 * time.Second),
			OutputLines:   200,
			UsePTY:        false,
		},
		HTTP: HTTPConfig{
			Timeout:      D(10 * time.Second),
			RetryCount:   2,
			RetryWait:    D(250 * time.Millisecond),
			RetryMaxWait: D(2 * time.Second),
			RateLimit:    0,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			Enabled:           true,
		},
	}
}
