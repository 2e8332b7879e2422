package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8765", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)

	// Notebook config
	assert.Equal(t, "jupyter", cfg.Notebook.Command)
	assert.Equal(t, []string{"notebook", "--no-browser"}, cfg.Notebook.Args)
	assert.Equal(t, 30*time.Second, cfg.Notebook.StartTimeout.Duration)
	assert.Equal(t, 5*time.Second, cfg.Notebook.ShutdownGrace.Duration)
	assert.Equal(t, "same", cfg.Notebook.Theme)
	assert.Equal(t, "notebooks", cfg.Notebook.Route)
	assert.False(t, cfg.Notebook.UsePTY)

	// HTTP config
	assert.Equal(t, 10*time.Second, cfg.HTTP.Timeout.Duration)
	assert.Equal(t, 2, cfg.HTTP.RetryCount)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Rate limit config
	assert.Equal(t, 50, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 100, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)

	assert.NoError(t, cfg.Validate())
}

func TestLoadOrDefault(t *testing.T) {
	cfg := LoadOrDefault()

	assert.NotNil(t, cfg)
	assert.Equal(t, "jupyter", cfg.Notebook.Command)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                    "9000",
		"HOST":                    "0.0.0.0",
		"NOTEBOOK_COMMAND":        "python",
		"NOTEBOOK_ARGS":           "-m,griffin_notebook.server",
		"NOTEBOOK_DARK_FLAG":      "--dark",
		"NOTEBOOK_THEME":          "dark",
		"NOTEBOOK_START_TIMEOUT":  "45s",
		"NOTEBOOK_SHUTDOWN_GRACE": "1s",
		"NOTEBOOK_USE_PTY":        "true",
		"HTTP_TIMEOUT":            "3s",
		"HTTP_RETRY_COUNT":        "0",
		"LOG_LEVEL":               "debug",
		"LOG_DEV":                 "true",
		"RATE_LIMIT_ENABLED":      "false",
	}

	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	assert.Equal(t, "python", cfg.Notebook.Command)
	assert.Equal(t, []string{"-m", "griffin_notebook.server"}, cfg.Notebook.Args)
	assert.Equal(t, "--dark", cfg.Notebook.DarkThemeFlag)
	assert.Equal(t, "dark", cfg.Notebook.Theme)
	assert.Equal(t, 45*time.Second, cfg.Notebook.StartTimeout.Duration)
	assert.Equal(t, time.Second, cfg.Notebook.ShutdownGrace.Duration)
	assert.True(t, cfg.Notebook.UsePTY)

	assert.Equal(t, 3*time.Second, cfg.HTTP.Timeout.Duration)
	assert.Equal(t, 0, cfg.HTTP.RetryCount)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoadWithPartialEnvironmentVariables(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Verify overridden values
	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)

	// Verify default values still apply
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "jupyter", cfg.Notebook.Command)
	assert.Equal(t, 30*time.Second, cfg.Notebook.StartTimeout.Duration)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad duration", "NOTEBOOK_START_TIMEOUT", "soon"},
		{"zero timeout", "NOTEBOOK_START_TIMEOUT", "0s"},
		{"unknown theme", "NOTEBOOK_THEME", "solarized"},
		{"negative retries", "HTTP_RETRY_COUNT", "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)

			cfg := LoadOrDefault()
			assert.Equal(t, Default(), cfg)
		})
	}
}

func TestLoadFromTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notebookd.toml")
	content := `
[server]
port = "8800"

[notebook]
command = "python"
args = ["-m", "griffin_notebook.server"]
dark_theme_flag = "--dark"
start_timeout = "12s"
use_pty = true

[logging]
level = "debug"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "8800", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "python", cfg.Notebook.Command)
	assert.Equal(t, []string{"-m", "griffin_notebook.server"}, cfg.Notebook.Args)
	assert.Equal(t, "--dark", cfg.Notebook.DarkThemeFlag)
	assert.Equal(t, 12*time.Second, cfg.Notebook.StartTimeout.Duration)
	assert.True(t, cfg.Notebook.UsePTY)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// untouched by the file
	assert.Equal(t, 5*time.Second, cfg.Notebook.ShutdownGrace.Duration)
}

func TestLoadFromYAMLWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notebookd.yaml")
	content := `
notebook:
  theme: light
  shutdown_grace: 2s
http:
  retry_count: 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("HTTP_RETRY_COUNT", "1")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "light", cfg.Notebook.Theme)
	assert.Equal(t, 2*time.Second, cfg.Notebook.ShutdownGrace.Duration)
	assert.Equal(t, 1, cfg.HTTP.RetryCount, "environment wins over the file")
}

func TestLoadFromFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFrom(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)

	ini := filepath.Join(dir, "notebookd.ini")
	require.NoError(t, os.WriteFile(ini, []byte("port=1"), 0o644))
	_, err = LoadFrom(ini)
	assert.ErrorContains(t, err, "unsupported config file extension")

	broken := filepath.Join(dir, "broken.toml")
	require.NoError(t, os.WriteFile(broken, []byte("[notebook\ncommand="), 0o644))
	_, err = LoadFrom(broken)
	assert.Error(t, err)
}

func TestLoadUsesConfigFileEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notebookd.toml")
	require.NoError(t, os.WriteFile(path, []byte("[notebook]\nroute = \"griffin-notebooks\"\n"), 0o644))
	t.Setenv(FileEnv, path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "griffin-notebooks", cfg.Notebook.Route)
}

func TestDurationText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration)

	out, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(out))

	assert.Error(t, d.UnmarshalText([]byte("ninety")))
}
