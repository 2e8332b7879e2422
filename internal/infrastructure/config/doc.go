// Package config provides 12-factor configuration for notebookd.
//
// Values are resolved in three layers: built-in defaults, an optional TOML or
// YAML file (path in NOTEBOOK_CONFIG or the -config flag), then environment
// variables. CLI flags in cmd/notebookd override the result.
//
// Configuration Sections:
//   - Server: control API listener (host, port)
//   - Notebook: server command line, start timeout, shutdown grace, theme
//   - HTTP: notebook REST client timeouts and retries
//   - Logging: log level and output format
//   - RateLimit: per-IP rate limiting of the control API
//
// Example Usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//		return err
//	}
//	fmt.Println(cfg.Notebook.StartTimeout)
//
// Environment Variables:
//   - HOST, PORT
//   - NOTEBOOK_COMMAND, NOTEBOOK_ARGS, NOTEBOOK_ROOT_FLAG, NOTEBOOK_TOKEN_FLAG,
//     NOTEBOOK_DARK_FLAG, NOTEBOOK_THEME, NOTEBOOK_ROUTE,
//     NOTEBOOK_START_TIMEOUT, NOTEBOOK_SHUTDOWN_GRACE, NOTEBOOK_OUTPUT_LINES,
//     NOTEBOOK_USE_PTY
//   - HTTP_TIMEOUT, HTTP_RETRY_COUNT, HTTP_RETRY_WAIT, HTTP_RETRY_MAX_WAIT,
//     HTTP_RATE_LIMIT
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
