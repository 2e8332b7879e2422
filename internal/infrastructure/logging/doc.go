// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for the host IDE's log collector
//   - Development: colored console output for humans
//
// Logs go to stderr by default so that stdout stays free for the host
// integration when notebookd runs as a child of the IDE.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	servers := logger.Named("servers")
//	servers.Info("Notebook server ready", zap.String("root_dir", root))
package logging
