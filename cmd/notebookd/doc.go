/*
Notebookd runs notebook servers on behalf of an editor host and exposes them
through a local control API.

Usage:

	notebookd [flags]

The flags are:

	-host
		Control API host; defaults to the configured 127.0.0.1.
	-port
		Control API port; defaults to the configured 8765.
	-config
		TOML or YAML config file; defaults to $NOTEBOOK_CONFIG.
	-dev
		Human-readable debug logging.

Environment variables override the config file. On SIGINT or SIGTERM the
daemon stops accepting requests and shuts every notebook server down.
*/
package main
