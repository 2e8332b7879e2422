// Package server manages notebook server processes.
//
// A Manager keeps at most one server per root directory. Starting a server
// spawns the configured command through a Launcher, scans its output for the
// URL and token it announces, and hands the Server out only once it is
// ready. Every start gets a fresh epoch so callers can tell a restarted
// server from the one they originally talked to.
package server
