// Package server wires configuration, the notebook registry and the control
// API into a runnable daemon.
package server
