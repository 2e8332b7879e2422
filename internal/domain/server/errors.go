package server

import (
	"fmt"
	"strings"
)

// Start failure reasons
const (
	ReasonRootDir  = "invalid root directory"
	ReasonLaunch   = "launch failed"
	ReasonExited   = "process exited before becoming ready"
	ReasonTimeout  = "timed out waiting for server"
	ReasonCanceled = "start canceled"
	ReasonStopping = "previous server is still shutting down"
)

// StartError reports a server that never became ready. Output holds the
// last lines the process printed, if any.
type StartError struct {
	RootDir string
	Reason  string
	Output  []string
	Err     error
}

func (e *StartError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "failed to start notebook server for %s: %s", e.RootDir, e.Reason)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if n := len(e.Output); n > 0 {
		fmt.Fprintf(&b, " (last output: %q)", e.Output[n-1])
	}
	return b.String()
}

func (e *StartError) Unwrap() error {
	return e.Err
}
