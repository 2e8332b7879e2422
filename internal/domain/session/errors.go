package session

import (
	"errors"
	"fmt"
)

// ErrNoServer is returned for sessions whose server has been shut down
var ErrNoServer = errors.New("notebook server is not running")

// ServerUnreachableError reports a request that never got an HTTP response
type ServerUnreachableError struct {
	BaseURL string
	Err     error
}

func (e *ServerUnreachableError) Error() string {
	return fmt.Sprintf("notebook server %s unreachable: %v", e.BaseURL, e.Err)
}

func (e *ServerUnreachableError) Unwrap() error {
	return e.Err
}

// ServerError reports an unexpected HTTP status from the notebook server
type ServerError struct {
	Endpoint   string
	StatusCode int
	Body       string
	// Err is set when the response could not be decoded
	Err error
}

func (e *ServerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("notebook server sent an invalid response for %s: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("notebook server returned %d for %s", e.StatusCode, e.Endpoint)
}

func (e *ServerError) Unwrap() error {
	return e.Err
}

// KernelShutdownError reports a kernel the server refused to stop
type KernelShutdownError struct {
	KernelID   string
	StatusCode int
	Body       string
}

func (e *KernelShutdownError) Error() string {
	return fmt.Sprintf("failed to shut down kernel %s: server returned %d", e.KernelID, e.StatusCode)
}
