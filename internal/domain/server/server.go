package server

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Status is the lifecycle state of a notebook server
type Status string

const (
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopped  Status = "stopped"
	StatusExited   Status = "exited"
)

// killWait bounds the wait for a killed process to be reaped
const killWait = 5 * time.Second

// Options selects the server to get or start
type Options struct {
	RootDir   string
	DarkTheme bool
}

// Server is one running notebook server process. Connection fields are
// fixed once the server is handed out.
type Server struct {
	RootDir   string
	BaseURL   string
	Token     string
	DarkTheme bool
	Epoch     uint64
	PID       int
	StartedAt time.Time

	proc     Process
	output   *OutputLog
	done     chan struct{}
	stopping   atomic.Bool
	stopFailed atomic.Bool

	mu      sync.RWMutex
	status  Status
	exitErr error

	stopMu     sync.Mutex
	notifyOnce sync.Once
}

// Info is the public representation of a server
type Info struct {
	RootDir   string    `json:"root_dir"`
	BaseURL   string    `json:"base_url"`
	Token     string    `json:"token"`
	DarkTheme bool      `json:"dark_theme"`
	Epoch     uint64    `json:"epoch"`
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
	Status    Status    `json:"status"`
}

func newServer(root string, opts Options, proc Process, output *OutputLog) *Server {
	return &Server{
		RootDir:   root,
		DarkTheme: opts.DarkTheme,
		PID:       proc.Pid(),
		StartedAt: time.Now(),
		proc:      proc,
		output:    output,
		done:      make(chan struct{}),
		status:    StatusStarting,
	}
}

// Status returns the current lifecycle state
func (s *Server) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Running reports whether the server can accept requests. A server being
// shut down is no longer running even while its process is alive.
func (s *Server) Running() bool {
	return s.Status() == StatusRunning && !s.stopping.Load()
}

// Done is closed once the process has exited
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// ExitErr returns the error the process exited with, if any
func (s *Server) ExitErr() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exitErr
}

// Output returns the most recent lines the server printed
func (s *Server) Output() []string {
	return s.output.Lines()
}

// Info returns a snapshot suitable for JSON encoding
func (s *Server) Info() Info {
	return Info{
		RootDir:   s.RootDir,
		BaseURL:   s.BaseURL,
		Token:     s.Token,
		DarkTheme: s.DarkTheme,
		Epoch:     s.Epoch,
		PID:       s.PID,
		StartedAt: s.StartedAt,
		Status:    s.Status(),
	}
}

func (s *Server) setStatus(status Status) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// markRunning moves a starting server to running. It fails if the process
// exited or was stopped in the meantime.
func (s *Server) markRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusStarting {
		return false
	}
	s.status = StatusRunning
	return true
}

// exited records process exit and reports whether it was unexpected.
func (s *Server) exited(err error) bool {
	s.mu.Lock()
	s.exitErr = err
	crashed := !s.stopping.Load()
	if crashed {
		s.status = StatusExited
	} else {
		s.status = StatusStopped
	}
	s.mu.Unlock()

	close(s.done)
	return crashed
}

// stop terminates the process, waits up to grace, then kills it. Once the
// process is gone further calls return nil; after a failure the next call
// tries again.
func (s *Server) stop(grace time.Duration) error {
	s.stopMu.Lock()
	defer s.stopMu.Unlock()

	s.stopping.Store(true)
	if err := s.terminate(grace); err != nil {
		s.stopFailed.Store(true)
		return err
	}
	s.stopFailed.Store(false)
	s.setStatus(StatusStopped)
	return nil
}

// alive reports whether the process has not exited yet
func (s *Server) alive() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

func (s *Server) terminate(grace time.Duration) error {
	select {
	case <-s.done:
		return nil
	default:
	}

	if err := s.proc.Terminate(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		// Fall through to kill.
		grace = 0
	}

	if grace > 0 {
		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case <-s.done:
			return nil
		case <-timer.C:
		}
	}

	if err := s.proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill notebook server %d: %w", s.PID, err)
	}

	select {
	case <-s.done:
		return nil
	case <-time.After(killWait):
		return fmt.Errorf("notebook server %d did not exit after kill", s.PID)
	}
}
