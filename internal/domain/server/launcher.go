package server

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// LaunchSpec describes one notebook server invocation
type LaunchSpec struct {
	Command string
	Args    []string
	Dir     string
	Env     []string
}

// Process is a running notebook server as seen by the manager
type Process interface {
	// Pid returns the OS process ID
	Pid() int
	// Output streams combined stdout/stderr until the process and every
	// inheriting child have closed it
	Output() io.Reader
	// Terminate asks the process to exit gracefully
	Terminate() error
	// Kill stops the process (and its process group where supported)
	Kill() error
	// Wait blocks until the process exits. Called exactly once.
	Wait() error
}

// Launcher spawns notebook server processes
type Launcher interface {
	Launch(spec LaunchSpec) (Process, error)
}

// ExecLauncher starts servers with os/exec, output on a pipe
type ExecLauncher struct{}

// Launch implements Launcher
func (ExecLauncher) Launch(spec LaunchSpec) (Process, error) {
	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	setProcessGroup(cmd)

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create output pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, fmt.Errorf("failed to start %s: %w", spec.Command, err)
	}
	// The child holds its own copy of the write end.
	pw.Close()

	return &execProcess{cmd: cmd, output: pr}, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	output *os.File
}

func (p *execProcess) Pid() int          { return p.cmd.Process.Pid }
func (p *execProcess) Output() io.Reader { return p.output }
func (p *execProcess) Terminate() error  { return terminate(p.cmd.Process) }
func (p *execProcess) Kill() error       { return killGroup(p.cmd.Process) }

func (p *execProcess) Wait() error {
	err := p.cmd.Wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("notebook server exited: %w", err)
	}
	return err
}
