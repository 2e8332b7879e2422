package server

import (
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/creack/pty"
)

// PTYLauncher starts servers attached to a pseudo-terminal.
//
// Python block-buffers stdout when it is a pipe, so a server started through
// ExecLauncher may hold its URL banner back until the buffer fills. Under a
// PTY the interpreter line-buffers and the banner arrives immediately.
type PTYLauncher struct {
	Cols uint16
	Rows uint16
}

// Launch implements Launcher
func (l PTYLauncher) Launch(spec LaunchSpec) (Process, error) {
	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.Env = append(cmd.Env, "TERM=dumb", "PYTHONUNBUFFERED=1")

	cols, rows := l.Cols, l.Rows
	if cols == 0 {
		cols = 200
	}
	if rows == 0 {
		rows = 24
	}

	// pty.Start puts the child in its own session, so killGroup reaches
	// kernels it spawned as well.
	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: cols, Rows: rows})
	if err != nil {
		return nil, fmt.Errorf("failed to start %s on a PTY: %w", spec.Command, err)
	}

	return &ptyProcess{cmd: cmd, ptmx: ptmx}, nil
}

type ptyProcess struct {
	cmd  *exec.Cmd
	ptmx *os.File
}

func (p *ptyProcess) Pid() int          { return p.cmd.Process.Pid }
func (p *ptyProcess) Output() io.Reader { return p.ptmx }
func (p *ptyProcess) Terminate() error  { return terminate(p.cmd.Process) }
func (p *ptyProcess) Kill() error       { return killGroup(p.cmd.Process) }

func (p *ptyProcess) Wait() error {
	if err := p.cmd.Wait(); err != nil {
		return fmt.Errorf("notebook server exited: %w", err)
	}
	return nil
}
