package testutil

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/GriffinCanCode/griffin-notebook/internal/domain/server"
)

// ErrKilled is the exit error of a FakeProcess stopped with Kill
var ErrKilled = errors.New("signal: killed")

var nextPID atomic.Int64

func init() {
	nextPID.Store(40000)
}

// FakeProcess is a scripted server.Process. Output is written with Emit and
// the process ends with Exit.
type FakeProcess struct {
	Spec server.LaunchSpec

	// IgnoreTerminate keeps the process alive after Terminate, forcing a kill
	IgnoreTerminate bool

	mu      sync.Mutex
	killErr error

	pid int
	pr  *io.PipeReader
	pw  *io.PipeWriter

	exitOnce sync.Once
	exitErr  error
	done     chan struct{}

	terminated atomic.Int32
	killed     atomic.Int32
}

// NewFakeProcess creates a running fake process
func NewFakeProcess(spec server.LaunchSpec) *FakeProcess {
	pr, pw := io.Pipe()
	return &FakeProcess{
		Spec: spec,
		pid:  int(nextPID.Add(1)),
		pr:   pr,
		pw:   pw,
		done: make(chan struct{}),
	}
}

// Emit writes one line of output. It blocks until the manager reads it and
// is a no-op after exit.
func (p *FakeProcess) Emit(line string) {
	select {
	case <-p.done:
		return
	default:
	}
	_, _ = fmt.Fprintln(p.pw, line)
}

// Announce emits a Jupyter style banner for baseURL and token
func (p *FakeProcess) Announce(baseURL, token string) {
	p.Emit("[I ServerApp] Jupyter Server is running at:")
	p.Emit(fmt.Sprintf("[I ServerApp] %s/tree?token=%s", baseURL, token))
}

// Exit ends the process with err. Later calls are ignored.
func (p *FakeProcess) Exit(err error) {
	p.exitOnce.Do(func() {
		p.exitErr = err
		p.pw.Close()
		close(p.done)
	})
}

// Exited reports whether the process has ended
func (p *FakeProcess) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Terminations returns how often Terminate was called
func (p *FakeProcess) Terminations() int { return int(p.terminated.Load()) }

// Kills returns how often Kill was called
func (p *FakeProcess) Kills() int { return int(p.killed.Load()) }

func (p *FakeProcess) Pid() int          { return p.pid }
func (p *FakeProcess) Output() io.Reader { return p.pr }

func (p *FakeProcess) Terminate() error {
	p.terminated.Add(1)
	if !p.IgnoreTerminate {
		p.Exit(nil)
	}
	return nil
}

// FailKills makes Kill return err and leave the process running. A nil
// err restores normal kills.
func (p *FakeProcess) FailKills(err error) {
	p.mu.Lock()
	p.killErr = err
	p.mu.Unlock()
}

func (p *FakeProcess) Kill() error {
	p.killed.Add(1)
	p.mu.Lock()
	err := p.killErr
	p.mu.Unlock()
	if err != nil {
		return err
	}
	p.Exit(ErrKilled)
	return nil
}

func (p *FakeProcess) Wait() error {
	<-p.done
	return p.exitErr
}

// FakeLauncher hands out FakeProcesses. OnLaunch, when set, runs in its own
// goroutine for each new process, typically to announce readiness.
type FakeLauncher struct {
	OnLaunch func(p *FakeProcess)
	// Err makes every Launch fail
	Err error

	mu        sync.Mutex
	processes []*FakeProcess
}

// Launch implements server.Launcher
func (l *FakeLauncher) Launch(spec server.LaunchSpec) (server.Process, error) {
	if l.Err != nil {
		return nil, l.Err
	}

	p := NewFakeProcess(spec)
	l.mu.Lock()
	l.processes = append(l.processes, p)
	onLaunch := l.OnLaunch
	l.mu.Unlock()

	if onLaunch != nil {
		go onLaunch(p)
	}
	return p, nil
}

// Processes returns every process launched so far
func (l *FakeLauncher) Processes() []*FakeProcess {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*FakeProcess(nil), l.processes...)
}

// Launches returns the number of Launch calls that produced a process
func (l *FakeLauncher) Launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.processes)
}

// Last returns the most recently launched process
func (l *FakeLauncher) Last() *FakeProcess {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.processes) == 0 {
		return nil
	}
	return l.processes[len(l.processes)-1]
}

// AnnouncingLauncher returns a launcher whose processes become ready at
// baseURL with token immediately after launch.
func AnnouncingLauncher(baseURL, token string) *FakeLauncher {
	return &FakeLauncher{
		OnLaunch: func(p *FakeProcess) {
			p.Announce(baseURL, token)
		},
	}
}
