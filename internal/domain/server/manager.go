package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/griffin-notebook/internal/infrastructure/config"
	"github.com/GriffinCanCode/griffin-notebook/internal/infrastructure/logging"
	"github.com/GriffinCanCode/griffin-notebook/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/griffin-notebook/internal/shared/paths"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	maxLineSize = 1024 * 1024
	// outputDrain bounds how long a failed start waits for trailing output
	outputDrain = 500 * time.Millisecond
)

// Config controls how servers are launched
type Config struct {
	Command       string
	Args          []string
	RootDirFlag   string
	TokenFlag     string
	DarkThemeFlag string
	Env           []string
	StartTimeout  time.Duration
	ShutdownGrace time.Duration
	OutputLines   int
}

// DefaultConfig launches `jupyter notebook` with a generated token
func DefaultConfig() Config {
	return ConfigFrom(config.Default().Notebook)
}

// ConfigFrom maps loaded settings onto manager configuration
func ConfigFrom(nc config.NotebookConfig) Config {
	return Config{
		Command:       nc.Command,
		Args:          append([]string(nil), nc.Args...),
		RootDirFlag:   nc.RootDirFlag,
		TokenFlag:     nc.TokenFlag,
		DarkThemeFlag: nc.DarkThemeFlag,
		StartTimeout:  nc.StartTimeout.Duration,
		ShutdownGrace: nc.ShutdownGrace.Duration,
		OutputLines:   nc.OutputLines,
	}
}

// Manager owns every notebook server process, at most one per root directory
type Manager struct {
	cfg      Config
	launcher Launcher
	logger   *logging.Logger
	metrics  *monitoring.Metrics

	mu      sync.RWMutex
	servers map[string]*Server

	starts singleflight.Group
	epoch  atomic.Uint64

	hooksMu sync.RWMutex
	onStop  []func(*Server)
}

// NewManager creates a server manager
func NewManager(cfg Config, launcher Launcher, log *logging.Logger) *Manager {
	if launcher == nil {
		launcher = ExecLauncher{}
	}
	if log == nil {
		log = logging.NewNop()
	}
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = 30 * time.Second
	}
	if cfg.OutputLines <= 0 {
		cfg.OutputLines = 200
	}
	return &Manager{
		cfg:      cfg,
		launcher: launcher,
		logger:   log.Named("servers"),
		servers:  make(map[string]*Server),
	}
}

// WithMetrics attaches a metrics collector
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// OnStop registers fn to run whenever a server leaves the running set,
// whether shut down or crashed.
func (m *Manager) OnStop(fn func(*Server)) {
	m.hooksMu.Lock()
	defer m.hooksMu.Unlock()
	m.onStop = append(m.onStop, fn)
}

// GetOrStart returns the running server for opts.RootDir, starting one if
// needed. Concurrent calls for the same root share a single start, which is
// bound to the context of the first caller.
func (m *Manager) GetOrStart(ctx context.Context, opts Options) (*Server, error) {
	root, err := resolveRoot(opts.RootDir)
	if err != nil {
		return nil, &StartError{RootDir: opts.RootDir, Reason: ReasonRootDir, Err: err}
	}

	if s, ok := m.Get(root); ok {
		if s.DarkTheme != opts.DarkTheme {
			m.logger.Debug("Reusing server with different theme",
				zap.String("root_dir", root),
				zap.Bool("dark_theme", s.DarkTheme))
		}
		return s, nil
	}

	v, err, _ := m.starts.Do(root, func() (interface{}, error) {
		if s, ok := m.Get(root); ok {
			return s, nil
		}
		if prev, ok := m.tracked(root); ok && prev.alive() {
			return nil, &StartError{RootDir: root, Reason: ReasonStopping, Err: fmt.Errorf("pid %d has not exited", prev.PID)}
		}

		s, err := m.start(ctx, root, opts)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		if !s.Running() {
			m.mu.Unlock()
			return nil, &StartError{RootDir: root, Reason: ReasonExited, Output: s.output.Tail(20), Err: s.ExitErr()}
		}
		m.servers[root] = s
		count := len(m.servers)
		m.mu.Unlock()

		if m.metrics != nil {
			m.metrics.SetServersActive(count)
		}
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Server), nil
}

func (m *Manager) start(ctx context.Context, root string, opts Options) (*Server, error) {
	begin := time.Now()
	token := newToken()
	spec := m.launchSpec(root, token, opts)

	m.logger.Info("Starting notebook server",
		zap.String("root_dir", root),
		zap.String("command", spec.Command),
		zap.Bool("dark_theme", opts.DarkTheme))

	proc, err := m.launcher.Launch(spec)
	if err != nil {
		m.recordStart("error", begin)
		return nil, &StartError{RootDir: root, Reason: ReasonLaunch, Err: err}
	}

	s := newServer(root, opts, proc, NewOutputLog(m.cfg.OutputLines))
	ready := make(chan ConnectionInfo, 1)
	drained := make(chan struct{})
	go m.readOutput(s, ready, drained)
	go m.monitor(s)

	timer := time.NewTimer(m.cfg.StartTimeout)
	defer timer.Stop()

	var info ConnectionInfo
	select {
	case info = <-ready:
	case <-s.Done():
		select {
		case <-drained:
		case <-time.After(outputDrain):
		}
		return nil, m.startFailed(s, ReasonExited, s.ExitErr(), "exited", begin)
	case <-timer.C:
		_ = s.stop(0)
		return nil, m.startFailed(s, ReasonTimeout, fmt.Errorf("no server URL after %s", m.cfg.StartTimeout), "timeout", begin)
	case <-ctx.Done():
		_ = s.stop(0)
		return nil, m.startFailed(s, ReasonCanceled, ctx.Err(), "canceled", begin)
	}

	s.BaseURL = info.BaseURL
	s.Token = token
	if info.Token != "" {
		s.Token = info.Token
	}
	s.Epoch = m.epoch.Add(1)
	if !s.markRunning() {
		return nil, m.startFailed(s, ReasonExited, s.ExitErr(), "exited", begin)
	}

	m.recordStart("ok", begin)
	m.logger.Info("Notebook server ready",
		zap.String("root_dir", root),
		zap.String("base_url", s.BaseURL),
		zap.Int("pid", s.PID),
		zap.Uint64("epoch", s.Epoch),
		zap.Duration("startup", time.Since(begin)))
	return s, nil
}

func (m *Manager) startFailed(s *Server, reason string, err error, result string, begin time.Time) error {
	m.recordStart(result, begin)
	serr := &StartError{RootDir: s.RootDir, Reason: reason, Output: s.output.Tail(20), Err: err}
	m.logger.Warn("Notebook server failed to start",
		zap.String("root_dir", s.RootDir),
		zap.String("reason", reason),
		zap.Strings("output", serr.Output),
		zap.Error(err))
	return serr
}

func (m *Manager) recordStart(result string, begin time.Time) {
	if m.metrics != nil {
		m.metrics.RecordServerStart(result, time.Since(begin))
	}
}

func (m *Manager) launchSpec(root, token string, opts Options) LaunchSpec {
	args := append([]string(nil), m.cfg.Args...)
	if m.cfg.RootDirFlag != "" {
		args = append(args, m.cfg.RootDirFlag+"="+root)
	}
	if m.cfg.TokenFlag != "" {
		args = append(args, m.cfg.TokenFlag+"="+token)
	}
	if opts.DarkTheme && m.cfg.DarkThemeFlag != "" {
		args = append(args, m.cfg.DarkThemeFlag)
	}
	return LaunchSpec{
		Command: m.cfg.Command,
		Args:    args,
		Dir:     root,
		Env:     m.cfg.Env,
	}
}

// readOutput buffers server output and reports the first connection announcement
func (m *Manager) readOutput(s *Server, ready chan<- ConnectionInfo, drained chan<- struct{}) {
	defer close(drained)

	out := s.proc.Output()
	if c, ok := out.(io.Closer); ok {
		defer c.Close()
	}

	log := m.logger.Named("output").With(zap.Int("pid", s.PID))
	scanner := bufio.NewScanner(out)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	announced := false
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		s.output.Append(line)
		log.Debug(line)

		if announced {
			continue
		}
		if info, ok := ParseReadyLine(line); ok {
			announced = true
			ready <- info
		}
	}
	// A PTY reports EIO once the child is gone; nothing to act on.
}

// monitor waits for the process to exit and cleans up after crashes
func (m *Manager) monitor(s *Server) {
	err := s.proc.Wait()
	crashed := s.exited(err)
	if !crashed && !s.stopFailed.Load() {
		return
	}

	removed, count := m.untrack(s)
	if !removed {
		return
	}

	if !crashed {
		// An earlier shutdown failed and the process finally went away.
		m.logger.Info("Notebook server exited after failed shutdown",
			zap.String("root_dir", s.RootDir),
			zap.Int("pid", s.PID))
		if m.metrics != nil {
			m.metrics.RecordServerExit("shutdown")
			m.metrics.SetServersActive(count)
		}
		m.stopped(s)
		return
	}

	m.logger.Warn("Notebook server exited unexpectedly",
		zap.String("root_dir", s.RootDir),
		zap.Int("pid", s.PID),
		zap.Strings("output", s.output.Tail(10)),
		zap.Error(err))
	if m.metrics != nil {
		m.metrics.RecordServerExit("crashed")
		m.metrics.SetServersActive(count)
	}
	m.stopped(s)
}

// Shutdown stops the server for rootDir. Unknown or already stopped roots
// are a no-op. A server that could not be stopped stays tracked, so a
// later Shutdown retries and GetOrStart does not start a second process.
func (m *Manager) Shutdown(rootDir string) error {
	root := cleanRoot(rootDir)

	s, ok := m.tracked(root)
	if !ok {
		return nil
	}

	if err := m.shutdown(s); err != nil {
		return fmt.Errorf("failed to shut down notebook server for %s: %w", root, err)
	}
	return nil
}

// ShutdownAll stops every server concurrently. Failures are logged, never returned.
func (m *Manager) ShutdownAll() {
	m.mu.RLock()
	servers := make([]*Server, 0, len(m.servers))
	for _, s := range m.servers {
		servers = append(servers, s)
	}
	m.mu.RUnlock()

	if len(servers) == 0 {
		return
	}

	var (
		wg   sync.WaitGroup
		errs error
		emu  sync.Mutex
	)
	for _, s := range servers {
		wg.Add(1)
		go func(s *Server) {
			defer wg.Done()
			if err := m.shutdown(s); err != nil {
				emu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", s.RootDir, err))
				emu.Unlock()
			}
		}(s)
	}
	wg.Wait()

	if errs != nil {
		m.logger.Warn("Some notebook servers did not shut down cleanly",
			zap.Int("failed", len(multierr.Errors(errs))),
			zap.Error(errs))
		return
	}
	m.logger.Info("All notebook servers stopped", zap.Int("count", len(servers)))
}

// shutdown stops s and forgets it. On failure s stays tracked.
func (m *Manager) shutdown(s *Server) error {
	m.logger.Info("Stopping notebook server",
		zap.String("root_dir", s.RootDir),
		zap.Int("pid", s.PID))

	if err := s.stop(m.cfg.ShutdownGrace); err != nil {
		m.logger.Error("Failed to stop notebook server",
			zap.String("root_dir", s.RootDir),
			zap.Int("pid", s.PID),
			zap.Error(err))
		return err
	}

	removed, count := m.untrack(s)
	if m.metrics != nil {
		if removed {
			m.metrics.RecordServerExit("shutdown")
		}
		m.metrics.SetServersActive(count)
	}
	m.stopped(s)
	return nil
}

func (m *Manager) tracked(root string) (*Server, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.servers[root]
	return s, ok
}

// untrack removes s if it is still the server tracked for its root
func (m *Manager) untrack(s *Server) (bool, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.servers[s.RootDir]
	removed := ok && current == s
	if removed {
		delete(m.servers, s.RootDir)
	}
	return removed, len(m.servers)
}

// stopped runs the stop hooks for s exactly once
func (m *Manager) stopped(s *Server) {
	s.notifyOnce.Do(func() {
		m.hooksMu.RLock()
		hooks := make([]func(*Server), len(m.onStop))
		copy(hooks, m.onStop)
		m.hooksMu.RUnlock()

		for _, fn := range hooks {
			fn(s)
		}
	})
}

// Get returns the running server for rootDir
func (m *Manager) Get(rootDir string) (*Server, bool) {
	root := cleanRoot(rootDir)

	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.servers[root]
	if !ok || !s.Running() {
		return nil, false
	}
	return s, true
}

// Find returns the running server whose root contains filename. The
// deepest root wins when several match.
func (m *Manager) Find(filename string) (*Server, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *Server
	for root, s := range m.servers {
		if !s.Running() || !paths.Contains(root, filename) {
			continue
		}
		if best == nil || len(root) > len(best.RootDir) {
			best = s
		}
	}
	return best, best != nil
}

// List returns running servers ordered by root directory
func (m *Manager) List() []*Server {
	m.mu.RLock()
	servers := make([]*Server, 0, len(m.servers))
	for _, s := range m.servers {
		if s.Running() {
			servers = append(servers, s)
		}
	}
	m.mu.RUnlock()

	sort.Slice(servers, func(i, j int) bool {
		return servers[i].RootDir < servers[j].RootDir
	})
	return servers
}

// Epoch returns the epoch of the running server for rootDir. A restarted
// server always gets a new epoch.
func (m *Manager) Epoch(rootDir string) (uint64, bool) {
	s, ok := m.Get(rootDir)
	if !ok {
		return 0, false
	}
	return s.Epoch, true
}

// resolveRoot cleans rootDir and checks it is an existing directory
func resolveRoot(rootDir string) (string, error) {
	if strings.TrimSpace(rootDir) == "" {
		return "", fmt.Errorf("root directory is empty")
	}
	root := cleanRoot(rootDir)
	info, err := os.Stat(root)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", root)
	}
	return root, nil
}

func cleanRoot(rootDir string) string {
	if abs, err := filepath.Abs(rootDir); err == nil {
		return abs
	}
	return filepath.Clean(rootDir)
}

func newToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
