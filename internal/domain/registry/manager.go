package registry

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/GriffinCanCode/griffin-notebook/internal/domain/events"
	"github.com/GriffinCanCode/griffin-notebook/internal/domain/server"
	"github.com/GriffinCanCode/griffin-notebook/internal/domain/session"
	"github.com/GriffinCanCode/griffin-notebook/internal/infrastructure/logging"
	"github.com/GriffinCanCode/griffin-notebook/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/griffin-notebook/internal/providers/theme"
	"github.com/GriffinCanCode/griffin-notebook/internal/shared/id"
	"go.uber.org/zap"
)

// MaxSessions caps the number of open notebook sessions
const MaxSessions = 1000

// OpenRequest opens a notebook. RootDir defaults to the root of a running
// server containing Filename, then to the file's directory. Theme
// overrides the configured preference for a newly started server.
type OpenRequest struct {
	Filename string
	RootDir  string
	Theme    string
}

// Manager tracks open notebook sessions across notebook servers
type Manager struct {
	servers    *server.Manager
	client     *session.Client
	dispatcher *session.Dispatcher
	bus        *events.Bus
	themes     *theme.Provider
	logger     *logging.Logger
	metrics    *monitoring.Metrics

	sessions  sync.Map // id.SessionID -> *session.Session
	count     atomic.Int64
	openMu    sync.Mutex
	focusMu   sync.Mutex
	focused   id.SessionID
	closeOnce sync.Once
}

// New creates a registry and subscribes it to server lifecycle changes
func New(servers *server.Manager, client *session.Client, dispatcher *session.Dispatcher, bus *events.Bus, themes *theme.Provider, log *logging.Logger) *Manager {
	if log == nil {
		log = logging.NewNop()
	}
	if themes == nil {
		themes = theme.NewProvider(theme.Same)
	}
	m := &Manager{
		servers:    servers,
		client:     client,
		dispatcher: dispatcher,
		bus:        bus,
		themes:     themes,
		logger:     log.Named("registry"),
	}
	servers.OnStop(m.serverStopped)
	return m
}

// WithMetrics attaches a metrics collector
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// Servers exposes the server manager
func (m *Manager) Servers() *server.Manager {
	return m.servers
}

// Themes exposes the theme provider
func (m *Manager) Themes() *theme.Provider {
	return m.themes
}

// StartServer gets or starts the server for rootDir
func (m *Manager) StartServer(ctx context.Context, rootDir, themeOverride string) (*server.Server, error) {
	dark, err := m.themes.Resolve(themeOverride)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return m.servers.GetOrStart(ctx, server.Options{RootDir: rootDir, DarkTheme: dark})
}

// StopServer shuts the server for rootDir down
func (m *Manager) StopServer(rootDir string) error {
	return m.servers.Shutdown(rootDir)
}

// Open starts or reuses a server for the notebook and registers it. The
// outcome is published as session-ready or session-error.
func (m *Manager) Open(ctx context.Context, req OpenRequest) (*session.Session, error) {
	filename := strings.TrimSpace(req.Filename)
	if filename == "" {
		return nil, fmt.Errorf("%w: filename is required", ErrInvalidArgument)
	}
	if !filepath.IsAbs(filename) {
		abs, err := filepath.Abs(filename)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		filename = abs
	}

	srv, err := m.serverFor(ctx, filename, req)
	if err != nil {
		m.publishError("", filename, err)
		return nil, err
	}

	s, err := m.client.Register(srv, filename)
	if err != nil {
		m.publishError("", filename, err)
		return nil, err
	}

	m.openMu.Lock()
	if m.count.Load() >= MaxSessions {
		m.openMu.Unlock()
		return nil, ErrTooManySessions
	}
	m.sessions.Store(s.ID, s)
	count := m.count.Add(1)
	m.openMu.Unlock()

	if m.metrics != nil {
		m.metrics.SetSessionsActive(int(count))
	}
	m.logger.Info("Notebook opened",
		zap.String("session_id", s.ID.String()),
		zap.String("filename", filename),
		zap.String("root_dir", srv.RootDir))

	m.publish(events.Event{
		Kind:      events.SessionReady,
		SessionID: s.ID.String(),
		Filename:  s.Filename,
		FileURL:   s.FileURL,
	})
	return s, nil
}

func (m *Manager) serverFor(ctx context.Context, filename string, req OpenRequest) (*server.Server, error) {
	if req.RootDir == "" {
		if srv, ok := m.servers.Find(filename); ok {
			return srv, nil
		}
		req.RootDir = filepath.Dir(filename)
	}
	return m.StartServer(ctx, req.RootDir, req.Theme)
}

// Get returns an open session
func (m *Manager) Get(sessionID id.SessionID) (*session.Session, bool) {
	v, ok := m.sessions.Load(sessionID)
	if !ok {
		return nil, false
	}
	return v.(*session.Session), true
}

// List returns open sessions, oldest first
func (m *Manager) List() []*session.Session {
	var out []*session.Session
	m.sessions.Range(func(_, value interface{}) bool {
		out = append(out, value.(*session.Session))
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of open sessions
func (m *Manager) Len() int {
	return int(m.count.Load())
}

// Close removes a session, optionally stopping its kernel first. The
// session is removed even when the kernel shutdown fails; that error is
// returned and published.
func (m *Manager) Close(ctx context.Context, sessionID id.SessionID, shutdownKernel bool) error {
	s, ok := m.Get(sessionID)
	if !ok {
		return ErrNotFound
	}

	var kernelErr error
	if shutdownKernel && s.Active() {
		if _, err := m.client.ShutdownKernel(ctx, s); err != nil {
			kernelErr = err
			m.publishError(s.ID.String(), s.Filename, err)
		}
	}

	if _, loaded := m.sessions.LoadAndDelete(sessionID); loaded {
		count := m.count.Add(-1)
		if m.metrics != nil {
			m.metrics.SetSessionsActive(int(count))
		}
	}
	if m.dispatcher != nil {
		m.dispatcher.Forget(sessionID)
	}

	m.focusMu.Lock()
	if m.focused == sessionID {
		m.focused = ""
		m.focusMu.Unlock()
		m.publish(events.Event{Kind: events.FocusLost, SessionID: sessionID.String(), Filename: s.Filename})
	} else {
		m.focusMu.Unlock()
	}

	m.logger.Info("Notebook closed",
		zap.String("session_id", sessionID.String()),
		zap.Bool("shutdown_kernel", shutdownKernel),
		zap.Error(kernelErr))
	return kernelErr
}

// Focus records that a session's view gained or lost focus. Gaining focus
// takes it from the previously focused session.
func (m *Manager) Focus(sessionID id.SessionID, focused bool) error {
	s, ok := m.Get(sessionID)
	if !ok {
		return ErrNotFound
	}

	m.focusMu.Lock()
	var emit []events.Event
	switch {
	case focused && m.focused != sessionID:
		if prev, ok := m.Get(m.focused); ok {
			emit = append(emit, events.Event{Kind: events.FocusLost, SessionID: prev.ID.String(), Filename: prev.Filename})
		}
		m.focused = sessionID
		emit = append(emit, events.Event{Kind: events.FocusGained, SessionID: s.ID.String(), Filename: s.Filename})
	case !focused && m.focused == sessionID:
		m.focused = ""
		emit = append(emit, events.Event{Kind: events.FocusLost, SessionID: s.ID.String(), Filename: s.Filename})
	}
	m.focusMu.Unlock()

	for _, e := range emit {
		m.publish(e)
	}
	return nil
}

// Focused returns the session that currently has focus
func (m *Manager) Focused() (*session.Session, bool) {
	m.focusMu.Lock()
	sid := m.focused
	m.focusMu.Unlock()
	if sid == "" {
		return nil, false
	}
	return m.Get(sid)
}

// KernelID looks up the kernel of a session
func (m *Manager) KernelID(ctx context.Context, sessionID id.SessionID) (string, bool, error) {
	s, ok := m.Get(sessionID)
	if !ok {
		return "", false, ErrNotFound
	}
	return m.client.KernelID(ctx, s)
}

// ShutdownKernel stops the kernel of a session
func (m *Manager) ShutdownKernel(ctx context.Context, sessionID id.SessionID) (bool, error) {
	s, ok := m.Get(sessionID)
	if !ok {
		return false, ErrNotFound
	}
	ok, err := m.client.ShutdownKernel(ctx, s)
	if err != nil {
		m.publishError(s.ID.String(), s.Filename, err)
	}
	return ok, err
}

// ShutdownKernelAsync queues a kernel shutdown. Failures are published as
// session-error; done, if set, receives every result that is still current.
func (m *Manager) ShutdownKernelAsync(sessionID id.SessionID, done func(session.Result)) (id.RequestID, error) {
	s, ok := m.Get(sessionID)
	if !ok {
		return "", ErrNotFound
	}
	return m.dispatcher.ShutdownKernel(s, func(r session.Result) {
		if r.Err != nil {
			m.publishError(s.ID.String(), s.Filename, r.Err)
		}
		if done != nil {
			done(r)
		}
	})
}

// KernelIDAsync queues a kernel lookup
func (m *Manager) KernelIDAsync(sessionID id.SessionID, done func(session.Result)) (id.RequestID, error) {
	s, ok := m.Get(sessionID)
	if !ok {
		return "", ErrNotFound
	}
	return m.dispatcher.KernelID(s, func(r session.Result) {
		if r.Err != nil {
			m.publishError(s.ID.String(), s.Filename, r.Err)
		}
		if done != nil {
			done(r)
		}
	})
}

// Shutdown stops background work and every notebook server. Safe to call
// more than once.
func (m *Manager) Shutdown() {
	m.closeOnce.Do(func() {
		if m.dispatcher != nil {
			m.dispatcher.Close()
		}
		m.servers.ShutdownAll()
		m.logger.Info("Registry shut down", zap.Int("sessions", m.Len()))
	})
}

// serverStopped runs when a server leaves the running set
func (m *Manager) serverStopped(srv *server.Server) {
	m.client.Forget(srv)

	if srv.Status() != server.StatusExited {
		return
	}

	reason := "notebook server exited"
	if err := srv.ExitErr(); err != nil {
		reason = fmt.Sprintf("%s: %v", reason, err)
	}
	m.sessions.Range(func(_, value interface{}) bool {
		s := value.(*session.Session)
		if s.Server == srv {
			m.publish(events.Event{
				Kind:      events.SessionError,
				SessionID: s.ID.String(),
				Filename:  s.Filename,
				Error:     reason,
			})
		}
		return true
	})
}

func (m *Manager) publish(e events.Event) {
	if m.bus != nil {
		m.bus.Publish(e)
	}
}

func (m *Manager) publishError(sessionID, filename string, err error) {
	m.logger.Warn("Notebook session error",
		zap.String("session_id", sessionID),
		zap.String("filename", filename),
		zap.Error(err))

	var startErr *server.StartError
	if errors.As(err, &startErr) && len(startErr.Output) > 0 {
		err = fmt.Errorf("%w\n%s", err, strings.Join(startErr.Output, "\n"))
	}
	m.publish(events.Event{
		Kind:      events.SessionError,
		SessionID: sessionID,
		Filename:  filename,
		Error:     err.Error(),
	})
}
