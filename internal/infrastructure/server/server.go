package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"

	apihttp "github.com/GriffinCanCode/griffin-notebook/internal/api/http"
	"github.com/GriffinCanCode/griffin-notebook/internal/api/middleware"
	"github.com/GriffinCanCode/griffin-notebook/internal/api/ws"
	"github.com/GriffinCanCode/griffin-notebook/internal/domain/events"
	"github.com/GriffinCanCode/griffin-notebook/internal/domain/registry"
	nbserver "github.com/GriffinCanCode/griffin-notebook/internal/domain/server"
	"github.com/GriffinCanCode/griffin-notebook/internal/domain/session"
	"github.com/GriffinCanCode/griffin-notebook/internal/infrastructure/config"
	"github.com/GriffinCanCode/griffin-notebook/internal/infrastructure/logging"
	"github.com/GriffinCanCode/griffin-notebook/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/griffin-notebook/internal/infrastructure/tracing"
	httpclient "github.com/GriffinCanCode/griffin-notebook/internal/providers/http/client"
	"github.com/GriffinCanCode/griffin-notebook/internal/providers/theme"
)

// maxConnections caps concurrent control API connections
const maxConnections = 256

// Server wraps the control API and the notebook registry behind it
type Server struct {
	router   *gin.Engine
	http     *http.Server
	registry *registry.Manager
	bus      *events.Bus
	tracer   *tracing.Tracer
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
}

// Options overrides pieces of the default wiring, mainly for tests
type Options struct {
	// Launcher spawns notebook servers; nil picks exec or PTY per config
	Launcher nbserver.Launcher
	// Logger replaces the logger built from config
	Logger *logging.Logger
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	return NewServerWithOptions(cfg, Options{})
}

// NewServerWithOptions is NewServer with explicit overrides
func NewServerWithOptions(cfg *config.Config, opts Options) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		var err error
		logger, err = logging.New(logging.Config{
			Level:       cfg.Logging.Level,
			Development: cfg.Logging.Development,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	logger.Info("Initializing notebook daemon",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
		zap.String("command", cfg.Notebook.Command),
		zap.Bool("pty", cfg.Notebook.UsePTY),
	)

	pref, err := theme.Parse(cfg.Notebook.Theme)
	if err != nil {
		return nil, err
	}

	metrics := monitoring.NewMetrics()
	tracer := tracing.New("notebookd", logger)

	launcher := opts.Launcher
	if launcher == nil {
		if cfg.Notebook.UsePTY {
			launcher = nbserver.PTYLauncher{}
		} else {
			launcher = nbserver.ExecLauncher{}
		}
	}

	servers := nbserver.NewManager(nbserver.ConfigFrom(cfg.Notebook), launcher, logger).WithMetrics(metrics)

	httpClient := httpclient.NewClient(httpclient.Config{
		Timeout:      cfg.HTTP.Timeout.Duration,
		RetryCount:   cfg.HTTP.RetryCount,
		RetryWait:    cfg.HTTP.RetryWait.Duration,
		RetryMaxWait: cfg.HTTP.RetryMaxWait.Duration,
		RateLimit:    cfg.HTTP.RateLimit,
		UserAgent:    httpclient.DefaultConfig().UserAgent,
	})
	sessions := session.NewClient(httpClient, cfg.Notebook.Route, logger).WithMetrics(metrics)
	dispatcher := session.NewDispatcher(sessions, servers, logger).WithMetrics(metrics)
	bus := events.NewBus(logger).WithMetrics(metrics)

	reg := registry.New(servers, sessions, dispatcher, bus, theme.NewProvider(pref), logger).WithMetrics(metrics)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	apihttp.NewHandlers(reg, metrics, logger).Register(router)
	router.GET("/events", ws.NewHandler(bus, reg, metrics, logger).HandleConnection)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	logger.Info("Server initialized successfully")

	return &Server{
		router:   router,
		registry: reg,
		bus:      bus,
		tracer:   tracer,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
		http: &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler:           compress(router),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// compress gzips API responses. WebSocket upgrades bypass it since they
// need the raw connection.
func compress(h http.Handler) http.Handler {
	gz := gzhttp.GzipHandler(h)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Upgrade") != "" {
			h.ServeHTTP(w, r)
			return
		}
		gz.ServeHTTP(w, r)
	})
}

// Handler exposes the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Registry exposes the notebook registry
func (s *Server) Registry() *registry.Manager {
	return s.registry
}

// Run listens until Close is called
func (s *Server) Run() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.http.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts control API connections on ln
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))
	if err := s.http.Serve(netutil.LimitListener(ln, maxConnections)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close stops accepting requests, then shuts every notebook server down
func (s *Server) Close(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	err := s.http.Shutdown(ctx)
	if err != nil {
		s.logger.Error("HTTP shutdown did not complete", zap.Error(err))
	}

	s.registry.Shutdown()
	s.bus.Close()
	s.tracer.Close()

	_ = s.logger.Sync()
	return err
}
