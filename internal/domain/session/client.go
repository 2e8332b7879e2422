package session

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/GriffinCanCode/griffin-notebook/internal/domain/server"
	"github.com/GriffinCanCode/griffin-notebook/internal/infrastructure/logging"
	"github.com/GriffinCanCode/griffin-notebook/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/griffin-notebook/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/griffin-notebook/internal/providers/http/client"
	"github.com/GriffinCanCode/griffin-notebook/internal/shared/id"
	"github.com/GriffinCanCode/griffin-notebook/internal/shared/paths"
	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// DefaultRoute is the server route notebooks are opened under
const DefaultRoute = "notebooks"

const maxErrorBody = 512

// Client registers notebooks against servers and queries their kernels
type Client struct {
	http    *client.Client
	route   string
	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// NewClient creates a session client. An empty route means DefaultRoute.
func NewClient(httpClient *client.Client, route string, log *logging.Logger) *Client {
	if httpClient == nil {
		httpClient = client.NewClient(client.DefaultConfig())
	}
	route = strings.Trim(route, "/")
	if route == "" {
		route = DefaultRoute
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Client{
		http:   httpClient,
		route:  route,
		logger: log.Named("sessions"),
	}
}

// WithMetrics attaches a metrics collector
func (c *Client) WithMetrics(metrics *monitoring.Metrics) *Client {
	c.metrics = metrics
	return c
}

// Forget drops client state kept for a server that went away
func (c *Client) Forget(srv *server.Server) {
	if srv != nil && srv.BaseURL != "" {
		c.http.Forget(srv.BaseURL)
	}
}

// Register binds filename to srv. It fails with a *paths.MappingError when
// the file is not under the server root and ErrNoServer when srv is not
// running.
func (c *Client) Register(srv *server.Server, filename string) (*Session, error) {
	if srv == nil || !srv.Running() {
		return nil, ErrNoServer
	}

	rel, err := paths.Relative(filename, srv.RootDir)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:           id.NewSessionID(),
		Filename:     filename,
		RelativePath: rel,
		FileURL:      c.FileURL(srv, rel),
		Server:       srv,
		Epoch:        srv.Epoch,
		CreatedAt:    time.Now(),
	}

	c.logger.Debug("Registered notebook",
		zap.String("session_id", s.ID.String()),
		zap.String("relative_path", rel),
		zap.String("root_dir", srv.RootDir))
	return s, nil
}

// FileURL builds the URL that opens rel on srv. The whole relative path is
// escaped as one segment, so "/" becomes %2F.
func (c *Client) FileURL(srv *server.Server, rel string) string {
	return srv.BaseURL + "/" + c.route + "/" + url.PathEscape(rel) + "?token=" + url.QueryEscape(srv.Token)
}

// Sessions lists the server's notebook sessions
func (c *Client) Sessions(ctx context.Context, s *Session) ([]KernelSession, error) {
	if !s.Active() {
		return nil, ErrNoServer
	}
	srv := s.Server
	endpoint := srv.BaseURL + "/api/sessions"

	timer := monitoring.NewTimer(c.metrics, "sessions")
	resp, err := c.http.Execute(ctx, srv.BaseURL, func(r *resty.Request) (*resty.Response, error) {
		tracing.Inject(ctx, r.Header)
		return r.SetQueryParam("token", srv.Token).Get(endpoint)
	})
	timer.Stop()
	if err != nil {
		c.recordQuery("unreachable")
		return nil, &ServerUnreachableError{BaseURL: srv.BaseURL, Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		c.recordQuery("server_error")
		return nil, &ServerError{
			Endpoint:   "/api/sessions",
			StatusCode: resp.StatusCode(),
			Body:       truncate(resp.String()),
		}
	}

	var raw []jupyterSession
	if err := sonic.Unmarshal(resp.Body(), &raw); err != nil {
		c.recordQuery("server_error")
		return nil, &ServerError{
			Endpoint:   "/api/sessions",
			StatusCode: resp.StatusCode(),
			Body:       truncate(resp.String()),
			Err:        err,
		}
	}

	out := make([]KernelSession, 0, len(raw))
	for _, js := range raw {
		if ks, ok := js.kernelSession(); ok {
			out = append(out, ks)
		}
	}
	return out, nil
}

// KernelID returns the kernel running s's notebook. found is false when the
// server has no session for it.
func (c *Client) KernelID(ctx context.Context, s *Session) (kernelID string, found bool, err error) {
	list, err := c.Sessions(ctx, s)
	if err != nil {
		return "", false, err
	}

	for _, ks := range list {
		if ks.NotebookPath == s.RelativePath {
			c.recordQuery("found")
			return ks.KernelID, true, nil
		}
	}
	c.recordQuery("none")
	return "", false, nil
}

// ShutdownKernel stops the kernel behind s. It returns false when no kernel
// was running.
func (c *Client) ShutdownKernel(ctx context.Context, s *Session) (bool, error) {
	kernelID, found, err := c.KernelID(ctx, s)
	if err != nil {
		return false, err
	}
	if !found {
		c.recordShutdown("none")
		return false, nil
	}

	srv := s.Server
	endpoint := srv.BaseURL + "/api/kernels/" + url.PathEscape(kernelID)

	timer := monitoring.NewTimer(c.metrics, "kernels")
	resp, err := c.http.Execute(ctx, srv.BaseURL, func(r *resty.Request) (*resty.Response, error) {
		tracing.Inject(ctx, r.Header)
		return r.SetQueryParam("token", srv.Token).Delete(endpoint)
	})
	timer.Stop()
	if err != nil {
		c.recordShutdown("unreachable")
		return false, &ServerUnreachableError{BaseURL: srv.BaseURL, Err: err}
	}
	if resp.StatusCode() != http.StatusNoContent {
		c.recordShutdown("failed")
		return false, &KernelShutdownError{
			KernelID:   kernelID,
			StatusCode: resp.StatusCode(),
			Body:       truncate(resp.String()),
		}
	}

	c.recordShutdown("ok")
	c.logger.Info("Kernel shut down",
		zap.String("session_id", s.ID.String()),
		zap.String("kernel_id", kernelID),
		zap.String("relative_path", s.RelativePath))
	return true, nil
}

func (c *Client) recordQuery(outcome string) {
	if c.metrics != nil {
		c.metrics.RecordKernelQuery(outcome)
	}
}

func (c *Client) recordShutdown(outcome string) {
	if c.metrics != nil {
		c.metrics.RecordKernelShutdown(outcome)
	}
}

// jupyterSession is one element of GET /api/sessions
type jupyterSession struct {
	ID       string `json:"id"`
	Path     string `json:"path"`
	Notebook *struct {
		Path string `json:"path"`
	} `json:"notebook"`
	Kernel *struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"kernel"`
}

func (js jupyterSession) kernelSession() (KernelSession, bool) {
	if js.Kernel == nil || js.Kernel.ID == "" {
		return KernelSession{}, false
	}
	path := js.Path
	if js.Notebook != nil && js.Notebook.Path != "" {
		path = js.Notebook.Path
	}
	if path == "" {
		return KernelSession{}, false
	}
	return KernelSession{
		NotebookPath: paths.Normalize(path),
		KernelID:     js.Kernel.ID,
		KernelName:   js.Kernel.Name,
	}, true
}

func truncate(s string) string {
	if len(s) > maxErrorBody {
		return s[:maxErrorBody]
	}
	return s
}
