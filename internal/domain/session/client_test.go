package session

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/GriffinCanCode/griffin-notebook/internal/domain/server"
	"github.com/GriffinCanCode/griffin-notebook/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/griffin-notebook/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/griffin-notebook/internal/providers/http/client"
	"github.com/GriffinCanCode/griffin-notebook/internal/shared/id"
	"github.com/GriffinCanCode/griffin-notebook/internal/shared/paths"
	"github.com/GriffinCanCode/griffin-notebook/internal/shared/testutil"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const token = "secret"

type fixture struct {
	jupyter *testutil.FakeJupyter
	manager *server.Manager
	server  *server.Server
	client  *Client
	metrics *monitoring.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	j := testutil.NewFakeJupyter(t, token)

	cfg := server.DefaultConfig()
	cfg.StartTimeout = 2 * time.Second
	cfg.ShutdownGrace = 100 * time.Millisecond
	m := server.NewManager(cfg, testutil.AnnouncingLauncher(j.URL, token), nil)
	t.Cleanup(m.ShutdownAll)

	srv, err := m.GetOrStart(context.Background(), server.Options{RootDir: t.TempDir()})
	require.NoError(t, err)

	httpCfg := client.DefaultConfig()
	httpCfg.Timeout = 2 * time.Second
	httpCfg.RetryCount = 0
	metrics := monitoring.NewMetrics()

	return &fixture{
		jupyter: j,
		manager: m,
		server:  srv,
		client:  NewClient(client.NewClient(httpCfg), "", nil).WithMetrics(metrics),
		metrics: metrics,
	}
}

func (f *fixture) register(t *testing.T, rel string) *Session {
	t.Helper()
	s, err := f.client.Register(f.server, paths.Join(f.server.RootDir, rel))
	require.NoError(t, err)
	return s
}

func TestRegister(t *testing.T) {
	f := newFixture(t)

	filename := filepath.Join(f.server.RootDir, "sub", "my nb.ipynb")
	s, err := f.client.Register(f.server, filename)
	require.NoError(t, err)

	assert.True(t, id.Valid(s.ID.String(), "nb"))
	assert.Equal(t, filename, s.Filename)
	assert.Equal(t, "sub/my nb.ipynb", s.RelativePath)
	assert.Equal(t, f.jupyter.URL+"/notebooks/sub%2Fmy%20nb.ipynb?token=secret", s.FileURL)
	assert.Equal(t, f.server.Epoch, s.Epoch)
	assert.True(t, s.Active())

	info := s.Info()
	assert.Equal(t, f.server.RootDir, info.RootDir)
	assert.Equal(t, f.jupyter.URL, info.BaseURL)
	assert.True(t, info.Active)
}

func TestRegisterCustomRoute(t *testing.T) {
	f := newFixture(t)
	c := NewClient(nil, "/griffin-notebooks/", nil)

	s, err := c.Register(f.server, filepath.Join(f.server.RootDir, "a.ipynb"))
	require.NoError(t, err)
	assert.Equal(t, f.jupyter.URL+"/griffin-notebooks/a.ipynb?token=secret", s.FileURL)
}

func TestRegisterErrors(t *testing.T) {
	f := newFixture(t)

	t.Run("file outside root", func(t *testing.T) {
		_, err := f.client.Register(f.server, filepath.Join(t.TempDir(), "a.ipynb"))

		var mapErr *paths.MappingError
		assert.ErrorAs(t, err, &mapErr)
	})

	t.Run("nil server", func(t *testing.T) {
		_, err := f.client.Register(nil, "/tmp/a.ipynb")
		assert.ErrorIs(t, err, ErrNoServer)
	})

	t.Run("stopped server", func(t *testing.T) {
		require.NoError(t, f.manager.Shutdown(f.server.RootDir))

		_, err := f.client.Register(f.server, filepath.Join(f.server.RootDir, "a.ipynb"))
		assert.ErrorIs(t, err, ErrNoServer)
	})
}

func TestKernelID(t *testing.T) {
	f := newFixture(t)
	f.jupyter.AddSession("sub/a.ipynb", "kernel-a")
	f.jupyter.AddSession("b.ipynb", "kernel-b")

	t.Run("found", func(t *testing.T) {
		kernelID, found, err := f.client.KernelID(context.Background(), f.register(t, "sub/a.ipynb"))
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "kernel-a", kernelID)
	})

	t.Run("no matching session", func(t *testing.T) {
		kernelID, found, err := f.client.KernelID(context.Background(), f.register(t, "c.ipynb"))
		require.NoError(t, err)
		assert.False(t, found)
		assert.Empty(t, kernelID)
	})

	t.Run("lists sessions", func(t *testing.T) {
		list, err := f.client.Sessions(context.Background(), f.register(t, "b.ipynb"))
		require.NoError(t, err)
		assert.ElementsMatch(t, []KernelSession{
			{NotebookPath: "sub/a.ipynb", KernelID: "kernel-a", KernelName: "python3"},
			{NotebookPath: "b.ipynb", KernelID: "kernel-b", KernelName: "python3"},
		}, list)
	})

	assert.Equal(t, float64(1), promtest.ToFloat64(f.metrics.KernelQueries.WithLabelValues("found")))
	assert.Equal(t, float64(1), promtest.ToFloat64(f.metrics.KernelQueries.WithLabelValues("none")))
}

func TestKernelIDServerError(t *testing.T) {
	f := newFixture(t)
	f.jupyter.SetSessionsStatus(http.StatusInternalServerError)

	_, _, err := f.client.KernelID(context.Background(), f.register(t, "a.ipynb"))

	var srvErr *ServerError
	require.ErrorAs(t, err, &srvErr)
	assert.Equal(t, http.StatusInternalServerError, srvErr.StatusCode)
	assert.Equal(t, "/api/sessions", srvErr.Endpoint)
}

func TestKernelIDUndecodableSessionList(t *testing.T) {
	f := newFixture(t)
	f.jupyter.SetSessionsBody("<html>proxy error</html>")

	_, _, err := f.client.KernelID(context.Background(), f.register(t, "a.ipynb"))

	var srvErr *ServerError
	require.ErrorAs(t, err, &srvErr)
	assert.Equal(t, "/api/sessions", srvErr.Endpoint)
	assert.Equal(t, http.StatusOK, srvErr.StatusCode)
	assert.Contains(t, srvErr.Body, "proxy error")
	assert.Error(t, srvErr.Err)
	assert.Equal(t, float64(1), promtest.ToFloat64(f.metrics.KernelQueries.WithLabelValues("server_error")))
}

func TestKernelIDUnreachable(t *testing.T) {
	f := newFixture(t)
	s := f.register(t, "a.ipynb")
	f.jupyter.Close()

	_, _, err := f.client.KernelID(context.Background(), s)

	var unreachable *ServerUnreachableError
	require.ErrorAs(t, err, &unreachable)
	assert.Equal(t, f.server.BaseURL, unreachable.BaseURL)
}

func TestShutdownKernel(t *testing.T) {
	t.Run("stops the running kernel", func(t *testing.T) {
		f := newFixture(t)
		f.jupyter.AddSession("a.ipynb", "kernel-a")

		ok, err := f.client.ShutdownKernel(context.Background(), f.register(t, "a.ipynb"))
		require.NoError(t, err)
		assert.True(t, ok)
		assert.False(t, f.jupyter.HasKernel("kernel-a"))
		assert.Contains(t, f.jupyter.Requests(), "DELETE /api/kernels/kernel-a")
	})

	t.Run("no kernel is not an error", func(t *testing.T) {
		f := newFixture(t)

		ok, err := f.client.ShutdownKernel(context.Background(), f.register(t, "a.ipynb"))
		require.NoError(t, err)
		assert.False(t, ok)
		assert.NotContains(t, f.jupyter.Requests(), "DELETE /api/kernels/kernel-a")
	})

	t.Run("server refuses", func(t *testing.T) {
		f := newFixture(t)
		f.jupyter.AddSession("a.ipynb", "kernel-a")
		f.jupyter.SetDeleteStatus(http.StatusInternalServerError)

		ok, err := f.client.ShutdownKernel(context.Background(), f.register(t, "a.ipynb"))
		assert.False(t, ok)

		var shutdownErr *KernelShutdownError
		require.ErrorAs(t, err, &shutdownErr)
		assert.Equal(t, "kernel-a", shutdownErr.KernelID)
		assert.Equal(t, http.StatusInternalServerError, shutdownErr.StatusCode)
		assert.Equal(t, float64(1), promtest.ToFloat64(f.metrics.KernelShutdowns.WithLabelValues("failed")))
	})

	t.Run("server shut down", func(t *testing.T) {
		f := newFixture(t)
		s := f.register(t, "a.ipynb")
		require.NoError(t, f.manager.Shutdown(f.server.RootDir))

		_, err := f.client.ShutdownKernel(context.Background(), s)
		assert.ErrorIs(t, err, ErrNoServer)
		assert.Empty(t, f.jupyter.Requests())
	})
}

func TestRequestsCarryTrace(t *testing.T) {
	f := newFixture(t)
	f.jupyter.AddSession("a.ipynb", "kernel-a")

	tracer := tracing.New("test", nil)
	defer tracer.Close()
	span, ctx := tracer.StartSpan(context.Background(), "close")

	_, err := f.client.ShutdownKernel(ctx, f.register(t, "a.ipynb"))
	require.NoError(t, err)

	traces := f.jupyter.Traces()
	require.Len(t, traces, 2)
	for _, tr := range traces {
		assert.Equal(t, string(span.TraceID), tr)
	}
}

func TestJupyterSessionDecoding(t *testing.T) {
	tests := []struct {
		name string
		js   jupyterSession
		want KernelSession
		ok   bool
	}{
		{
			name: "notebook path preferred",
			js: func() jupyterSession {
				var js jupyterSession
				js.Path = "other.ipynb"
				js.Notebook = &struct {
					Path string `json:"path"`
				}{Path: "a.ipynb"}
				js.Kernel = &struct {
					ID   string `json:"id"`
					Name string `json:"name"`
				}{ID: "k1"}
				return js
			}(),
			want: KernelSession{NotebookPath: "a.ipynb", KernelID: "k1"},
			ok:   true,
		},
		{
			name: "top level path when notebook missing",
			js: func() jupyterSession {
				var js jupyterSession
				js.Path = "dir/b.ipynb"
				js.Kernel = &struct {
					ID   string `json:"id"`
					Name string `json:"name"`
				}{ID: "k2"}
				return js
			}(),
			want: KernelSession{NotebookPath: "dir/b.ipynb", KernelID: "k2"},
			ok:   true,
		},
		{
			name: "no kernel",
			js:   jupyterSession{Path: "c.ipynb"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.js.kernelSession()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
