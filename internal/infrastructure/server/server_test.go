package server

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/GriffinCanCode/griffin-notebook/internal/infrastructure/config"
	"github.com/GriffinCanCode/griffin-notebook/internal/infrastructure/logging"
	"github.com/GriffinCanCode/griffin-notebook/internal/shared/testutil"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *testutil.FakeJupyter, *testutil.FakeLauncher) {
	t.Helper()

	j := testutil.NewFakeJupyter(t, "secret")
	launcher := testutil.AnnouncingLauncher(j.URL, "secret")

	cfg := config.Default()
	cfg.Logging.Development = true
	cfg.RateLimit.Enabled = false
	cfg.Notebook.StartTimeout = config.D(2 * time.Second)
	cfg.Notebook.ShutdownGrace = config.D(100 * time.Millisecond)
	cfg.HTTP.RetryCount = 0

	s, err := NewServerWithOptions(cfg, Options{Launcher: launcher, Logger: logging.NewNop()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s, j, launcher
}

func request(t *testing.T, h http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var out map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestNewServerRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Notebook.Command = ""

	_, err := NewServerWithOptions(cfg, Options{Logger: logging.NewNop()})
	assert.Error(t, err)
}

func TestOpenNotebookEndToEnd(t *testing.T) {
	s, j, _ := newTestServer(t)
	root := t.TempDir()

	w, out := request(t, s.Handler(), "POST", "/sessions", map[string]string{
		"filename": filepath.Join(root, "a.ipynb"),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sess := out["session"].(map[string]interface{})
	assert.Equal(t, j.URL+"/notebooks/a.ipynb?token=secret", sess["file_url"])
	assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))

	j.AddSession("a.ipynb", "k-1")
	req := httptest.NewRequest("GET", "/sessions/"+sess["id"].(string)+"/kernel", nil)
	req.Header.Set("X-Trace-ID", "trace-e2e")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, j.Traces(), "trace-e2e")

	w, _ = request(t, s.Handler(), "GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "notebookd_sessions_active 1")
	assert.Contains(t, body, "notebookd_server_starts_total")
	assert.Contains(t, body, `notebookd_http_requests_total{method="POST",path="/sessions",status="201"} 1`)
}

func TestServeAndClose(t *testing.T) {
	s, _, launcher := newTestServer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	served := make(chan error, 1)
	go func() { served <- s.Serve(ln) }()

	base := "http://" + ln.Addr().String()
	resp, err := http.Get(base + "/health")
	require.NoError(t, err)
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(base, "http")+"/events", nil)
	require.NoError(t, err)
	defer conn.Close()

	resp, err = http.Post(base+"/servers", "application/json", strings.NewReader(`{"root_dir":"`+filepath.ToSlash(t.TempDir())+`"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Close(ctx))

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
	assert.True(t, launcher.Last().Exited())
}

func TestCompressedListing(t *testing.T) {
	s, _, _ := newTestServer(t)
	root := t.TempDir()
	for i := 0; i < 40; i++ {
		name := filepath.Join(root, "notebook-with-a-long-name-"+strings.Repeat("x", i)+".ipynb")
		require.NoError(t, os.WriteFile(name, []byte("{}"), 0o644))
	}

	req := httptest.NewRequest("GET", "/notebooks?root_dir="+url.QueryEscape(root), nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	compress(s.Handler()).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(zr).Decode(&out))
	assert.Len(t, out["notebooks"], 40)
}
