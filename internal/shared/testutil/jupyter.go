package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// FakeJupyter is an in-memory stand-in for the Jupyter REST API
type FakeJupyter struct {
	*httptest.Server
	Token string

	mu             sync.Mutex
	sessions       map[string]string // notebook path -> kernel id
	requests       []string
	traces         []string
	sessionsStatus int
	sessionsBody   string
	deleteStatus   int
	hold           chan struct{}
}

type jupyterSession struct {
	ID       string `json:"id"`
	Path     string `json:"path"`
	Type     string `json:"type"`
	Notebook struct {
		Path string `json:"path"`
	} `json:"notebook"`
	Kernel struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"kernel"`
}

// NewFakeJupyter starts a fake server closed at test cleanup
func NewFakeJupyter(t *testing.T, token string) *FakeJupyter {
	t.Helper()

	j := &FakeJupyter{
		Token:    token,
		sessions: make(map[string]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/sessions", j.handleSessions)
	mux.HandleFunc("/api/kernels/", j.handleKernel)
	j.Server = httptest.NewServer(j.record(mux))
	t.Cleanup(j.Close)
	return j
}

// AddSession registers a running kernel for a notebook path
func (j *FakeJupyter) AddSession(path, kernelID string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.sessions[path] = kernelID
}

// SetSessionsStatus makes GET /api/sessions fail with status
func (j *FakeJupyter) SetSessionsStatus(status int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.sessionsStatus = status
}

// SetSessionsBody makes GET /api/sessions answer 200 with body verbatim
func (j *FakeJupyter) SetSessionsBody(body string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.sessionsBody = body
}

// SetDeleteStatus makes DELETE /api/kernels/{id} answer with status
func (j *FakeJupyter) SetDeleteStatus(status int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.deleteStatus = status
}

// Hold blocks GET /api/sessions until the returned release func is called.
// Release must run before the test ends.
func (j *FakeJupyter) Hold() (release func()) {
	ch := make(chan struct{})
	j.mu.Lock()
	j.hold = ch
	j.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			j.mu.Lock()
			j.hold = nil
			j.mu.Unlock()
			close(ch)
		})
	}
}

// HasKernel reports whether kernelID is still running
func (j *FakeJupyter) HasKernel(kernelID string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, k := range j.sessions {
		if k == kernelID {
			return true
		}
	}
	return false
}

// Requests returns "METHOD path" for every request served
func (j *FakeJupyter) Requests() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.requests...)
}

// Traces returns the X-Trace-ID header of every request served
func (j *FakeJupyter) Traces() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.traces...)
}

func (j *FakeJupyter) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		j.mu.Lock()
		j.requests = append(j.requests, r.Method+" "+r.URL.Path)
		j.traces = append(j.traces, r.Header.Get("X-Trace-ID"))
		j.mu.Unlock()

		if r.URL.Query().Get("token") != j.Token {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (j *FakeJupyter) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	j.mu.Lock()
	hold := j.hold
	j.mu.Unlock()
	if hold != nil {
		<-hold
	}

	j.mu.Lock()
	status := j.sessionsStatus
	body := j.sessionsBody
	list := make([]jupyterSession, 0, len(j.sessions))
	for path, kernel := range j.sessions {
		var s jupyterSession
		s.ID = "session-" + kernel
		s.Path = path
		s.Type = "notebook"
		s.Notebook.Path = path
		s.Kernel.ID = kernel
		s.Kernel.Name = "python3"
		list = append(list, s)
	}
	j.mu.Unlock()

	if status != 0 && status != http.StatusOK {
		http.Error(w, "boom", status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if body != "" {
		_, _ = io.WriteString(w, body)
		return
	}
	_ = json.NewEncoder(w).Encode(list)
}

func (j *FakeJupyter) handleKernel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	kernelID := strings.TrimPrefix(r.URL.Path, "/api/kernels/")

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.deleteStatus != 0 {
		w.WriteHeader(j.deleteStatus)
		return
	}

	found := false
	for path, k := range j.sessions {
		if k == kernelID {
			delete(j.sessions, path)
			found = true
		}
	}
	if !found {
		http.Error(w, "no such kernel", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
