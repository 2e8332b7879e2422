package session

import (
	"time"

	"github.com/GriffinCanCode/griffin-notebook/internal/domain/server"
	"github.com/GriffinCanCode/griffin-notebook/internal/shared/id"
)

// Session is a notebook file registered against a server. It keeps the
// server it was created for; a restarted server needs a new Session.
type Session struct {
	ID           id.SessionID
	Filename     string
	RelativePath string
	FileURL      string
	Server       *server.Server
	Epoch        uint64
	CreatedAt    time.Time
}

// Active reports whether the session's server is still running
func (s *Session) Active() bool {
	return s.Server != nil && s.Server.Running()
}

// Info is the public representation of a session
type Info struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	RelativePath string    `json:"relative_path"`
	FileURL      string    `json:"file_url"`
	RootDir      string    `json:"root_dir"`
	BaseURL      string    `json:"base_url"`
	Epoch        uint64    `json:"epoch"`
	CreatedAt    time.Time `json:"created_at"`
	Active       bool      `json:"active"`
}

// Info returns a snapshot suitable for JSON encoding
func (s *Session) Info() Info {
	info := Info{
		ID:           s.ID.String(),
		Filename:     s.Filename,
		RelativePath: s.RelativePath,
		FileURL:      s.FileURL,
		Epoch:        s.Epoch,
		CreatedAt:    s.CreatedAt,
		Active:       s.Active(),
	}
	if s.Server != nil {
		info.RootDir = s.Server.RootDir
		info.BaseURL = s.Server.BaseURL
	}
	return info
}

// KernelSession is one entry of the server's session list. It is fetched
// per query and never cached.
type KernelSession struct {
	NotebookPath string `json:"notebook_path"`
	KernelID     string `json:"kernel_id"`
	KernelName   string `json:"kernel_name,omitempty"`
}
