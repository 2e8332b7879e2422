package http

import (
	"net/http"
	"strconv"

	"github.com/GriffinCanCode/griffin-notebook/internal/domain/registry"
	"github.com/GriffinCanCode/griffin-notebook/internal/domain/session"
	"github.com/GriffinCanCode/griffin-notebook/internal/shared/id"
	"github.com/gin-gonic/gin"
)

// OpenSessionRequest opens a notebook
type OpenSessionRequest struct {
	Filename string `json:"filename" binding:"required"`
	RootDir  string `json:"root_dir"`
	Theme    string `json:"theme"`
}

// FocusRequest reports a focus change of a notebook view
type FocusRequest struct {
	Focused *bool `json:"focused" binding:"required"`
}

// OpenSession registers a notebook, starting a server when needed
func (h *Handlers) OpenSession(c *gin.Context) {
	var req OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	s, err := h.registry.Open(c.Request.Context(), registry.OpenRequest{
		Filename: req.Filename,
		RootDir:  req.RootDir,
		Theme:    req.Theme,
	})
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"session": s.Info(),
	})
}

// ListSessions lists open sessions, oldest first
func (h *Handlers) ListSessions(c *gin.Context) {
	list := h.registry.List()
	infos := make([]session.Info, 0, len(list))
	for _, s := range list {
		infos = append(infos, s.Info())
	}

	var focused string
	if s, ok := h.registry.Focused(); ok {
		focused = s.ID.String()
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"sessions": infos,
		"focused":  focused,
	})
}

// GetSession returns one session
func (h *Handlers) GetSession(c *gin.Context) {
	s, ok := h.registry.Get(id.SessionID(c.Param("id")))
	if !ok {
		fail(c, registry.ErrNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"session": s.Info(),
	})
}

// CloseSession removes a session; ?shutdown_kernel=true stops its kernel
// first.
func (h *Handlers) CloseSession(c *gin.Context) {
	shutdownKernel, err := boolQuery(c, "shutdown_kernel")
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	sid := id.SessionID(c.Param("id"))
	if err := h.registry.Close(c.Request.Context(), sid, shutdownKernel); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"session_id": sid.String(),
	})
}

// Focus records a focus change
func (h *Handlers) Focus(c *gin.Context) {
	var req FocusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	sid := id.SessionID(c.Param("id"))
	if err := h.registry.Focus(sid, *req.Focused); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"session_id": sid.String(),
		"focused":    *req.Focused,
	})
}

func boolQuery(c *gin.Context, key string) (bool, error) {
	v := c.Query(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, &queryError{key: key, value: v}
	}
	return b, nil
}

type queryError struct {
	key, value string
}

func (e *queryError) Error() string {
	return "invalid " + e.key + ": " + strconv.Quote(e.value)
}
