package http

import (
	"net/http"

	"github.com/GriffinCanCode/griffin-notebook/internal/domain/server"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StartServerRequest starts a notebook server. DarkTheme, when set, wins
// over Theme; both fall back to the configured preference.
type StartServerRequest struct {
	RootDir   string `json:"root_dir" binding:"required"`
	DarkTheme *bool  `json:"dark_theme"`
	Theme     string `json:"theme"`
}

func (r StartServerRequest) theme() string {
	if r.DarkTheme == nil {
		return r.Theme
	}
	if *r.DarkTheme {
		return "dark"
	}
	return "light"
}

// ListServers lists running notebook servers
func (h *Handlers) ListServers(c *gin.Context) {
	list := h.registry.Servers().List()
	infos := make([]server.Info, 0, len(list))
	for _, s := range list {
		infos = append(infos, s.Info())
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"servers": infos,
	})
}

// StartServer gets or starts the server for a root directory
func (h *Handlers) StartServer(c *gin.Context) {
	var req StartServerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	srv, err := h.registry.StartServer(c.Request.Context(), req.RootDir, req.theme())
	if err != nil {
		h.logger.Warn("Failed to start notebook server", zap.String("root_dir", req.RootDir), zap.Error(err))
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"server":  srv.Info(),
	})
}

// StopServer shuts down the server for ?root_dir=
func (h *Handlers) StopServer(c *gin.Context) {
	root := c.Query("root_dir")
	if root == "" {
		badRequest(c, "root_dir is required")
		return
	}

	if err := h.registry.StopServer(root); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"root_dir": root,
	})
}

// ServerOutput returns the recent output of the server for ?root_dir=
func (h *Handlers) ServerOutput(c *gin.Context) {
	root := c.Query("root_dir")
	if root == "" {
		badRequest(c, "root_dir is required")
		return
	}

	srv, ok := h.registry.Servers().Get(root)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "no notebook server for " + root,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"root_dir": srv.RootDir,
		"output":   srv.Output(),
	})
}
