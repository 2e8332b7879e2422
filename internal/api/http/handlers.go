package http

import (
	"net/http"
	"time"

	"github.com/GriffinCanCode/griffin-notebook/internal/domain/registry"
	"github.com/GriffinCanCode/griffin-notebook/internal/infrastructure/logging"
	"github.com/GriffinCanCode/griffin-notebook/internal/infrastructure/monitoring"
	"github.com/gin-gonic/gin"
)

// Handlers serves the control API
type Handlers struct {
	registry  *registry.Manager
	metrics   *monitoring.Metrics
	logger    *logging.Logger
	startTime time.Time
}

// NewHandlers creates handlers backed by a registry
func NewHandlers(reg *registry.Manager, metrics *monitoring.Metrics, log *logging.Logger) *Handlers {
	if log == nil {
		log = logging.NewNop()
	}
	return &Handlers{
		registry:  reg,
		metrics:   metrics,
		logger:    log.Named("api"),
		startTime: time.Now(),
	}
}

// Register mounts every route on r
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/health", h.Health)

	servers := r.Group("/servers")
	servers.GET("", h.ListServers)
	servers.POST("", h.StartServer)
	servers.DELETE("", h.StopServer)
	servers.GET("/output", h.ServerOutput)

	sessions := r.Group("/sessions")
	sessions.GET("", h.ListSessions)
	sessions.POST("", h.OpenSession)
	sessions.GET("/:id", h.GetSession)
	sessions.DELETE("/:id", h.CloseSession)
	sessions.GET("/:id/kernel", h.GetKernel)
	sessions.DELETE("/:id/kernel", h.ShutdownKernel)
	sessions.POST("/:id/focus", h.Focus)

	r.GET("/notebooks", h.FindNotebooks)

	r.GET("/theme", h.GetTheme)
	r.PUT("/theme", h.SetTheme)
}

// Health reports liveness and a few counters
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"uptime":   time.Since(h.startTime).Round(time.Second).String(),
		"servers":  len(h.registry.Servers().List()),
		"sessions": h.registry.Len(),
		"theme":    string(h.registry.Themes().Preference()),
	})
}

func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{
		"success": false,
		"error":   err.Error(),
	})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   msg,
	})
}
