package http

import (
	"net/http"

	"github.com/GriffinCanCode/griffin-notebook/internal/domain/session"
	"github.com/GriffinCanCode/griffin-notebook/internal/shared/id"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GetKernel looks up the kernel of a session. With ?async=true the lookup
// is queued and 202 is returned with the request id.
func (h *Handlers) GetKernel(c *gin.Context) {
	async, err := boolQuery(c, "async")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	sid := id.SessionID(c.Param("id"))

	if async {
		reqID, err := h.registry.KernelIDAsync(sid, h.logResult)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{
			"success":    true,
			"request_id": reqID.String(),
		})
		return
	}

	kernelID, found, err := h.registry.KernelID(c.Request.Context(), sid)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"found":     found,
		"kernel_id": kernelID,
	})
}

// ShutdownKernel stops the kernel of a session. ?async=true queues it.
func (h *Handlers) ShutdownKernel(c *gin.Context) {
	async, err := boolQuery(c, "async")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	sid := id.SessionID(c.Param("id"))

	if async {
		reqID, err := h.registry.ShutdownKernelAsync(sid, h.logResult)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{
			"success":    true,
			"request_id": reqID.String(),
		})
		return
	}

	stopped, err := h.registry.ShutdownKernel(c.Request.Context(), sid)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stopped": stopped,
	})
}

// logResult records the outcome of a queued kernel operation. Failures
// already reach observers as session-error events.
func (h *Handlers) logResult(r session.Result) {
	h.logger.Debug("Kernel operation finished",
		zap.String("request_id", r.RequestID.String()),
		zap.String("session_id", r.SessionID.String()),
		zap.String("op", string(r.Op)),
		zap.Bool("found", r.Found),
		zap.String("kernel_id", r.KernelID),
		zap.Error(r.Err))
}
