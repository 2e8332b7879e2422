package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/GriffinCanCode/griffin-notebook/internal/domain/registry"
	"github.com/GriffinCanCode/griffin-notebook/internal/domain/server"
	"github.com/GriffinCanCode/griffin-notebook/internal/domain/session"
	"github.com/GriffinCanCode/griffin-notebook/internal/shared/paths"
)

// statusFor maps a domain error to a response status
func statusFor(err error) int {
	var (
		mappingErr     *paths.MappingError
		startErr       *server.StartError
		unreachableErr *session.ServerUnreachableError
		serverErr      *session.ServerError
		shutdownErr    *session.KernelShutdownError
	)

	switch {
	case errors.As(err, &mappingErr), errors.Is(err, registry.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, registry.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNoServer):
		return http.StatusConflict
	case errors.Is(err, registry.ErrTooManySessions), errors.Is(err, session.ErrQueueFull):
		return http.StatusTooManyRequests
	case errors.As(err, &startErr):
		if startErr.Reason == server.ReasonRootDir {
			return http.StatusBadRequest
		}
		return http.StatusServiceUnavailable
	case errors.As(err, &unreachableErr), errors.As(err, &serverErr), errors.As(err, &shutdownErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, session.ErrDispatcherClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
