package rest

import (
	"context"
	"errors"
	"net/http"

	"furusatoReco/business/ranking"
	"furusatoReco/domain"
	"furusatoReco/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ResponseError represent the response error struct
type ResponseError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// retryAfterSeconds is what callers are told to wait when an upstream
// (catalog or scorer) is unavailable.
const retryAfterSeconds = "30"

// respondError maps a service error onto a status code and writes it.
func respondError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidUserContext):
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error(), Code: "invalid_user_context"})
	case errors.Is(err, ranking.ErrUnknownModule):
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error(), Code: "unknown_module"})
	case errors.Is(err, ranking.ErrRequiredModule):
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error(), Code: "required_module"})
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		c.Response().Header().Set("Retry-After", retryAfterSeconds)
		return c.JSON(http.StatusServiceUnavailable, ResponseError{Message: "upstream unavailable, retry later", Code: "upstream_unavailable"})
	case errors.Is(err, context.DeadlineExceeded):
		c.Response().Header().Set("Retry-After", retryAfterSeconds)
		return c.JSON(http.StatusServiceUnavailable, ResponseError{Message: "request timed out", Code: "timeout"})
	case errors.Is(err, context.Canceled):
		// client went away; nobody reads this
		return c.NoContent(499)
	default:
		logger.Error("request failed", "path", c.Path(), "error", err)
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: "internal server error", Code: "internal"})
	}
}
