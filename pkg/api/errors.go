package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/tripsmith/tripsmith/pkg/blackboard"
	"github.com/tripsmith/tripsmith/pkg/config"
	"github.com/tripsmith/tripsmith/pkg/engine"
)

// mapServiceError maps engine, config, and blackboard errors to HTTP
// error responses.
func mapServiceError(err error) *echo.HTTPError {
	var validErr *config.ValidationError
	if errors.As(err, &validErr) {
		return echo.NewHTTPError(http.StatusBadRequest, validErr.Error())
	}
	if errors.Is(err, engine.ErrSagaIDRequired) || errors.Is(err, config.ErrTemplateNotFound) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if errors.Is(err, engine.ErrAtCapacity) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "workflow capacity exceeded, retry later")
	}
	if errors.Is(err, engine.ErrSagaConflict) {
		return echo.NewHTTPError(http.StatusConflict, "a workflow is already active for this saga id")
	}
	if errors.Is(err, engine.ErrWorkflowNotFound) || errors.Is(err, blackboard.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "resource not found")
	}
	if errors.Is(err, blackboard.ErrUnknownNamespace) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if errors.Is(err, blackboard.ErrInvalidPattern) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if errors.Is(err, engine.ErrEngineStopped) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "engine is not running")
	}

	// Unexpected error
	slog.Error("Unexpected service error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
