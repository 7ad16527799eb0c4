package api

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/tripsmith/tripsmith/pkg/blackboard"
	"github.com/tripsmith/tripsmith/pkg/models"
)

// queryBlackboardHandler handles GET /api/v1/blackboard/:namespace.
// Supported query parameters: key_pattern (glob), created_after,
// created_before (RFC3339).
func (s *Server) queryBlackboardHandler(c *echo.Context) error {
	namespace := models.Namespace(c.Param("namespace"))

	filter := blackboard.QueryFilter{
		KeyPattern: c.QueryParam("key_pattern"),
	}
	if v := c.QueryParam("created_after"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid created_after: must be RFC3339")
		}
		filter.CreatedAfter = t
	}
	if v := c.QueryParam("created_before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid created_before: must be RFC3339")
		}
		filter.CreatedBefore = t
	}

	entries, err := s.board.Query(c.Request().Context(), namespace, filter)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, entries)
}

// getBlackboardEntryHandler handles GET /api/v1/blackboard/:namespace/:key.
func (s *Server) getBlackboardEntryHandler(c *echo.Context) error {
	namespace := models.Namespace(c.Param("namespace"))
	key := c.Param("key")
	if key == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "key is required")
	}

	entry, err := s.board.Read(c.Request().Context(), namespace, key)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, entry)
}
