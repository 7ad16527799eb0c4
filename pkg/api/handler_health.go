package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/tripsmith/tripsmith/pkg/version"
)

// healthHandler handles GET /health. Minimal and unauthenticated: the
// process is healthy as long as it can answer, and occupancy tells the
// operator how loaded the engine is.
func (s *Server) healthHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, &HealthResponse{
		Status:    "healthy",
		Version:   version.GitCommit,
		Workflows: s.engine.Occupancy(),
	})
}
