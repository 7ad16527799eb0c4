package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/tripsmith/tripsmith/pkg/models"
)

// statsHandler handles GET /api/v1/stats: blackboard counters, per
// namespace entry counts, engine occupancy, and connected WS clients.
func (s *Server) statsHandler(c *echo.Context) error {
	namespaces := make(map[string]int, len(models.AllNamespaces()))
	for _, ns := range models.AllNamespaces() {
		n, err := s.board.Len(ns)
		if err != nil {
			return mapServiceError(err)
		}
		namespaces[string(ns)] = n
	}

	resp := &StatsResponse{
		Blackboard: s.board.Stats(),
		Workflows:  s.engine.Occupancy(),
		Namespaces: namespaces,
	}
	if s.connManager != nil {
		resp.WSClients = s.connManager.ActiveConnections()
	}
	return c.JSON(http.StatusOK, resp)
}
