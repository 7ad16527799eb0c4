package api

import (
	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"
)

// wsHandler upgrades HTTP connections to WebSocket and delegates to the
// ConnectionManager. Clients subscribe to "workflows", "blackboard", or
// "saga:<id>" channels after connecting.
func (s *Server) wsHandler(c *echo.Context) error {
	if s.connManager == nil {
		return echo.NewHTTPError(503, "WebSocket not available")
	}

	opts := &websocket.AcceptOptions{}
	if len(s.cfg.API.AllowedWSOrigins) > 0 {
		opts.OriginPatterns = s.cfg.API.AllowedWSOrigins
	} else {
		// No allowlist configured: accept any origin. Deployments that
		// front the API with untrusted origins must set allowed_ws_origins.
		opts.InsecureSkipVerify = true
	}

	conn, err := websocket.Accept(c.Response(), c.Request(), opts)
	if err != nil {
		return err
	}

	// HandleConnection blocks until the WebSocket closes.
	s.connManager.HandleConnection(c.Request().Context(), conn)
	return nil
}
