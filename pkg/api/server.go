// Package api exposes the HTTP surface of the orchestrator: workflow
// lifecycle, blackboard inspection, runtime stats, health, and the
// WebSocket event stream.
package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/tripsmith/tripsmith/pkg/blackboard"
	"github.com/tripsmith/tripsmith/pkg/config"
	"github.com/tripsmith/tripsmith/pkg/engine"
	"github.com/tripsmith/tripsmith/pkg/events"
)

// Server is the HTTP API server.
type Server struct {
	cfg         *config.Config
	engine      *engine.Engine
	board       *blackboard.Blackboard
	connManager *events.ConnectionManager

	httpServer *http.Server
}

// NewServer wires the API server against the running engine and board.
// connManager may be nil; /ws then responds 503.
func NewServer(cfg *config.Config, eng *engine.Engine, board *blackboard.Blackboard, connManager *events.ConnectionManager) *Server {
	s := &Server{
		cfg:         cfg,
		engine:      eng,
		board:       board,
		connManager: connManager,
	}

	e := echo.New()
	e.Use(securityHeaders())

	e.GET("/health", s.healthHandler)
	e.GET("/ws", s.wsHandler)

	v1 := e.Group("/api/v1")
	v1.POST("/workflows", s.startWorkflowHandler)
	v1.GET("/workflows", s.listWorkflowsHandler)
	v1.GET("/workflows/:workflowID", s.getWorkflowHandler)
	v1.POST("/workflows/:workflowID/cancel", s.cancelWorkflowHandler)
	v1.GET("/blackboard/:namespace", s.queryBlackboardHandler)
	v1.GET("/blackboard/:namespace/:key", s.getBlackboardEntryHandler)
	v1.GET("/stats", s.statsHandler)

	s.httpServer = &http.Server{
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start serves HTTP on addr, blocking until the server stops.
func (s *Server) Start(addr string) error {
	s.httpServer.Addr = addr
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
