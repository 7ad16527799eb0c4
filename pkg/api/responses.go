package api

import (
	"github.com/tripsmith/tripsmith/pkg/blackboard"
	"github.com/tripsmith/tripsmith/pkg/engine"
)

// CancelResponse is returned by POST /api/v1/workflows/:workflowID/cancel.
type CancelResponse struct {
	WorkflowID string `json:"workflow_id"`
	Message    string `json:"message"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status    string           `json:"status"`
	Version   string           `json:"version"`
	Workflows engine.Occupancy `json:"workflows"`
}

// StatsResponse is returned by GET /api/v1/stats.
type StatsResponse struct {
	Blackboard blackboard.StatsSnapshot `json:"blackboard"`
	Workflows  engine.Occupancy         `json:"workflows"`
	Namespaces map[string]int           `json:"namespaces"`
	WSClients  int                      `json:"ws_clients"`
}
