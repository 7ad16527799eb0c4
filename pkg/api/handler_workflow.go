package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/tripsmith/tripsmith/pkg/engine"
)

// startWorkflowHandler handles POST /api/v1/workflows. The workflow runs
// asynchronously; the 202 response carries the ids to track it by.
func (s *Server) startWorkflowHandler(c *echo.Context) error {
	var req StartWorkflowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.SagaID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "saga_id is required")
	}

	result, err := s.engine.StartWorkflow(c.Request().Context(), engine.StartInput{
		TemplateName: req.TemplateName,
		SagaID:       req.SagaID,
		Data:         req.Data,
	})
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusAccepted, result)
}

// listWorkflowsHandler handles GET /api/v1/workflows.
func (s *Server) listWorkflowsHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.engine.ListWorkflows())
}

// getWorkflowHandler handles GET /api/v1/workflows/:workflowID.
func (s *Server) getWorkflowHandler(c *echo.Context) error {
	workflowID := c.Param("workflowID")
	if workflowID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "workflow id is required")
	}

	snapshot, err := s.engine.WorkflowStatus(workflowID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, snapshot)
}

// cancelWorkflowHandler handles POST /api/v1/workflows/:workflowID/cancel.
func (s *Server) cancelWorkflowHandler(c *echo.Context) error {
	workflowID := c.Param("workflowID")
	if workflowID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "workflow id is required")
	}

	var req CancelWorkflowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	reason := req.Reason
	if reason == "" {
		reason = "cancelled via API"
	}

	if err := s.engine.CancelWorkflow(c.Request().Context(), workflowID, reason); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, &CancelResponse{
		WorkflowID: workflowID,
		Message:    "workflow cancellation requested",
	})
}
