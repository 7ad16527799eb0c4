package api

// StartWorkflowRequest is the HTTP request body for POST /api/v1/workflows.
// TemplateName defaults to the configured default template when empty.
type StartWorkflowRequest struct {
	TemplateName string         `json:"template_name,omitempty"`
	SagaID       string         `json:"saga_id"`
	Data         map[string]any `json:"data,omitempty"`
}

// CancelWorkflowRequest is the HTTP request body for
// POST /api/v1/workflows/:workflowID/cancel.
type CancelWorkflowRequest struct {
	Reason string `json:"reason,omitempty"`
}
