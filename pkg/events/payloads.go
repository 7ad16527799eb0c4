package events

import (
	"github.com/tripsmith/tripsmith/pkg/models"
)

// WorkflowStartedPayload is the payload for workflow-started events.
type WorkflowStartedPayload struct {
	WorkflowID   string `json:"workflow_id"`
	SagaID       string `json:"saga_id"`
	TemplateName string `json:"template_name"`
	StartTime    string `json:"start_time"` // RFC3339Nano
}

// WorkflowStepCompletedPayload is the payload for workflow-step-completed
// events. Result holds the step's declared outputs keyed by output name.
type WorkflowStepCompletedPayload struct {
	WorkflowID string         `json:"workflow_id"`
	SagaID     string         `json:"saga_id"`
	StepID     string         `json:"step_id"`
	Result     map[string]any `json:"result,omitempty"`
}

// WorkflowStepFailedPayload is the payload for workflow-step-failed events.
// Published on every failed attempt, including ones that will be retried.
type WorkflowStepFailedPayload struct {
	WorkflowID string `json:"workflow_id"`
	SagaID     string `json:"saga_id"`
	StepID     string `json:"step_id"`
	Error      string `json:"error"`
	RetryCount int    `json:"retry_count"`
}

// WorkflowCompletedPayload is the payload for workflow-completed events.
type WorkflowCompletedPayload struct {
	WorkflowID     string   `json:"workflow_id"`
	SagaID         string   `json:"saga_id"`
	DurationMS     int64    `json:"duration_ms"`
	CompletedSteps []string `json:"completed_steps"`
}

// WorkflowFailedPayload is the payload for workflow-failed events. Error
// is the first fatal error; CompletedSteps lets the caller decide whether
// to resubmit or surface partial results.
type WorkflowFailedPayload struct {
	WorkflowID     string   `json:"workflow_id"`
	SagaID         string   `json:"saga_id"`
	Error          string   `json:"error"`
	DurationMS     int64    `json:"duration_ms"`
	CompletedSteps []string `json:"completed_steps"`
}

// WorkflowCancelledPayload is the payload for workflow-cancelled events.
type WorkflowCancelledPayload struct {
	WorkflowID string `json:"workflow_id"`
	SagaID     string `json:"saga_id"`
	Reason     string `json:"reason"`
}

// SLAStatusChangedPayload is the payload for workflow-sla-status-changed
// events, published on every SLA classification transition.
type SLAStatusChangedPayload struct {
	WorkflowID string           `json:"workflow_id"`
	SagaID     string           `json:"saga_id"`
	Old        models.SLAStatus `json:"old"`
	New        models.SLAStatus `json:"new"`
	DurationMS int64            `json:"duration_ms"`
}

// WorkflowTimeoutPayload is the payload for workflow-timeout events,
// published when a saga crosses its SLA max_duration. The engine treats
// this as catastrophic: no further retries.
type WorkflowTimeoutPayload struct {
	WorkflowID    string `json:"workflow_id"`
	SagaID        string `json:"saga_id"`
	ElapsedMS     int64  `json:"elapsed_ms"`
	MaxDurationMS int64  `json:"max_duration_ms"`
}

// StateChangedPayload is the payload for state-changed events, published
// on every blackboard mutation. Operation is "write" or "delete"; ETag is
// set for writes only.
type StateChangedPayload struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Operation string `json:"operation"`
	ETag      string `json:"etag,omitempty"`
}

// StateSyncPayload is the payload for state-sync events: the
// strong-consistency notification emitted synchronously before a write
// to a strong namespace returns.
type StateSyncPayload struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	ETag      string `json:"etag"`
	Version   int64  `json:"version"`
}

// StateInvalidatePayload is the payload for inbound state-invalidate
// events. Reason is matched against configured invalidation rules; an
// unmatched reason is a no-op.
type StateInvalidatePayload struct {
	Reason string `json:"reason"`
}

// StageRequestPayload is the payload published to "{target}.request" when
// the engine dispatches a stage or external step. Inputs are the step's
// configured input keys resolved from prior step results; Outputs are the
// result keys the participant must reply under.
type StageRequestPayload struct {
	WorkflowID string         `json:"workflow_id"`
	StepID     string         `json:"step_id"`
	Attempt    int            `json:"attempt"`
	Inputs     map[string]any `json:"inputs,omitempty"`
	Outputs    []string       `json:"outputs,omitempty"`
	StepConfig map[string]any `json:"step_config,omitempty"`
}

// StageCompletedPayload is the payload published to "{target}.completed".
// Outputs must be keyed by the step's declared output names.
type StageCompletedPayload struct {
	WorkflowID string         `json:"workflow_id"`
	StepID     string         `json:"step_id"`
	Attempt    int            `json:"attempt"`
	Outputs    map[string]any `json:"outputs,omitempty"`
}

// StageFailedPayload is the payload published to "{target}.failed".
type StageFailedPayload struct {
	WorkflowID string `json:"workflow_id"`
	StepID     string `json:"step_id"`
	Attempt    int    `json:"attempt"`
	Error      string `json:"error"`
}
