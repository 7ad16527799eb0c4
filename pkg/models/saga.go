package models

import (
	"time"
)

// SagaStatus is the lifecycle state of a running workflow instance.
type SagaStatus string

const (
	SagaStatusRunning   SagaStatus = "running"
	SagaStatusCompleted SagaStatus = "completed"
	SagaStatusFailed    SagaStatus = "failed"
	SagaStatusCancelled SagaStatus = "cancelled"
)

// Terminal reports whether the status is absorbing: a saga in a terminal
// state never transitions again.
func (s SagaStatus) Terminal() bool {
	switch s {
	case SagaStatusCompleted, SagaStatusFailed, SagaStatusCancelled:
		return true
	default:
		return false
	}
}

// SLAStatus classifies a running saga's elapsed time against its template
// thresholds.
type SLAStatus string

const (
	SLAStatusOK       SLAStatus = "ok"
	SLAStatusWarning  SLAStatus = "warning"
	SLAStatusCritical SLAStatus = "critical"
	SLAStatusExceeded SLAStatus = "exceeded"
)

// StepKind discriminates how a template step is dispatched.
type StepKind string

const (
	// StepKindSystem runs an in-process handler registered with the engine.
	StepKindSystem StepKind = "system"
	// StepKindStage publishes a request envelope to a pipeline stage.
	StepKindStage StepKind = "stage"
	// StepKindExternal publishes a request envelope to a named external
	// service participant. Dispatch mechanics match StepKindStage.
	StepKindExternal StepKind = "external"
)

// IsValid checks if the step kind is valid
func (k StepKind) IsValid() bool {
	switch k {
	case StepKindSystem, StepKindStage, StepKindExternal:
		return true
	default:
		return false
	}
}

// StepError records one failure of one step attempt. The saga's error list
// is append-only.
type StepError struct {
	Step       string    `json:"step"`
	Message    string    `json:"message"`
	RetryCount int       `json:"retry_count"`
	Timestamp  time.Time `json:"timestamp"`
}

// SagaSnapshot is a point-in-time copy of a saga's state, safe to hand to
// callers. Collections are copies, never views into live engine state.
type SagaSnapshot struct {
	WorkflowID     string         `json:"workflow_id"`
	SagaID         string         `json:"saga_id"`
	TemplateName   string         `json:"template_name"`
	Status         SagaStatus     `json:"status"`
	SLAStatus      SLAStatus      `json:"sla_status"`
	StartTime      time.Time      `json:"start_time"`
	EndTime        *time.Time     `json:"end_time,omitempty"`
	CurrentStep    string         `json:"current_step,omitempty"`
	CompletedSteps []string       `json:"completed_steps"`
	FailedSteps    []string       `json:"failed_steps,omitempty"`
	RetryCount     int            `json:"retry_count"`
	StepResults    map[string]any `json:"step_results,omitempty"`
	Errors         []StepError    `json:"errors,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
	CorrelationID  string         `json:"correlation_id"`
}

// Duration returns elapsed wall time: terminal sagas measure start to end,
// running sagas measure start to now.
func (s *SagaSnapshot) Duration() time.Duration {
	if s.EndTime != nil {
		return s.EndTime.Sub(s.StartTime)
	}
	return time.Since(s.StartTime)
}
