package engine

import "errors"

var (
	// ErrAtCapacity indicates admission was refused because the
	// concurrent-workflow cap is already reached.
	ErrAtCapacity = errors.New("workflow capacity exceeded")

	// ErrSagaConflict indicates a non-terminal saga already exists for
	// the requested saga id.
	ErrSagaConflict = errors.New("saga already active")

	// ErrSagaIDRequired indicates a start request without a saga id.
	ErrSagaIDRequired = errors.New("saga_id is required")

	// ErrWorkflowNotFound indicates an unknown workflow id.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrEngineStopped indicates an operation against an engine that was
	// never started or has shut down.
	ErrEngineStopped = errors.New("engine not running")

	// errStepTimeout marks a step attempt that exceeded its budget. Its
	// text doubles as the failure reason consulted by compensation
	// condition matching.
	errStepTimeout = errors.New("timeout")

	// errWorkflowTimeout marks a saga that crossed its SLA max duration.
	errWorkflowTimeout = errors.New("workflow timeout")
)
