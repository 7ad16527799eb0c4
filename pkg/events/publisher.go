package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Publisher publishes the core workflow and state events onto the bus.
//
// Each public method accepts a specific typed payload struct — see
// payloads.go. The publisher stamps correlation and span ids; topic,
// sequence, and timestamp are stamped by the bus.
type Publisher struct {
	bus *Bus
}

// NewPublisher creates a Publisher backed by the given bus.
func NewPublisher(bus *Bus) *Publisher {
	return &Publisher{bus: bus}
}

// --- Workflow lifecycle ---

// PublishWorkflowStarted publishes a workflow-started event.
func (p *Publisher) PublishWorkflowStarted(ctx context.Context, sagaID, correlationID string, payload WorkflowStartedPayload) error {
	return p.bus.Publish(TopicWorkflowStarted, p.envelope(sagaID, correlationID, payload))
}

// PublishWorkflowStepCompleted publishes a workflow-step-completed event.
func (p *Publisher) PublishWorkflowStepCompleted(ctx context.Context, sagaID, correlationID string, payload WorkflowStepCompletedPayload) error {
	return p.bus.Publish(TopicWorkflowStepCompleted, p.envelope(sagaID, correlationID, payload))
}

// PublishWorkflowStepFailed publishes a workflow-step-failed event.
// Fired on every failed attempt, including ones the engine will retry.
func (p *Publisher) PublishWorkflowStepFailed(ctx context.Context, sagaID, correlationID string, payload WorkflowStepFailedPayload) error {
	return p.bus.Publish(TopicWorkflowStepFailed, p.envelope(sagaID, correlationID, payload))
}

// PublishWorkflowCompleted publishes a workflow-completed event.
func (p *Publisher) PublishWorkflowCompleted(ctx context.Context, sagaID, correlationID string, payload WorkflowCompletedPayload) error {
	return p.bus.Publish(TopicWorkflowCompleted, p.envelope(sagaID, correlationID, payload))
}

// PublishWorkflowFailed publishes a workflow-failed event.
func (p *Publisher) PublishWorkflowFailed(ctx context.Context, sagaID, correlationID string, payload WorkflowFailedPayload) error {
	return p.bus.Publish(TopicWorkflowFailed, p.envelope(sagaID, correlationID, payload))
}

// PublishWorkflowCancelled publishes a workflow-cancelled event.
func (p *Publisher) PublishWorkflowCancelled(ctx context.Context, sagaID, correlationID string, payload WorkflowCancelledPayload) error {
	return p.bus.Publish(TopicWorkflowCancelled, p.envelope(sagaID, correlationID, payload))
}

// PublishSLAStatusChanged publishes a workflow-sla-status-changed event.
func (p *Publisher) PublishSLAStatusChanged(ctx context.Context, sagaID, correlationID string, payload SLAStatusChangedPayload) error {
	return p.bus.Publish(TopicWorkflowSLAStatusChanged, p.envelope(sagaID, correlationID, payload))
}

// PublishWorkflowTimeout publishes a workflow-timeout event.
func (p *Publisher) PublishWorkflowTimeout(ctx context.Context, sagaID, correlationID string, payload WorkflowTimeoutPayload) error {
	return p.bus.Publish(TopicWorkflowTimeout, p.envelope(sagaID, correlationID, payload))
}

// --- Blackboard state ---

// PublishStateChanged publishes a state-changed event. Asynchronous;
// used by every blackboard mutation.
func (p *Publisher) PublishStateChanged(ctx context.Context, payload StateChangedPayload) error {
	return p.bus.Publish(TopicStateChanged, p.envelope("", "", payload))
}

// PublishStateSync publishes the strong-consistency notification inline:
// all current state-sync subscribers have observed the event when this
// returns.
func (p *Publisher) PublishStateSync(ctx context.Context, payload StateSyncPayload) error {
	return p.bus.PublishSync(TopicStateSync, p.envelope("", "", payload))
}

// PublishStateInvalidate publishes a state-invalidate event carrying an
// invalidation reason for the blackboard's rule matching.
func (p *Publisher) PublishStateInvalidate(ctx context.Context, payload StateInvalidatePayload) error {
	return p.bus.Publish(TopicStateInvalidate, p.envelope("", "", payload))
}

// --- Stage dispatch ---

// PublishStageRequest publishes a dispatch request to the target's
// request topic.
func (p *Publisher) PublishStageRequest(ctx context.Context, target, sagaID, correlationID string, payload StageRequestPayload) error {
	return p.bus.Publish(RequestTopic(target), p.envelope(sagaID, correlationID, payload))
}

// PublishStageCompleted publishes a participant's successful result to
// the target's completion topic.
func (p *Publisher) PublishStageCompleted(ctx context.Context, target, sagaID, correlationID string, payload StageCompletedPayload) error {
	return p.bus.Publish(CompletionTopic(target), p.envelope(sagaID, correlationID, payload))
}

// PublishStageFailed publishes a participant's failure to the target's
// failure topic.
func (p *Publisher) PublishStageFailed(ctx context.Context, target, sagaID, correlationID string, payload StageFailedPayload) error {
	return p.bus.Publish(FailureTopic(target), p.envelope(sagaID, correlationID, payload))
}

// envelope assembles the un-stamped envelope for a payload. A fresh span
// id is minted per publish.
func (p *Publisher) envelope(sagaID, correlationID string, payload any) Envelope {
	return Envelope{
		SagaID:        sagaID,
		CorrelationID: correlationID,
		SpanID:        uuid.NewString(),
		Timestamp:     time.Now(),
		Payload:       payload,
	}
}
