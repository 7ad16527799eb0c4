// Package events provides the in-process event bus that connects the
// workflow engine, the blackboard, and the stage participants, plus
// real-time delivery of core events to WebSocket clients.
//
// ════════════════════════════════════════════════════════════════
// Delivery model
// ════════════════════════════════════════════════════════════════
//
// Publish(topic, envelope) returns once the envelope is enqueued on its
// delivery lane; handlers run asynchronously. Lanes are keyed by
// (topic, saga_id), each drained by a single goroutine, which gives the
// ordering guarantee subscribers rely on:
//
//	for one saga_id and one topic, every subscriber observes envelopes
//	in publish order. No ordering across topics or across sagas.
//
// For each envelope, the handlers of its topic run sequentially in
// registration order. A handler error or panic is logged and absorbed —
// it never blocks the remaining handlers and never reaches the
// publisher. There is no dead-letter queue; recovery happens at the
// workflow layer.
//
// PublishSync delivers inline, before returning, to all current
// subscribers. It exists for the blackboard's strong-consistency write
// notifications, which must be observable before the write completes.
// Sync envelopes bypass the lanes, so mixing Publish and PublishSync on
// the same topic forfeits FIFO — the runtime reserves the "state-sync"
// topic for sync delivery.
//
// Sequence numbers are assigned at publish time and are monotonic per
// saga_id across all topics. Forget(saga_id) releases the counter once
// a saga has been reaped.
//
// ════════════════════════════════════════════════════════════════
package events

import (
	"time"
)

// Core workflow lifecycle topics published by the engine.
const (
	TopicWorkflowStarted          = "workflow-started"
	TopicWorkflowStepCompleted    = "workflow-step-completed"
	TopicWorkflowStepFailed       = "workflow-step-failed"
	TopicWorkflowCompleted        = "workflow-completed"
	TopicWorkflowFailed           = "workflow-failed"
	TopicWorkflowCancelled        = "workflow-cancelled"
	TopicWorkflowSLAStatusChanged = "workflow-sla-status-changed"
	TopicWorkflowTimeout          = "workflow-timeout"
)

// Blackboard topics.
const (
	// TopicStateChanged announces every blackboard mutation
	// (operation "write" or "delete").
	TopicStateChanged = "state-changed"
	// TopicStateSync is the strong-consistency write notification,
	// delivered synchronously before Write returns.
	TopicStateSync = "state-sync"
	// TopicStateInvalidate is consumed by the blackboard: the payload's
	// reason string is matched against configured invalidation rules.
	TopicStateInvalidate = "state-invalidate"
)

// Blackboard mutation operations carried by StateChangedPayload.
const (
	StateOperationWrite  = "write"
	StateOperationDelete = "delete"
)

// RequestTopic returns the topic a stage or external participant consumes
// dispatch requests from. Format: "{target}.request".
func RequestTopic(target string) string {
	return target + ".request"
}

// CompletionTopic returns the topic a participant publishes successful
// results to. Format: "{target}.completed".
func CompletionTopic(target string) string {
	return target + ".completed"
}

// FailureTopic returns the topic a participant publishes failures to.
// Format: "{target}.failed".
func FailureTopic(target string) string {
	return target + ".failed"
}

// Envelope is the unit of delivery on the bus. Topic, Sequence, and
// Timestamp are stamped by the bus at publish time.
type Envelope struct {
	Topic         string    `json:"topic"`
	SagaID        string    `json:"saga_id,omitempty"`
	Sequence      uint64    `json:"sequence"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	SpanID        string    `json:"span_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	Payload       any       `json:"payload,omitempty"`
}

// GlobalWorkflowsChannel is the WebSocket channel carrying every workflow
// lifecycle event. The dashboard's overview page subscribes to this.
const GlobalWorkflowsChannel = "workflows"

// GlobalBlackboardChannel is the WebSocket channel carrying blackboard
// state-changed and state-sync events.
const GlobalBlackboardChannel = "blackboard"

// SagaChannel returns the channel name for a specific saga's events.
// Format: "saga:{saga_id}"
func SagaChannel(sagaID string) string {
	return "saga:" + sagaID
}

// ClientMessage is the JSON structure for client → server WebSocket messages.
type ClientMessage struct {
	Action  string `json:"action"`            // "subscribe", "unsubscribe", "ping"
	Channel string `json:"channel,omitempty"` // channel name (e.g., "saga:abc-123")
}
