package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// workflowTopics lists the lifecycle topics forwarded to WebSocket clients.
var workflowTopics = []string{
	TopicWorkflowStarted,
	TopicWorkflowStepCompleted,
	TopicWorkflowStepFailed,
	TopicWorkflowCompleted,
	TopicWorkflowFailed,
	TopicWorkflowCancelled,
	TopicWorkflowSLAStatusChanged,
	TopicWorkflowTimeout,
}

// stateTopics lists the blackboard topics forwarded to WebSocket clients.
var stateTopics = []string{
	TopicStateChanged,
	TopicStateSync,
}

// StreamForwarder bridges bus topics onto WebSocket channels. Workflow
// events go to the saga's channel and the global workflows channel;
// blackboard events go to the global blackboard channel.
type StreamForwarder struct {
	manager *ConnectionManager
	logger  *slog.Logger
}

// NewStreamForwarder creates a forwarder targeting the given manager.
func NewStreamForwarder(manager *ConnectionManager) *StreamForwarder {
	return &StreamForwarder{
		manager: manager,
		logger:  slog.Default().With("component", "stream-forwarder"),
	}
}

// Attach subscribes the forwarder to every forwarded topic on the bus.
func (f *StreamForwarder) Attach(bus *Bus) {
	for _, topic := range workflowTopics {
		bus.Subscribe(topic, f.forwardWorkflow)
	}
	for _, topic := range stateTopics {
		bus.Subscribe(topic, f.forwardState)
	}
}

// forwardWorkflow broadcasts a workflow lifecycle envelope.
func (f *StreamForwarder) forwardWorkflow(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope for topic %s: %w", env.Topic, err)
	}
	if env.SagaID != "" {
		f.manager.Broadcast(SagaChannel(env.SagaID), data)
	}
	f.manager.Broadcast(GlobalWorkflowsChannel, data)
	return nil
}

// forwardState broadcasts a blackboard envelope.
func (f *StreamForwarder) forwardState(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope for topic %s: %w", env.Topic, err)
	}
	f.manager.Broadcast(GlobalBlackboardChannel, data)
	return nil
}
