package slack

import (
	"context"
	"fmt"

	"github.com/tripsmith/tripsmith/pkg/events"
	"github.com/tripsmith/tripsmith/pkg/models"
)

// Notifier bridges the event bus to the Slack service: workflow failures
// and SLA escalations to critical/exceeded become operator notifications.
// Warning transitions stay off Slack to keep the channel quiet.
type Notifier struct {
	service *Service
}

// NewNotifier creates a notifier backed by the given service. A nil
// service yields a notifier whose Attach is a no-op.
func NewNotifier(service *Service) *Notifier {
	return &Notifier{service: service}
}

// Attach subscribes the notifier to the bus.
func (n *Notifier) Attach(bus *events.Bus) {
	if n.service == nil {
		return
	}
	bus.Subscribe(events.TopicWorkflowFailed, n.handleWorkflowFailed)
	bus.Subscribe(events.TopicWorkflowSLAStatusChanged, n.handleSLAStatusChanged)
}

func (n *Notifier) handleWorkflowFailed(ctx context.Context, env events.Envelope) error {
	payload, ok := env.Payload.(events.WorkflowFailedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type %T on %s", env.Payload, env.Topic)
	}

	n.service.NotifyWorkflowFailed(ctx, WorkflowFailedInput{
		WorkflowID:     payload.WorkflowID,
		SagaID:         payload.SagaID,
		Error:          payload.Error,
		DurationMS:     payload.DurationMS,
		CompletedSteps: payload.CompletedSteps,
	})
	return nil
}

func (n *Notifier) handleSLAStatusChanged(ctx context.Context, env events.Envelope) error {
	payload, ok := env.Payload.(events.SLAStatusChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type %T on %s", env.Payload, env.Topic)
	}
	if payload.New != models.SLAStatusCritical && payload.New != models.SLAStatusExceeded {
		return nil
	}

	n.service.NotifySLATransition(ctx, SLATransitionInput{
		WorkflowID: payload.WorkflowID,
		SagaID:     payload.SagaID,
		Old:        string(payload.Old),
		New:        string(payload.New),
		DurationMS: payload.DurationMS,
	})
	return nil
}
