package slack

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tripsmith/tripsmith/pkg/events"
	"github.com/tripsmith/tripsmith/pkg/models"
)

func TestNotifier_NilServiceAttachIsNoOp(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	n := NewNotifier(nil)
	n.Attach(bus)

	publisher := events.NewPublisher(bus)
	require.NoError(t, publisher.PublishWorkflowFailed(context.Background(), "saga-1", "", events.WorkflowFailedPayload{
		WorkflowID: "wf-1",
		SagaID:     "saga-1",
		Error:      "boom",
	}))
}

func TestNotifier_PostsOnWorkflowFailed(t *testing.T) {
	svc, mock := newMockService(t)
	bus := events.NewBus()
	defer bus.Close()

	NewNotifier(svc).Attach(bus)
	publisher := events.NewPublisher(bus)

	require.NoError(t, publisher.PublishWorkflowFailed(context.Background(), "saga-1", "", events.WorkflowFailedPayload{
		WorkflowID:     "wf-1",
		SagaID:         "saga-1",
		Error:          "retries exhausted",
		CompletedSteps: []string{"initialize"},
	}))

	require.Eventually(t, func() bool {
		return mock.postCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNotifier_FiltersSLATransitions(t *testing.T) {
	svc, mock := newMockService(t)
	bus := events.NewBus()
	defer bus.Close()

	NewNotifier(svc).Attach(bus)
	publisher := events.NewPublisher(bus)

	// Warning transitions stay off Slack.
	require.NoError(t, publisher.PublishSLAStatusChanged(context.Background(), "saga-1", "", events.SLAStatusChangedPayload{
		WorkflowID: "wf-1",
		SagaID:     "saga-1",
		Old:        models.SLAStatusOK,
		New:        models.SLAStatusWarning,
	}))
	require.NoError(t, publisher.PublishSLAStatusChanged(context.Background(), "saga-1", "", events.SLAStatusChangedPayload{
		WorkflowID: "wf-1",
		SagaID:     "saga-1",
		Old:        models.SLAStatusWarning,
		New:        models.SLAStatusCritical,
	}))

	require.Eventually(t, func() bool {
		return mock.postCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
	// Give the warning event time to (wrongly) post if filtering broke.
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, mock.postCount())
}
