package stages

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripsmith/tripsmith/pkg/blackboard"
	"github.com/tripsmith/tripsmith/pkg/config"
	"github.com/tripsmith/tripsmith/pkg/events"
)

func newHarnessFixture(t *testing.T) (*events.Bus, *blackboard.Blackboard, *events.Publisher) {
	t.Helper()
	bus := events.NewBus()
	t.Cleanup(bus.Close)
	board, err := blackboard.New(config.DefaultBlackboardConfig(), bus)
	require.NoError(t, err)
	return bus, board, events.NewPublisher(bus)
}

func TestParticipant_RepliesWithKeyedOutputs(t *testing.T) {
	bus, board, publisher := newHarnessFixture(t)

	var got *Request
	p := NewParticipant("echo", board, func(_ context.Context, req *Request) (any, error) {
		got = req
		return "result-value", nil
	})
	p.Attach(bus)
	defer p.Detach(bus)

	completed := make(chan events.Envelope, 1)
	bus.Subscribe(events.CompletionTopic("echo"), func(_ context.Context, env events.Envelope) error {
		completed <- env
		return nil
	})

	err := publisher.PublishStageRequest(context.Background(), "echo", "saga-1", "corr-1", events.StageRequestPayload{
		WorkflowID: "wf-1",
		StepID:     "step-1",
		Attempt:    2,
		Inputs:     map[string]any{"trip-request": "in"},
		Outputs:    []string{"echo-result"},
		StepConfig: map[string]any{"knob": 1},
	})
	require.NoError(t, err)

	var env events.Envelope
	select {
	case env = <-completed:
	case <-time.After(2 * time.Second):
		t.Fatal("no completion published")
	}

	payload := env.Payload.(events.StageCompletedPayload)
	assert.Equal(t, "wf-1", payload.WorkflowID)
	assert.Equal(t, "step-1", payload.StepID)
	assert.Equal(t, 2, payload.Attempt)
	assert.Equal(t, map[string]any{"echo-result": "result-value"}, payload.Outputs)
	assert.Equal(t, "corr-1", env.CorrelationID)

	require.NotNil(t, got)
	assert.Equal(t, "saga-1", got.SagaID)
	assert.Equal(t, 2, got.Attempt)
	assert.Equal(t, map[string]any{"knob": 1}, got.Config)
	assert.Same(t, board, got.Board)
}

func TestParticipant_PublishesFailure(t *testing.T) {
	bus, board, publisher := newHarnessFixture(t)

	p := NewParticipant("broken", board, func(context.Context, *Request) (any, error) {
		return nil, errors.New("inventory provider down")
	})
	p.Attach(bus)
	defer p.Detach(bus)

	failed := make(chan events.Envelope, 1)
	bus.Subscribe(events.FailureTopic("broken"), func(_ context.Context, env events.Envelope) error {
		failed <- env
		return nil
	})

	err := publisher.PublishStageRequest(context.Background(), "broken", "saga-1", "corr-1", events.StageRequestPayload{
		WorkflowID: "wf-1",
		StepID:     "step-1",
		Attempt:    1,
	})
	require.NoError(t, err)

	select {
	case env := <-failed:
		payload := env.Payload.(events.StageFailedPayload)
		assert.Equal(t, "inventory provider down", payload.Error)
		assert.Equal(t, 1, payload.Attempt)
	case <-time.After(2 * time.Second):
		t.Fatal("no failure published")
	}
}

func TestParticipant_DetachStopsHandling(t *testing.T) {
	bus, board, publisher := newHarnessFixture(t)

	calls := make(chan struct{}, 4)
	p := NewParticipant("once", board, func(context.Context, *Request) (any, error) {
		calls <- struct{}{}
		return "ok", nil
	})
	p.Attach(bus)

	require.NoError(t, publisher.PublishStageRequest(context.Background(), "once", "saga-1", "", events.StageRequestPayload{WorkflowID: "wf-1", StepID: "s", Attempt: 1}))
	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never ran")
	}

	p.Detach(bus)
	require.NoError(t, publisher.PublishStageRequest(context.Background(), "once", "saga-1", "", events.StageRequestPayload{WorkflowID: "wf-1", StepID: "s", Attempt: 2}))
	select {
	case <-calls:
		t.Fatal("handler ran after Detach")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSet_CoversBuiltinTargets(t *testing.T) {
	_, board, _ := newHarnessFixture(t)
	set := NewSet(&config.StagesConfig{Enabled: true, AffiliateLatency: 0}, board)

	names := make(map[string]bool)
	for _, p := range set.Participants() {
		names[p.Name()] = true
	}
	for _, target := range []string{"candidate", "validation", "ranking", "selection", "enrichment", "output", "affiliate-service"} {
		assert.True(t, names[target], "missing participant for %s", target)
	}
}
