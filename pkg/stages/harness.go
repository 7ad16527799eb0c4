// Package stages implements the pipeline participants of the travel
// planner: candidate generation, validation, ranking, selection,
// enrichment, and output packaging, plus the simulated external
// affiliate service.
//
// Every participant speaks the same envelope contract. It consumes
// dispatch requests from "{name}.request", replies on "{name}.completed"
// with a payload keyed by the step's declared outputs, or on
// "{name}.failed" with the error. Participants may read and write the
// blackboard directly; the step timeout owned by the engine is the only
// ceiling on their work.
package stages

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tripsmith/tripsmith/pkg/blackboard"
	"github.com/tripsmith/tripsmith/pkg/events"
)

// Request is one dispatched step as seen by a participant handler.
type Request struct {
	SagaID        string
	WorkflowID    string
	StepID        string
	Attempt       int
	CorrelationID string

	// Inputs holds prior step results keyed by output name.
	Inputs map[string]any
	// Config holds the step's opaque settings from the template.
	Config map[string]any

	// Board is the shared blackboard.
	Board *blackboard.Blackboard
}

// HandlerFunc processes one request and returns the participant's result
// payload. The harness keys it under every output name the step declares.
type HandlerFunc func(ctx context.Context, req *Request) (any, error)

// Participant binds a named handler to the stage topic triple.
type Participant struct {
	name      string
	handler   HandlerFunc
	publisher *events.Publisher
	board     *blackboard.Blackboard
	logger    *slog.Logger
	subID     int
}

// NewParticipant creates a participant for the given target name. It is
// inert until Attach.
func NewParticipant(name string, board *blackboard.Blackboard, handler HandlerFunc) *Participant {
	return &Participant{
		name:    name,
		handler: handler,
		board:   board,
		logger:  slog.Default().With("stage", name),
	}
}

// Name returns the participant's target name.
func (p *Participant) Name() string {
	return p.name
}

// Attach subscribes the participant to its request topic.
func (p *Participant) Attach(bus *events.Bus) {
	p.publisher = events.NewPublisher(bus)
	p.subID = bus.Subscribe(events.RequestTopic(p.name), p.handleRequest)
}

// Detach removes the request subscription.
func (p *Participant) Detach(bus *events.Bus) {
	bus.Unsubscribe(p.subID)
}

// handleRequest runs the handler and publishes the paired completion or
// failure. It executes on the request lane's drain goroutine: requests of
// one saga to this stage are processed in dispatch order, while distinct
// sagas proceed in parallel on their own lanes.
func (p *Participant) handleRequest(ctx context.Context, env events.Envelope) error {
	payload, ok := env.Payload.(events.StageRequestPayload)
	if !ok {
		return fmt.Errorf("unexpected request payload type %T on %s", env.Payload, env.Topic)
	}

	req := &Request{
		SagaID:        env.SagaID,
		WorkflowID:    payload.WorkflowID,
		StepID:        payload.StepID,
		Attempt:       payload.Attempt,
		CorrelationID: env.CorrelationID,
		Inputs:        payload.Inputs,
		Config:        payload.StepConfig,
		Board:         p.board,
	}

	result, err := p.handler(ctx, req)
	if err != nil {
		p.logger.Warn("Stage request failed",
			"saga_id", req.SagaID,
			"step_id", req.StepID,
			"attempt", req.Attempt,
			"error", err)
		return p.publisher.PublishStageFailed(ctx, p.name, env.SagaID, env.CorrelationID, events.StageFailedPayload{
			WorkflowID: payload.WorkflowID,
			StepID:     payload.StepID,
			Attempt:    payload.Attempt,
			Error:      err.Error(),
		})
	}

	outputs := make(map[string]any, len(payload.Outputs))
	for _, key := range payload.Outputs {
		outputs[key] = result
	}
	p.logger.Debug("Stage request completed",
		"saga_id", req.SagaID,
		"step_id", req.StepID,
		"attempt", req.Attempt)
	return p.publisher.PublishStageCompleted(ctx, p.name, env.SagaID, env.CorrelationID, events.StageCompletedPayload{
		WorkflowID: payload.WorkflowID,
		StepID:     payload.StepID,
		Attempt:    payload.Attempt,
		Outputs:    outputs,
	})
}
