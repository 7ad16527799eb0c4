// Package engine drives sagas through their workflow templates: it
// admits start requests under a hard concurrency cap, runs one executor
// goroutine per saga, dispatches steps by kind, and applies the
// template's retry, compensation, and SLA policies.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tripsmith/tripsmith/pkg/blackboard"
	"github.com/tripsmith/tripsmith/pkg/config"
	"github.com/tripsmith/tripsmith/pkg/events"
	"github.com/tripsmith/tripsmith/pkg/models"
)

// StartInput is a request to start one workflow instance.
type StartInput struct {
	TemplateName string
	SagaID       string
	Data         map[string]any
}

// StartResult identifies the admitted workflow instance.
type StartResult struct {
	WorkflowID string            `json:"workflow_id"`
	SagaID     string            `json:"saga_id"`
	Status     models.SagaStatus `json:"status"`
}

// Occupancy reports admission utilization.
type Occupancy struct {
	Active   int `json:"active"`
	Capacity int `json:"capacity"`
}

// Engine is the workflow engine. One instance serves all sagas.
type Engine struct {
	cfg       *config.Config
	bus       *events.Bus
	publisher *events.Publisher
	board     *blackboard.Blackboard

	mu     sync.RWMutex
	sagas  map[string]*saga // workflow_id → saga
	bySaga map[string]*saga // saga_id → most recent saga
	active int

	handlersMu     sync.RWMutex
	systemHandlers map[string]SystemHandler
	compensations  map[string]CompensationHandler

	waiters *waiterTable
	subs    []int

	rootCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewEngine wires an engine to the bus and blackboard. It registers the
// built-in system and compensation handlers and subscribes to the
// completion and failure topics of every stage target the template
// registry references.
func NewEngine(cfg *config.Config, bus *events.Bus, board *blackboard.Blackboard) *Engine {
	e := &Engine{
		cfg:            cfg,
		bus:            bus,
		publisher:      events.NewPublisher(bus),
		board:          board,
		sagas:          make(map[string]*saga),
		bySaga:         make(map[string]*saga),
		systemHandlers: make(map[string]SystemHandler),
		compensations:  make(map[string]CompensationHandler),
		waiters:        newWaiterTable(),
	}

	e.registerBuiltins()

	for _, target := range stageTargets(cfg.TemplateRegistry) {
		e.subs = append(e.subs,
			bus.Subscribe(events.CompletionTopic(target), e.handleStageCompleted),
			bus.Subscribe(events.FailureTopic(target), e.handleStageFailed),
		)
	}
	return e
}

// Start makes the engine ready to admit workflows. Executor goroutines
// derive from this context, never from request contexts, so sagas
// outlive the HTTP requests that started them.
func (e *Engine) Start(ctx context.Context) {
	if e.cancel != nil {
		return
	}
	e.rootCtx, e.cancel = context.WithCancel(ctx)
	slog.Info("Workflow engine started",
		"max_concurrent_workflows", e.cfg.Engine.MaxConcurrentWorkflows,
		"templates", e.cfg.TemplateRegistry.Len())
}

// Stop cancels all running sagas and waits for their executors, up to
// the configured graceful-shutdown timeout.
func (e *Engine) Stop() {
	if e.cancel == nil {
		return
	}
	e.cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(e.cfg.Engine.GracefulShutdownTimeout):
		slog.Warn("Engine shutdown timed out waiting for running sagas")
	}

	for _, id := range e.subs {
		e.bus.Unsubscribe(id)
	}
	slog.Info("Workflow engine stopped")
}

// StartWorkflow admits and launches one saga. It rejects unknown
// templates, missing saga ids, duplicate non-terminal saga ids, and
// admission past the concurrency cap. The capacity check and the
// reservation happen under one lock, so concurrent starts cannot
// overshoot the cap.
func (e *Engine) StartWorkflow(ctx context.Context, input StartInput) (*StartResult, error) {
	if e.rootCtx == nil || e.rootCtx.Err() != nil {
		return nil, ErrEngineStopped
	}
	if input.SagaID == "" {
		return nil, ErrSagaIDRequired
	}
	template, err := e.cfg.GetTemplate(input.TemplateName)
	if err != nil {
		return nil, err
	}

	workflowID := uuid.New().String()
	correlationID := uuid.New().String()
	s := newSaga(workflowID, correlationID, template, input)

	e.mu.Lock()
	if e.active >= e.cfg.Engine.MaxConcurrentWorkflows {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %d workflows running", ErrAtCapacity, e.cfg.Engine.MaxConcurrentWorkflows)
	}
	if prev, ok := e.bySaga[input.SagaID]; ok && !prev.terminal() {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSagaConflict, input.SagaID)
	}
	e.sagas[workflowID] = s
	e.bySaga[input.SagaID] = s
	e.active++
	e.mu.Unlock()

	slog.Info("Workflow admitted",
		"workflow_id", workflowID,
		"saga_id", input.SagaID,
		"template", template.Name)

	if err := e.publisher.PublishWorkflowStarted(ctx, s.sagaID, s.correlationID, events.WorkflowStartedPayload{
		WorkflowID:   workflowID,
		SagaID:       s.sagaID,
		TemplateName: template.Name,
		StartTime:    s.startTime.Format(time.RFC3339Nano),
	}); err != nil {
		slog.Warn("workflow-started publish failed", "workflow_id", workflowID, "error", err)
	}

	runCtx, cancelRun := context.WithCancel(e.rootCtx)
	s.cancelRun = cancelRun
	e.wg.Add(1)
	go e.runSaga(runCtx, s)

	return &StartResult{WorkflowID: workflowID, SagaID: s.sagaID, Status: models.SagaStatusRunning}, nil
}

// CancelWorkflow moves a saga to cancelled and stops scheduling further
// steps. Cancelling a terminal saga is a no-op; in-flight step results
// are discarded when they arrive.
func (e *Engine) CancelWorkflow(ctx context.Context, workflowID, reason string) error {
	e.mu.RLock()
	s, ok := e.sagas[workflowID]
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrWorkflowNotFound, workflowID)
	}

	if !s.setTerminal(models.SagaStatusCancelled) {
		return nil
	}
	e.release(s)
	if s.cancelRun != nil {
		s.cancelRun()
	}

	slog.Info("Workflow cancelled", "workflow_id", workflowID, "saga_id", s.sagaID, "reason", reason)
	if err := e.publisher.PublishWorkflowCancelled(ctx, s.sagaID, s.correlationID, events.WorkflowCancelledPayload{
		WorkflowID: workflowID,
		SagaID:     s.sagaID,
		Reason:     reason,
	}); err != nil {
		slog.Warn("workflow-cancelled publish failed", "workflow_id", workflowID, "error", err)
	}
	return nil
}

// WorkflowStatus returns a snapshot of one saga.
func (e *Engine) WorkflowStatus(workflowID string) (*models.SagaSnapshot, error) {
	e.mu.RLock()
	s, ok := e.sagas[workflowID]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, workflowID)
	}
	return s.snapshot(), nil
}

// ListWorkflows returns snapshots of every known saga, newest first.
func (e *Engine) ListWorkflows() []*models.SagaSnapshot {
	e.mu.RLock()
	snapshots := make([]*models.SagaSnapshot, 0, len(e.sagas))
	for _, s := range e.sagas {
		snapshots = append(snapshots, s.snapshot())
	}
	e.mu.RUnlock()

	sort.Slice(snapshots, func(i, j int) bool {
		if !snapshots[i].StartTime.Equal(snapshots[j].StartTime) {
			return snapshots[i].StartTime.After(snapshots[j].StartTime)
		}
		return snapshots[i].WorkflowID < snapshots[j].WorkflowID
	})
	return snapshots
}

// Occupancy reports current admission utilization.
func (e *Engine) Occupancy() Occupancy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Occupancy{Active: e.active, Capacity: e.cfg.Engine.MaxConcurrentWorkflows}
}

// release frees the saga's admission slot. Called exactly once, by
// whichever path moved the saga to a terminal status.
func (e *Engine) release(_ *saga) {
	e.mu.Lock()
	e.active--
	e.mu.Unlock()
}

func (e *Engine) activeSagas() []*saga {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*saga, 0, e.active)
	for _, s := range e.sagas {
		if !s.terminal() {
			out = append(out, s)
		}
	}
	return out
}

// handleStageCompleted routes a stage completion to the waiter for its
// attempt. Completions with no open waiter are late (the attempt timed
// out, was retried, or the saga ended) and are discarded.
func (e *Engine) handleStageCompleted(ctx context.Context, env events.Envelope) error {
	payload, ok := env.Payload.(events.StageCompletedPayload)
	if !ok {
		return fmt.Errorf("unexpected completion payload type %T on %s", env.Payload, env.Topic)
	}
	key := waiterKey{sagaID: env.SagaID, stepID: payload.StepID, attempt: payload.Attempt}
	if !e.waiters.resolve(key, stageResult{outputs: payload.Outputs}) {
		slog.Debug("Discarding late stage completion",
			"saga_id", env.SagaID,
			"step_id", payload.StepID,
			"attempt", payload.Attempt)
	}
	return nil
}

// handleStageFailed routes a stage failure to the waiter for its attempt.
func (e *Engine) handleStageFailed(ctx context.Context, env events.Envelope) error {
	payload, ok := env.Payload.(events.StageFailedPayload)
	if !ok {
		return fmt.Errorf("unexpected failure payload type %T on %s", env.Payload, env.Topic)
	}
	key := waiterKey{sagaID: env.SagaID, stepID: payload.StepID, attempt: payload.Attempt}
	if !e.waiters.resolve(key, stageResult{err: errors.New(payload.Error)}) {
		slog.Debug("Discarding late stage failure",
			"saga_id", env.SagaID,
			"step_id", payload.StepID,
			"attempt", payload.Attempt)
	}
	return nil
}

// stageTargets collects the distinct stage and external targets across
// every registered template, sorted for deterministic subscription
// order.
func stageTargets(registry *config.TemplateRegistry) []string {
	seen := make(map[string]bool)
	var targets []string
	for _, t := range registry.GetAll() {
		for i := range t.Steps {
			step := &t.Steps[i]
			if step.Kind == models.StepKindSystem || seen[step.Target] {
				continue
			}
			seen[step.Target] = true
			targets = append(targets, step.Target)
		}
	}
	sort.Strings(targets)
	return targets
}
