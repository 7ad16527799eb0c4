package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tripsmith/tripsmith/pkg/config"
	"github.com/tripsmith/tripsmith/pkg/events"
	"github.com/tripsmith/tripsmith/pkg/models"
)

// stepOutcome classifies a step's final disposition after retries.
type stepOutcome int

const (
	stepCompleted stepOutcome = iota
	stepFailed
	stepAborted
)

// runSaga is the per-saga executor: it advances the saga one step at a
// time until every step completed, a terminal failure path won, or the
// run context was cancelled.
func (e *Engine) runSaga(ctx context.Context, s *saga) {
	defer e.wg.Done()
	defer s.cancelRun()

	logger := slog.With(
		"workflow_id", s.workflowID,
		"saga_id", s.sagaID,
		"template", s.templateName)
	logger.Info("Saga execution started", "steps", len(s.template.Steps))

	for {
		if ctx.Err() != nil {
			e.abortSaga(s, logger)
			return
		}

		step := s.nextReadyStep()
		if step == nil {
			if s.allStepsCompleted() {
				e.completeSaga(ctx, s, logger)
			} else {
				e.failSaga(ctx, s, "no runnable step: dependency graph blocked", logger)
			}
			return
		}

		outcome, reason := e.executeStep(ctx, s, step, logger)
		switch outcome {
		case stepCompleted:
			continue
		case stepAborted:
			e.abortSaga(s, logger)
			return
		case stepFailed:
			if !e.applyErrorStrategy(ctx, s, step, reason, logger) {
				return
			}
		}
	}
}

// abortSaga settles a saga whose executor stopped before any terminal
// transition of its own, which happens only on engine shutdown. Sagas
// that are already terminal (cancelled by a caller, force-failed by an
// SLA breach) are left untouched.
func (e *Engine) abortSaga(s *saga, logger *slog.Logger) {
	if !s.setTerminal(models.SagaStatusCancelled) {
		logger.Info("Saga execution aborted")
		return
	}
	e.release(s)
	logger.Info("Workflow cancelled by engine shutdown")
	if err := e.publisher.PublishWorkflowCancelled(context.Background(), s.sagaID, s.correlationID, events.WorkflowCancelledPayload{
		WorkflowID: s.workflowID,
		SagaID:     s.sagaID,
		Reason:     "engine shutdown",
	}); err != nil {
		slog.Debug("workflow-cancelled publish failed", "workflow_id", s.workflowID, "error", err)
	}
}

// executeStep drives one step through dispatch and the retry loop. The
// returned reason is the final failure message when the outcome is
// stepFailed.
func (e *Engine) executeStep(ctx context.Context, s *saga, step *config.StepConfig, logger *slog.Logger) (stepOutcome, string) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.cfg.Engine.RetryBackoffBase
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = e.cfg.Engine.RetryBackoffMax
	bo.MaxElapsedTime = 0
	bo.Reset()

	for {
		attempt := s.retryCount(step.ID)
		s.setCurrentStep(step.ID)

		outputs, err := e.dispatch(ctx, s, step, attempt)
		if ctx.Err() != nil || s.terminal() {
			// The saga was cancelled while the step was in flight; its
			// result, success or failure, is discarded.
			return stepAborted, ""
		}
		if err == nil {
			s.completeStep(step, outputs)
			logger.Info("Step completed", "step", step.ID, "attempt", attempt)
			e.publishStepCompleted(ctx, s, step, outputs)
			return stepCompleted, ""
		}

		reason := err.Error()
		s.appendError(step.ID, reason, attempt)
		e.publishStepFailed(ctx, s, step, reason, attempt)

		if attempt < step.Retries {
			s.incrementRetry(step.ID)
			delay := bo.NextBackOff()
			logger.Warn("Step failed, retrying",
				"step", step.ID,
				"attempt", attempt,
				"error", reason,
				"backoff", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return stepAborted, ""
			}
			continue
		}

		s.markFailed(step.ID)
		logger.Error("Step permanently failed",
			"step", step.ID,
			"retries", step.Retries,
			"error", reason)
		return stepFailed, reason
	}
}

func (e *Engine) dispatch(ctx context.Context, s *saga, step *config.StepConfig, attempt int) (map[string]any, error) {
	switch step.Kind {
	case models.StepKindSystem:
		return e.dispatchSystem(ctx, s, step)
	case models.StepKindStage, models.StepKindExternal:
		return e.dispatchStage(ctx, s, step, attempt)
	default:
		return nil, fmt.Errorf("unknown step kind %q", step.Kind)
	}
}

// dispatchSystem invokes the registered in-process handler under the
// step's timeout budget.
func (e *Engine) dispatchSystem(ctx context.Context, s *saga, step *config.StepConfig) (map[string]any, error) {
	e.handlersMu.RLock()
	handler, ok := e.systemHandlers[step.Target]
	e.handlersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no system handler registered for %q", step.Target)
	}

	timeout := e.stepTimeout(step)
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	outputs, err := handler(stepCtx, e.stepContext(s, step))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: system step %q exceeded %s", errStepTimeout, step.ID, timeout)
		}
		return nil, err
	}
	return outputs, nil
}

// dispatchStage publishes the request envelope and blocks on the
// attempt's one-shot waiter until a result, the timeout, or saga
// cancellation. The waiter token guarantees exactly one winner; late
// arrivals are discarded by the bus handlers.
func (e *Engine) dispatchStage(ctx context.Context, s *saga, step *config.StepConfig, attempt int) (map[string]any, error) {
	key := waiterKey{sagaID: s.sagaID, stepID: step.ID, attempt: attempt}
	w := e.waiters.install(key)
	defer e.waiters.remove(key)

	if err := e.publisher.PublishStageRequest(ctx, step.Target, s.sagaID, s.correlationID, events.StageRequestPayload{
		WorkflowID: s.workflowID,
		StepID:     step.ID,
		Attempt:    attempt,
		Inputs:     s.resolveInputs(step),
		Outputs:    step.Outputs,
		StepConfig: step.Config,
	}); err != nil {
		return nil, fmt.Errorf("publish %s request: %w", step.Target, err)
	}

	timeout := e.stepTimeout(step)
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-w.ch:
		if res.err != nil {
			return nil, res.err
		}
		return res.outputs, nil
	case <-timer.C:
		if !w.abandon() {
			// A result beat the timer to the token; take it.
			res := <-w.ch
			if res.err != nil {
				return nil, res.err
			}
			return res.outputs, nil
		}
		return nil, fmt.Errorf("%w: step %q got no reply from %q within %s", errStepTimeout, step.ID, step.Target, timeout)
	case <-ctx.Done():
		w.abandon()
		return nil, ctx.Err()
	}
}

// applyErrorStrategy runs the template's error handling for a
// permanently failed step. It reports whether the execution loop should
// resume, which happens when a compensation action stood in for the
// step's result.
func (e *Engine) applyErrorStrategy(ctx context.Context, s *saga, step *config.StepConfig, reason string, logger *slog.Logger) bool {
	strategy := s.template.Strategy()
	observed := classifyFailure(reason)
	logger.Info("Applying error strategy",
		"strategy", strategy,
		"step", step.ID,
		"condition", observed)

	switch strategy {
	case config.StrategyRetryAndFallback:
		if action := s.template.ErrorHandling.CompensationFor(step.ID, observed); action != nil {
			outputs, err := e.runCompensation(ctx, s, step, action)
			if err == nil {
				s.unmarkFailed(step.ID)
				s.completeStep(step, outputs)
				logger.Info("Compensation stood in for failed step",
					"step", step.ID,
					"action", action.Action)
				e.publishStepCompleted(ctx, s, step, outputs)
				return true
			}
			s.appendError(step.ID, fmt.Sprintf("compensation %s failed: %v", action.Action, err), s.retryCount(step.ID))
			logger.Error("Compensation failed",
				"step", step.ID,
				"action", action.Action,
				"error", err)
		}
		if fallback := s.fallbackTemplate(); fallback != "" {
			e.switchToFallback(ctx, s, fallback, reason, logger)
			return false
		}
		e.failSaga(ctx, s, reason, logger)
		return false

	case config.StrategyCompensate:
		for _, action := range s.template.ErrorHandling.CompensationsFor(step.ID, observed) {
			if _, err := e.runCompensation(ctx, s, step, &action); err != nil {
				s.appendError(step.ID, fmt.Sprintf("compensation %s failed: %v", action.Action, err), s.retryCount(step.ID))
				logger.Error("Compensation failed",
					"step", step.ID,
					"action", action.Action,
					"error", err)
			}
		}
		e.failSaga(ctx, s, reason, logger)
		return false

	default:
		e.failSaga(ctx, s, reason, logger)
		return false
	}
}

// switchToFallback cancels the current saga and restarts it under the
// fallback template: same saga id, carried data, fresh workflow id.
func (e *Engine) switchToFallback(ctx context.Context, s *saga, fallback, reason string, logger *slog.Logger) {
	if !s.setTerminal(models.SagaStatusCancelled) {
		return
	}
	e.release(s)

	logger.Info("Switching to fallback template", "fallback", fallback, "error", reason)
	if err := e.publisher.PublishWorkflowCancelled(ctx, s.sagaID, s.correlationID, events.WorkflowCancelledPayload{
		WorkflowID: s.workflowID,
		SagaID:     s.sagaID,
		Reason:     fmt.Sprintf("falling back to template %q: %s", fallback, reason),
	}); err != nil {
		slog.Warn("workflow-cancelled publish failed", "workflow_id", s.workflowID, "error", err)
	}

	result, err := e.StartWorkflow(ctx, StartInput{
		TemplateName: fallback,
		SagaID:       s.sagaID,
		Data:         s.dataCopy(),
	})
	if err != nil {
		logger.Error("Fallback start failed", "fallback", fallback, "error", err)
		return
	}
	logger.Info("Fallback workflow started",
		"fallback", fallback,
		"new_workflow_id", result.WorkflowID)
}

func (e *Engine) completeSaga(ctx context.Context, s *saga, logger *slog.Logger) {
	if !s.setTerminal(models.SagaStatusCompleted) {
		return
	}
	e.release(s)

	snap := s.snapshot()
	logger.Info("Workflow completed",
		"duration", snap.Duration(),
		"completed_steps", len(snap.CompletedSteps))
	if err := e.publisher.PublishWorkflowCompleted(ctx, s.sagaID, s.correlationID, events.WorkflowCompletedPayload{
		WorkflowID:     s.workflowID,
		SagaID:         s.sagaID,
		DurationMS:     snap.Duration().Milliseconds(),
		CompletedSteps: snap.CompletedSteps,
	}); err != nil {
		slog.Warn("workflow-completed publish failed", "workflow_id", s.workflowID, "error", err)
	}
}

func (e *Engine) failSaga(ctx context.Context, s *saga, reason string, logger *slog.Logger) {
	if !s.setTerminal(models.SagaStatusFailed) {
		return
	}
	e.release(s)
	if s.cancelRun != nil {
		s.cancelRun()
	}

	snap := s.snapshot()
	logger.Error("Workflow failed", "error", reason, "duration", snap.Duration())
	if err := e.publisher.PublishWorkflowFailed(ctx, s.sagaID, s.correlationID, events.WorkflowFailedPayload{
		WorkflowID:     s.workflowID,
		SagaID:         s.sagaID,
		Error:          reason,
		DurationMS:     snap.Duration().Milliseconds(),
		CompletedSteps: snap.CompletedSteps,
	}); err != nil {
		slog.Warn("workflow-failed publish failed", "workflow_id", s.workflowID, "error", err)
	}
}

func (e *Engine) publishStepCompleted(ctx context.Context, s *saga, step *config.StepConfig, outputs map[string]any) {
	if err := e.publisher.PublishWorkflowStepCompleted(ctx, s.sagaID, s.correlationID, events.WorkflowStepCompletedPayload{
		WorkflowID: s.workflowID,
		SagaID:     s.sagaID,
		StepID:     step.ID,
		Result:     outputs,
	}); err != nil {
		slog.Warn("workflow-step-completed publish failed", "workflow_id", s.workflowID, "step", step.ID, "error", err)
	}
}

func (e *Engine) publishStepFailed(ctx context.Context, s *saga, step *config.StepConfig, reason string, attempt int) {
	if err := e.publisher.PublishWorkflowStepFailed(ctx, s.sagaID, s.correlationID, events.WorkflowStepFailedPayload{
		WorkflowID: s.workflowID,
		SagaID:     s.sagaID,
		StepID:     step.ID,
		Error:      reason,
		RetryCount: attempt,
	}); err != nil {
		slog.Warn("workflow-step-failed publish failed", "workflow_id", s.workflowID, "step", step.ID, "error", err)
	}
}

func (e *Engine) stepTimeout(step *config.StepConfig) time.Duration {
	if step.Timeout > 0 {
		return step.Timeout
	}
	return e.cfg.Engine.DefaultStepTimeout
}

func (e *Engine) stepContext(s *saga, step *config.StepConfig) *StepContext {
	return &StepContext{
		WorkflowID:   s.workflowID,
		SagaID:       s.sagaID,
		TemplateName: s.templateName,
		Step:         step,
		Data:         s.dataCopy(),
		Inputs:       s.resolveInputs(step),
		Board:        e.board,
	}
}

func (s *saga) fallbackTemplate() string {
	if s.template.ErrorHandling == nil {
		return ""
	}
	return s.template.ErrorHandling.FallbackTemplate
}

// classifyFailure maps a failure reason string onto the compensation
// condition vocabulary. Unrecognized reasons only match catch-all
// conditions.
func classifyFailure(reason string) config.FailureCondition {
	switch {
	case strings.Contains(reason, "timeout"):
		return config.ConditionTimeout
	case strings.Contains(reason, "service-unavailable"), strings.Contains(reason, "service unavailable"):
		return config.ConditionServiceUnavailable
	case strings.Contains(reason, "payment"):
		return config.ConditionPaymentFailed
	case strings.Contains(reason, "booking"):
		return config.ConditionBookingFailed
	default:
		return ""
	}
}
