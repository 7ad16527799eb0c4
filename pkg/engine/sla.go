package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tripsmith/tripsmith/pkg/events"
	"github.com/tripsmith/tripsmith/pkg/models"
)

// CheckSLAs classifies every running saga's elapsed time against its
// template thresholds and publishes a transition event per change.
// Crossing max duration is catastrophic: the saga is force-failed with
// no further retries or compensation.
func (e *Engine) CheckSLAs(ctx context.Context) {
	now := time.Now()
	for _, s := range e.activeSagas() {
		elapsed := now.Sub(s.startTime)
		status := s.template.SLA.StatusAt(elapsed)

		old, changed := s.setSLAStatus(status)
		if !changed {
			continue
		}

		slog.Info("SLA status changed",
			"workflow_id", s.workflowID,
			"saga_id", s.sagaID,
			"old", old,
			"new", status,
			"elapsed", elapsed.Round(time.Millisecond))
		if err := e.publisher.PublishSLAStatusChanged(ctx, s.sagaID, s.correlationID, events.SLAStatusChangedPayload{
			WorkflowID: s.workflowID,
			SagaID:     s.sagaID,
			Old:        old,
			New:        status,
			DurationMS: elapsed.Milliseconds(),
		}); err != nil {
			slog.Warn("sla-status-changed publish failed", "workflow_id", s.workflowID, "error", err)
		}

		if status == models.SLAStatusExceeded {
			e.timeoutSaga(ctx, s, elapsed)
		}
	}
}

// timeoutSaga handles an SLA max-duration breach: publish the timeout
// event, record the error, and force-fail the saga. The run context is
// cancelled inside failSaga, which yanks the executor out of whatever
// it is waiting on.
func (e *Engine) timeoutSaga(ctx context.Context, s *saga, elapsed time.Duration) {
	var maxDuration time.Duration
	if s.template.SLA != nil {
		maxDuration = s.template.SLA.MaxDuration
	}

	if err := e.publisher.PublishWorkflowTimeout(ctx, s.sagaID, s.correlationID, events.WorkflowTimeoutPayload{
		WorkflowID:    s.workflowID,
		SagaID:        s.sagaID,
		ElapsedMS:     elapsed.Milliseconds(),
		MaxDurationMS: maxDuration.Milliseconds(),
	}); err != nil {
		slog.Warn("workflow-timeout publish failed", "workflow_id", s.workflowID, "error", err)
	}

	snap := s.snapshot()
	reason := fmt.Sprintf("%s: %s elapsed exceeds max duration %s",
		errWorkflowTimeout.Error(), elapsed.Round(time.Millisecond), maxDuration)
	s.appendError(snap.CurrentStep, reason, snap.RetryCount)

	logger := slog.With("workflow_id", s.workflowID, "saga_id", s.sagaID, "template", s.templateName)
	e.failSaga(ctx, s, reason, logger)
}

// Reap removes terminal sagas older than maxAge and releases their
// per-saga bus sequence state. Returns the number removed.
func (e *Engine) Reap(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	type reapedSaga struct {
		workflowID string
		sagaID     string
	}
	var removed []reapedSaga

	e.mu.Lock()
	for workflowID, s := range e.sagas {
		s.mu.Lock()
		old := s.status.Terminal() && s.endTime != nil && s.endTime.Before(cutoff)
		s.mu.Unlock()
		if !old {
			continue
		}
		delete(e.sagas, workflowID)
		if e.bySaga[s.sagaID] == s {
			delete(e.bySaga, s.sagaID)
		}
		removed = append(removed, reapedSaga{workflowID: workflowID, sagaID: s.sagaID})
	}
	e.mu.Unlock()

	for _, r := range removed {
		e.bus.Forget(r.sagaID)
	}
	if len(removed) > 0 {
		slog.Info("Reaped terminal workflows", "count", len(removed), "max_age", maxAge)
	}
	return len(removed)
}
