package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tripsmith/tripsmith/pkg/config"
)

// runCompensation invokes the named compensation handler under the
// failed step's timeout budget.
func (e *Engine) runCompensation(ctx context.Context, s *saga, step *config.StepConfig, action *config.CompensationAction) (map[string]any, error) {
	e.handlersMu.RLock()
	handler, ok := e.compensations[action.Action]
	e.handlersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no compensation handler registered for %q", action.Action)
	}

	slog.Info("Running compensation action",
		"workflow_id", s.workflowID,
		"step", step.ID,
		"action", action.Action)

	cctx, cancel := context.WithTimeout(ctx, e.stepTimeout(step))
	defer cancel()
	return handler(cctx, e.stepContext(s, step))
}

// compensateSkipEnrichment stands in for a failed enrichment step: the
// selected candidates pass through unenriched, flagged so downstream
// consumers can tell.
func compensateSkipEnrichment(_ context.Context, sc *StepContext) (map[string]any, error) {
	payload := map[string]any{
		"items":              sc.Inputs["candidates-selected"],
		"enrichment_skipped": true,
	}
	return stepOutputs(sc.Step, payload), nil
}

// compensateSkipAffiliateLinks stands in for a failed affiliate lookup
// with an empty link set.
func compensateSkipAffiliateLinks(_ context.Context, sc *StepContext) (map[string]any, error) {
	payload := map[string]any{
		"links":   []any{},
		"skipped": true,
	}
	return stepOutputs(sc.Step, payload), nil
}
