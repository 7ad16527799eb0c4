package engine

import (
	"context"
	"time"

	"github.com/tripsmith/tripsmith/pkg/blackboard"
	"github.com/tripsmith/tripsmith/pkg/config"
	"github.com/tripsmith/tripsmith/pkg/models"
)

// StepContext is what in-process handlers receive: workflow identity,
// the step definition, the saga's carried data, the resolved inputs,
// and the shared blackboard.
type StepContext struct {
	WorkflowID   string
	SagaID       string
	TemplateName string
	Step         *config.StepConfig
	Data         map[string]any
	Inputs       map[string]any
	Board        *blackboard.Blackboard
}

// SystemHandler executes a system step in-process and returns outputs
// keyed by the step's declared output names.
type SystemHandler func(ctx context.Context, sc *StepContext) (map[string]any, error)

// CompensationHandler executes a named compensation action. Under
// retry-and-fallback its outputs stand in for the failed step's result.
type CompensationHandler func(ctx context.Context, sc *StepContext) (map[string]any, error)

// RegisterSystemHandler registers a handler for system steps targeting
// name. Later registrations replace earlier ones.
func (e *Engine) RegisterSystemHandler(name string, h SystemHandler) {
	e.handlersMu.Lock()
	defer e.handlersMu.Unlock()
	e.systemHandlers[name] = h
}

// RegisterCompensation registers a handler for the named compensation
// action.
func (e *Engine) RegisterCompensation(name string, h CompensationHandler) {
	e.handlersMu.Lock()
	defer e.handlersMu.Unlock()
	e.compensations[name] = h
}

func (e *Engine) registerBuiltins() {
	e.RegisterSystemHandler("initialize", initializeWorkflow)
	e.RegisterSystemHandler("finalize", finalizeWorkflow)
	e.RegisterCompensation("skip-enrichment", compensateSkipEnrichment)
	e.RegisterCompensation("skip-affiliate-links", compensateSkipAffiliateLinks)
}

// initializeWorkflow seeds the request-scoped namespaces from the start
// request and hands the normalized trip request to the first stage.
func initializeWorkflow(ctx context.Context, sc *StepContext) (map[string]any, error) {
	if _, err := sc.Board.Write(ctx, models.NamespaceUserInput, sc.WorkflowID, sc.Data, blackboard.WriteOptions{}); err != nil {
		return nil, err
	}
	if prefs, ok := sc.Data["preferences"]; ok {
		if _, err := sc.Board.Write(ctx, models.NamespacePrefs, sc.WorkflowID, prefs, blackboard.WriteOptions{}); err != nil {
			return nil, err
		}
	}
	if constraints, ok := sc.Data["constraints"]; ok {
		if _, err := sc.Board.Write(ctx, models.NamespaceConstraints, sc.WorkflowID, constraints, blackboard.WriteOptions{}); err != nil {
			return nil, err
		}
	}

	trip := map[string]any{
		"workflow_id": sc.WorkflowID,
		"saga_id":     sc.SagaID,
		"request":     sc.Data,
	}
	return stepOutputs(sc.Step, trip), nil
}

// finalizeWorkflow leaves an audit record for the finished run.
func finalizeWorkflow(ctx context.Context, sc *StepContext) (map[string]any, error) {
	record := map[string]any{
		"workflow_id":  sc.WorkflowID,
		"saga_id":      sc.SagaID,
		"template":     sc.TemplateName,
		"finalized_at": time.Now().Format(time.RFC3339Nano),
	}
	if _, err := sc.Board.Write(ctx, models.NamespaceAudit, "workflow-"+sc.WorkflowID, record, blackboard.WriteOptions{}); err != nil {
		return nil, err
	}
	return stepOutputs(sc.Step, record), nil
}

// stepOutputs keys one payload under every declared output of the step.
func stepOutputs(step *config.StepConfig, payload any) map[string]any {
	out := make(map[string]any, len(step.Outputs))
	for _, key := range step.Outputs {
		out[key] = payload
	}
	return out
}
