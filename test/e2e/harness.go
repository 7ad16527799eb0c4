// Package e2e runs full in-process pipeline scenarios: real engine, real
// blackboard, real event bus, and the built-in stage participants, with
// no HTTP layer in between.
package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tripsmith/tripsmith/pkg/blackboard"
	"github.com/tripsmith/tripsmith/pkg/config"
	"github.com/tripsmith/tripsmith/pkg/engine"
	"github.com/tripsmith/tripsmith/pkg/events"
	"github.com/tripsmith/tripsmith/pkg/models"
	"github.com/tripsmith/tripsmith/pkg/stages"
)

// runtime is one fully wired in-process deployment.
type runtime struct {
	cfg    *config.Config
	bus    *events.Bus
	board  *blackboard.Blackboard
	engine *engine.Engine
}

// builtinRegistry returns the built-in templates plus any test-local
// extras, names stamped from the map keys the way the loader does it.
func builtinRegistry(extra map[string]*config.WorkflowTemplate) *config.TemplateRegistry {
	templates := make(map[string]*config.WorkflowTemplate)
	for name, tmpl := range config.GetBuiltinConfig().Templates {
		t := tmpl
		t.Name = name
		templates[name] = &t
	}
	for name, tmpl := range extra {
		tmpl.Name = name
		templates[name] = tmpl
	}
	return config.NewTemplateRegistry(templates)
}

// newRuntime wires a runtime with fast retry backoffs and the full stage
// set attached.
func newRuntime(t *testing.T, extra map[string]*config.WorkflowTemplate) *runtime {
	t.Helper()

	engineCfg := config.DefaultEngineConfig()
	engineCfg.RetryBackoffBase = 5 * time.Millisecond
	engineCfg.RetryBackoffMax = 20 * time.Millisecond
	engineCfg.DefaultStepTimeout = 500 * time.Millisecond
	engineCfg.GracefulShutdownTimeout = 2 * time.Second

	cfg := &config.Config{
		Engine:           engineCfg,
		Blackboard:       config.DefaultBlackboardConfig(),
		Stages:           &config.StagesConfig{Enabled: true, AffiliateLatency: time.Millisecond},
		TemplateRegistry: builtinRegistry(extra),
		DefaultTemplate:  "travel-planning",
	}

	bus := events.NewBus()
	t.Cleanup(bus.Close)

	board, err := blackboard.New(cfg.Blackboard, bus)
	require.NoError(t, err)

	eng := engine.NewEngine(cfg, bus, board)

	set := stages.NewSet(cfg.Stages, board)
	set.Attach(bus)
	t.Cleanup(func() { set.Detach(bus) })

	eng.Start(context.Background())
	t.Cleanup(eng.Stop)

	return &runtime{cfg: cfg, bus: bus, board: board, engine: eng}
}

// start admits a workflow and returns its identity.
func (r *runtime) start(t *testing.T, template, sagaID string, data map[string]any) *engine.StartResult {
	t.Helper()
	result, err := r.engine.StartWorkflow(context.Background(), engine.StartInput{
		TemplateName: template,
		SagaID:       sagaID,
		Data:         data,
	})
	require.NoError(t, err)
	return result
}

// awaitStatus polls until the workflow reaches the wanted status.
func (r *runtime) awaitStatus(t *testing.T, workflowID string, want models.SagaStatus) *models.SagaSnapshot {
	t.Helper()
	var snap *models.SagaSnapshot
	require.Eventually(t, func() bool {
		got, err := r.engine.WorkflowStatus(workflowID)
		if err != nil {
			return false
		}
		snap = got
		return got.Status == want
	}, 10*time.Second, 10*time.Millisecond, "workflow %s never reached %s", workflowID, want)
	return snap
}

// awaitSagaWorkflow polls until some workflow other than excludeID runs
// under the saga, which is how a fallback switch surfaces.
func (r *runtime) awaitSagaWorkflow(t *testing.T, sagaID, excludeID string) *models.SagaSnapshot {
	t.Helper()
	var snap *models.SagaSnapshot
	require.Eventually(t, func() bool {
		for _, s := range r.engine.ListWorkflows() {
			if s.SagaID == sagaID && s.WorkflowID != excludeID {
				snap = s
				return true
			}
		}
		return false
	}, 10*time.Second, 10*time.Millisecond, "saga %s never got a second workflow", sagaID)
	return snap
}

// itineraryResult extracts the final itinerary from a completed
// workflow's step results.
func itineraryResult(t *testing.T, snap *models.SagaSnapshot) *stages.Itinerary {
	t.Helper()
	raw, ok := snap.StepResults["output-generated"]
	require.True(t, ok, "no output-generated result on workflow %s", snap.WorkflowID)
	itinerary, ok := raw.(*stages.Itinerary)
	require.True(t, ok, "output-generated is %T, not an itinerary", raw)
	return itinerary
}

func tripRequest(destination string) map[string]any {
	return map[string]any{
		"destination": destination,
		"travelers":   2,
		"preferences": map[string]any{"pace": "relaxed"},
	}
}
