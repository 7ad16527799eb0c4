package config

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tripsmith/tripsmith/pkg/models"
)

// WorkflowTemplate defines a multi-step workflow configuration
type WorkflowTemplate struct {
	// Template name (map key in templates.yaml, filled in during load)
	Name string `yaml:"-"`

	// Human-readable description
	Description string `yaml:"description,omitempty"`

	// Steps to execute (required, min 1). Declaration order decides
	// scheduling order among ready steps.
	Steps []StepConfig `yaml:"steps" validate:"required,min=1,dive"`

	// Optional error handling applied when a step exhausts its retries
	ErrorHandling *ErrorHandlingConfig `yaml:"error_handling,omitempty"`

	// Optional SLA thresholds for total workflow duration
	SLA *SLAConfig `yaml:"sla,omitempty"`
}

// Step returns the step with the given ID, or nil if the template has none.
func (t *WorkflowTemplate) Step(id string) *StepConfig {
	for i := range t.Steps {
		if t.Steps[i].ID == id {
			return &t.Steps[i]
		}
	}
	return nil
}

// Strategy returns the configured error strategy, defaulting to fail-fast
// when the template declares no error handling.
func (t *WorkflowTemplate) Strategy() ErrorStrategy {
	if t.ErrorHandling == nil || t.ErrorHandling.Strategy == "" {
		return StrategyFailFast
	}
	return t.ErrorHandling.Strategy
}

// StepConfig defines a single step in a workflow template
type StepConfig struct {
	// Step ID, unique within the template (required)
	ID string `yaml:"id" validate:"required"`

	// Kind selects the dispatch path: system, stage, or external
	Kind models.StepKind `yaml:"kind" validate:"required"`

	// Target names the system handler, stage processor, or external service
	Target string `yaml:"target" validate:"required"`

	// Timeout for a single attempt (0 = engine default)
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// Retries allowed after the first failed attempt
	Retries int `yaml:"retries,omitempty" validate:"omitempty,min=0"`

	// DependsOn lists earlier step IDs that must complete first
	DependsOn []string `yaml:"depends_on,omitempty"`

	// Inputs are output keys of earlier steps this step consumes
	Inputs []string `yaml:"inputs,omitempty"`

	// Outputs are the result keys this step publishes
	Outputs []string `yaml:"outputs,omitempty"`

	// Config holds opaque per-step settings forwarded to the target
	Config map[string]any `yaml:"config,omitempty"`
}

// ErrorHandlingConfig defines recovery behavior for exhausted steps
type ErrorHandlingConfig struct {
	// Strategy applied when a step runs out of retries (required)
	Strategy ErrorStrategy `yaml:"strategy" validate:"required"`

	// FallbackTemplate to restart under when no compensation action covers
	// the failure (retry-and-fallback only)
	FallbackTemplate string `yaml:"fallback_template,omitempty"`

	// CompensationActions consulted in declaration order on step failure
	CompensationActions []CompensationAction `yaml:"compensation_actions,omitempty" validate:"omitempty,dive"`
}

// CompensationFor returns the first compensation action matching the failed
// step and observed failure class, or nil.
func (e *ErrorHandlingConfig) CompensationFor(stepID string, observed FailureCondition) *CompensationAction {
	if e == nil {
		return nil
	}
	for i := range e.CompensationActions {
		a := &e.CompensationActions[i]
		if a.Step == stepID && a.Condition.Matches(observed) {
			return a
		}
	}
	return nil
}

// CompensationsFor returns every compensation action matching the failed
// step and observed failure class, in declaration order.
func (e *ErrorHandlingConfig) CompensationsFor(stepID string, observed FailureCondition) []CompensationAction {
	if e == nil {
		return nil
	}
	var matched []CompensationAction
	for _, a := range e.CompensationActions {
		if a.Step == stepID && a.Condition.Matches(observed) {
			matched = append(matched, a)
		}
	}
	return matched
}

// CompensationAction maps a failed step to a registered recovery action
type CompensationAction struct {
	// Step ID this action compensates (required)
	Step string `yaml:"step" validate:"required"`

	// Action names a registered compensation handler (required)
	Action string `yaml:"action" validate:"required"`

	// Condition narrows the action to a failure class (default: any)
	Condition FailureCondition `yaml:"condition,omitempty"`
}

// SLAConfig defines duration thresholds for a workflow
type SLAConfig struct {
	// MaxDuration is the hard limit; crossing it kills the workflow
	// with no retries (required)
	MaxDuration time.Duration `yaml:"max_duration" validate:"required"`

	// WarningThreshold marks the sla_status transition to warning
	WarningThreshold time.Duration `yaml:"warning_threshold,omitempty"`

	// CriticalThreshold marks the sla_status transition to critical
	CriticalThreshold time.Duration `yaml:"critical_threshold,omitempty"`
}

// StatusAt classifies an elapsed workflow duration against the thresholds.
// A nil SLAConfig always reports ok.
func (s *SLAConfig) StatusAt(elapsed time.Duration) models.SLAStatus {
	switch {
	case s == nil:
		return models.SLAStatusOK
	case s.MaxDuration > 0 && elapsed >= s.MaxDuration:
		return models.SLAStatusExceeded
	case s.CriticalThreshold > 0 && elapsed >= s.CriticalThreshold:
		return models.SLAStatusCritical
	case s.WarningThreshold > 0 && elapsed >= s.WarningThreshold:
		return models.SLAStatusWarning
	default:
		return models.SLAStatusOK
	}
}

// TemplateRegistry stores workflow templates in memory with thread-safe access
type TemplateRegistry struct {
	templates map[string]*WorkflowTemplate
	mu        sync.RWMutex
}

// NewTemplateRegistry creates a new template registry
func NewTemplateRegistry(templates map[string]*WorkflowTemplate) *TemplateRegistry {
	// Defensive copy to prevent external mutation
	copied := make(map[string]*WorkflowTemplate, len(templates))
	for k, v := range templates {
		copied[k] = v
	}
	return &TemplateRegistry{templates: copied}
}

// Get retrieves a template by name
func (r *TemplateRegistry) Get(name string) (*WorkflowTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tmpl, ok := r.templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	return tmpl, nil
}

// GetAll returns a copy of all templates
func (r *TemplateRegistry) GetAll() map[string]*WorkflowTemplate {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*WorkflowTemplate, len(r.templates))
	for k, v := range r.templates {
		result[k] = v
	}
	return result
}

// Has checks if a template exists
func (r *TemplateRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.templates[name]
	return ok
}

// Names returns all template names, sorted
func (r *TemplateRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered templates
func (r *TemplateRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.templates)
}
