package config

import (
	"fmt"

	"github.com/gobwas/glob"

	"github.com/tripsmith/tripsmith/pkg/models"
)

// ConfigValidator validates configuration comprehensively with clear error messages
type ConfigValidator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration
func NewValidator(cfg *Config) *ConfigValidator {
	return &ConfigValidator{cfg: cfg}
}

// ValidateAll performs comprehensive validation (fail-fast - stops at first error)
func (v *ConfigValidator) ValidateAll() error {
	// Validate in order: engine → blackboard → templates
	// This ensures settings are validated before the templates that rely on them

	if err := v.validateEngine(); err != nil {
		return fmt.Errorf("engine validation failed: %w", err)
	}

	if err := v.validateBlackboard(); err != nil {
		return fmt.Errorf("blackboard validation failed: %w", err)
	}

	if err := v.validateTemplates(); err != nil {
		return fmt.Errorf("template validation failed: %w", err)
	}

	return nil
}

func (v *ConfigValidator) validateEngine() error {
	e := v.cfg.Engine

	if e.MaxConcurrentWorkflows < 1 {
		return NewValidationError("engine", "engine", "max_concurrent_workflows", fmt.Errorf("must be at least 1"))
	}
	if e.DefaultStepTimeout <= 0 {
		return NewValidationError("engine", "engine", "default_step_timeout", fmt.Errorf("must be positive"))
	}
	if e.RetryBackoffBase <= 0 {
		return NewValidationError("engine", "engine", "retry_backoff_base", fmt.Errorf("must be positive"))
	}
	if e.RetryBackoffMax < e.RetryBackoffBase {
		return NewValidationError("engine", "engine", "retry_backoff_max", fmt.Errorf("must be at least retry_backoff_base"))
	}
	if e.SLACheckInterval <= 0 {
		return NewValidationError("engine", "engine", "sla_check_interval", fmt.Errorf("must be positive"))
	}
	if e.CleanupInterval <= 0 {
		return NewValidationError("engine", "engine", "cleanup_interval", fmt.Errorf("must be positive"))
	}
	if e.MaxWorkflowAge <= 0 {
		return NewValidationError("engine", "engine", "max_workflow_age", fmt.Errorf("must be positive"))
	}

	return nil
}

func (v *ConfigValidator) validateBlackboard() error {
	b := v.cfg.Blackboard

	if b.SweepInterval <= 0 {
		return NewValidationError("blackboard", "blackboard", "sweep_interval", fmt.Errorf("must be positive"))
	}

	for i, rule := range b.TTLRules {
		ruleID := fmt.Sprintf("ttl_rules[%d]", i)

		if rule.TTL <= 0 {
			return NewValidationError("blackboard", ruleID, "ttl", fmt.Errorf("must be positive"))
		}
		if rule.Namespace != "" && !models.Namespace(rule.Namespace).IsValid() {
			return NewValidationError("blackboard", ruleID, "namespace", fmt.Errorf("unknown namespace '%s'", rule.Namespace))
		}
		if rule.KeyPattern != "" {
			if _, err := glob.Compile(rule.KeyPattern); err != nil {
				return NewValidationError("blackboard", ruleID, "key_pattern", fmt.Errorf("invalid pattern: %v", err))
			}
		}
	}

	for i, rule := range b.InvalidationRules {
		ruleID := rule.Name
		if ruleID == "" {
			ruleID = fmt.Sprintf("invalidation_rules[%d]", i)
			return NewValidationError("blackboard", ruleID, "name", fmt.Errorf("required"))
		}

		if rule.ReasonPattern == "" {
			return NewValidationError("blackboard", ruleID, "reason_pattern", fmt.Errorf("required"))
		}
		if _, err := glob.Compile(rule.ReasonPattern); err != nil {
			return NewValidationError("blackboard", ruleID, "reason_pattern", fmt.Errorf("invalid pattern: %v", err))
		}
		if rule.Namespace == "" {
			return NewValidationError("blackboard", ruleID, "namespace", fmt.Errorf("required"))
		}
		if !models.Namespace(rule.Namespace).IsValid() {
			return NewValidationError("blackboard", ruleID, "namespace", fmt.Errorf("unknown namespace '%s'", rule.Namespace))
		}
		if rule.KeyPattern == "" {
			return NewValidationError("blackboard", ruleID, "key_pattern", fmt.Errorf("required"))
		}
		if _, err := glob.Compile(rule.KeyPattern); err != nil {
			return NewValidationError("blackboard", ruleID, "key_pattern", fmt.Errorf("invalid pattern: %v", err))
		}
	}

	return nil
}

func (v *ConfigValidator) validateTemplates() error {
	for name, tmpl := range v.cfg.TemplateRegistry.GetAll() {
		if err := v.validateTemplate(name, tmpl); err != nil {
			return err
		}
	}

	return nil
}

func (v *ConfigValidator) validateTemplate(name string, tmpl *WorkflowTemplate) error {
	if len(tmpl.Steps) == 0 {
		return NewValidationError("template", name, "steps", fmt.Errorf("at least one step required"))
	}

	// Step IDs must be unique, and dependencies and inputs may only
	// reference earlier steps. Forward-only references keep the step
	// graph acyclic by construction.
	earlier := make(map[string]int, len(tmpl.Steps))  // step ID → declaration index
	produced := make(map[string]string)               // output key → producing step ID
	for i := range tmpl.Steps {
		step := &tmpl.Steps[i]
		if err := v.validateStep(name, i, step, earlier, produced); err != nil {
			return err
		}
		earlier[step.ID] = i
		for _, out := range step.Outputs {
			produced[out] = step.ID
		}
	}

	if err := v.validateErrorHandling(name, tmpl, earlier); err != nil {
		return err
	}

	return v.validateSLA(name, tmpl.SLA)
}

func (v *ConfigValidator) validateStep(tmplName string, index int, step *StepConfig, earlier map[string]int, produced map[string]string) error {
	stepRef := fmt.Sprintf("template '%s' step %d", tmplName, index)

	if step.ID == "" {
		return fmt.Errorf("%s: step id required", stepRef)
	}
	if _, dup := earlier[step.ID]; dup {
		return fmt.Errorf("%s: duplicate step id '%s'", stepRef, step.ID)
	}
	if !step.Kind.IsValid() {
		return fmt.Errorf("%s: invalid kind '%s'", stepRef, step.Kind)
	}
	if step.Target == "" {
		return fmt.Errorf("%s: target required", stepRef)
	}
	if step.Timeout < 0 {
		return fmt.Errorf("%s: timeout must not be negative", stepRef)
	}
	if step.Retries < 0 {
		return fmt.Errorf("%s: retries must not be negative", stepRef)
	}

	for _, dep := range step.DependsOn {
		if dep == step.ID {
			return fmt.Errorf("%s: step depends on itself", stepRef)
		}
		if _, ok := earlier[dep]; !ok {
			return fmt.Errorf("%s: depends_on '%s' does not reference an earlier step", stepRef, dep)
		}
	}

	for _, in := range step.Inputs {
		if _, ok := produced[in]; !ok {
			return fmt.Errorf("%s: input '%s' is not produced by an earlier step", stepRef, in)
		}
	}

	return nil
}

func (v *ConfigValidator) validateErrorHandling(tmplName string, tmpl *WorkflowTemplate, steps map[string]int) error {
	eh := tmpl.ErrorHandling
	if eh == nil {
		return nil
	}

	if !eh.Strategy.IsValid() {
		return NewValidationError("template", tmplName, "error_handling.strategy", fmt.Errorf("invalid strategy '%s'", eh.Strategy))
	}

	if eh.FallbackTemplate != "" {
		if eh.Strategy != StrategyRetryAndFallback {
			return NewValidationError("template", tmplName, "error_handling.fallback_template",
				fmt.Errorf("only valid with strategy '%s'", StrategyRetryAndFallback))
		}
		if err := v.validateFallbackChain(tmplName); err != nil {
			return err
		}
	}

	for i, action := range eh.CompensationActions {
		actionRef := fmt.Sprintf("template '%s' compensation_actions[%d]", tmplName, i)

		if action.Step == "" {
			return fmt.Errorf("%s: step required", actionRef)
		}
		if _, ok := steps[action.Step]; !ok {
			return fmt.Errorf("%s: step '%s' not found in template", actionRef, action.Step)
		}
		if action.Action == "" {
			return fmt.Errorf("%s: action required", actionRef)
		}
		if action.Condition != "" && !action.Condition.IsValid() {
			return fmt.Errorf("%s: invalid condition '%s'", actionRef, action.Condition)
		}
	}

	return nil
}

// validateFallbackChain follows fallback references from the given template
// and rejects dangling names and cycles. A fallback cycle would bounce a
// persistently failing saga between templates indefinitely.
func (v *ConfigValidator) validateFallbackChain(start string) error {
	seen := make(map[string]bool)
	current := start

	for {
		if seen[current] {
			return NewValidationError("template", start, "error_handling.fallback_template",
				fmt.Errorf("fallback cycle through '%s'", current))
		}
		seen[current] = true

		tmpl, err := v.cfg.TemplateRegistry.Get(current)
		if err != nil {
			return NewValidationError("template", start, "error_handling.fallback_template",
				fmt.Errorf("template '%s' not found", current))
		}
		if tmpl.ErrorHandling == nil || tmpl.ErrorHandling.FallbackTemplate == "" {
			return nil
		}
		current = tmpl.ErrorHandling.FallbackTemplate
	}
}

func (v *ConfigValidator) validateSLA(tmplName string, sla *SLAConfig) error {
	if sla == nil {
		return nil
	}

	if sla.MaxDuration <= 0 {
		return NewValidationError("template", tmplName, "sla.max_duration", fmt.Errorf("must be positive"))
	}
	if sla.WarningThreshold < 0 || sla.CriticalThreshold < 0 {
		return NewValidationError("template", tmplName, "sla", fmt.Errorf("thresholds must not be negative"))
	}
	if sla.WarningThreshold > 0 && sla.CriticalThreshold > 0 && sla.WarningThreshold > sla.CriticalThreshold {
		return NewValidationError("template", tmplName, "sla.warning_threshold", fmt.Errorf("must not exceed critical_threshold"))
	}
	if sla.CriticalThreshold > sla.MaxDuration {
		return NewValidationError("template", tmplName, "sla.critical_threshold", fmt.Errorf("must not exceed max_duration"))
	}

	return nil
}
