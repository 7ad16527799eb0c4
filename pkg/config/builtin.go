package config

import (
	"sync"
	"time"

	"github.com/tripsmith/tripsmith/pkg/models"
)

// BuiltinConfig holds all built-in configuration data.
// This provides default workflow templates available without any user YAML.
type BuiltinConfig struct {
	Templates       map[string]WorkflowTemplate
	DefaultTemplate string
}

var (
	builtinConfig     *BuiltinConfig
	builtinConfigOnce sync.Once
)

// GetBuiltinConfig returns the singleton built-in configuration (thread-safe, lazy-initialized)
func GetBuiltinConfig() *BuiltinConfig {
	builtinConfigOnce.Do(initBuiltinConfig)
	return builtinConfig
}

func initBuiltinConfig() {
	builtinConfig = &BuiltinConfig{
		Templates:       initBuiltinTemplates(),
		DefaultTemplate: "travel-planning",
	}
}

func initBuiltinTemplates() map[string]WorkflowTemplate {
	return map[string]WorkflowTemplate{
		"travel-planning": {
			Description: "Full itinerary pipeline: candidates, validation, ranking, selection, enrichment, output",
			Steps: []StepConfig{
				{
					ID:      "initialize",
					Kind:    models.StepKindSystem,
					Target:  "initialize",
					Timeout: 5 * time.Second,
					Outputs: []string{"trip-request"},
				},
				{
					ID:        "generate-candidates",
					Kind:      models.StepKindStage,
					Target:    "candidate",
					Timeout:   30 * time.Second,
					Retries:   2,
					DependsOn: []string{"initialize"},
					Inputs:    []string{"trip-request"},
					Outputs:   []string{"candidates-generated"},
					Config:    map[string]any{"min_candidates": 3},
				},
				{
					ID:        "validate-candidates",
					Kind:      models.StepKindStage,
					Target:    "validation",
					Timeout:   15 * time.Second,
					Retries:   1,
					DependsOn: []string{"generate-candidates"},
					Inputs:    []string{"candidates-generated"},
					Outputs:   []string{"candidates-validated"},
					Config:    map[string]any{"min_quality_score": 0.5},
				},
				{
					ID:        "rank-candidates",
					Kind:      models.StepKindStage,
					Target:    "ranking",
					Timeout:   15 * time.Second,
					Retries:   1,
					DependsOn: []string{"validate-candidates"},
					Inputs:    []string{"candidates-validated"},
					Outputs:   []string{"candidates-ranked"},
					Config:    map[string]any{"algorithm": "weighted-score", "diversity_weight": 0.2},
				},
				{
					ID:        "select-candidates",
					Kind:      models.StepKindStage,
					Target:    "selection",
					Timeout:   15 * time.Second,
					Retries:   1,
					DependsOn: []string{"rank-candidates"},
					Inputs:    []string{"candidates-ranked"},
					Outputs:   []string{"candidates-selected"},
					Config:    map[string]any{"strategy": "budget-aware", "max_per_category": 2},
				},
				{
					ID:        "enrich-candidates",
					Kind:      models.StepKindStage,
					Target:    "enrichment",
					Timeout:   10 * time.Second,
					Retries:   2,
					DependsOn: []string{"select-candidates"},
					Inputs:    []string{"candidates-selected"},
					Outputs:   []string{"candidates-enriched"},
					Config:    map[string]any{"include_media": true},
				},
				{
					ID:        "generate-output",
					Kind:      models.StepKindStage,
					Target:    "output",
					Timeout:   15 * time.Second,
					Retries:   1,
					DependsOn: []string{"enrich-candidates"},
					Inputs:    []string{"candidates-enriched"},
					Outputs:   []string{"output-generated"},
					Config:    map[string]any{"format": "itinerary"},
				},
				{
					ID:        "finalize",
					Kind:      models.StepKindSystem,
					Target:    "finalize",
					Timeout:   5 * time.Second,
					DependsOn: []string{"generate-output"},
					Inputs:    []string{"output-generated"},
					Outputs:   []string{"workflow-finalized"},
				},
			},
			ErrorHandling: &ErrorHandlingConfig{
				Strategy:         StrategyRetryAndFallback,
				FallbackTemplate: "travel-planning-basic",
				CompensationActions: []CompensationAction{
					{Step: "enrich-candidates", Action: "skip-enrichment", Condition: ConditionTimeout},
					{Step: "enrich-candidates", Action: "skip-enrichment", Condition: ConditionServiceUnavailable},
				},
			},
			SLA: &SLAConfig{
				MaxDuration:       5 * time.Minute,
				WarningThreshold:  2 * time.Minute,
				CriticalThreshold: 4 * time.Minute,
			},
		},
		"travel-planning-basic": {
			Description: "Reduced pipeline without ranking and enrichment, fails fast",
			Steps: []StepConfig{
				{
					ID:      "initialize",
					Kind:    models.StepKindSystem,
					Target:  "initialize",
					Timeout: 5 * time.Second,
					Outputs: []string{"trip-request"},
				},
				{
					ID:        "generate-candidates",
					Kind:      models.StepKindStage,
					Target:    "candidate",
					Timeout:   30 * time.Second,
					Retries:   1,
					DependsOn: []string{"initialize"},
					Inputs:    []string{"trip-request"},
					Outputs:   []string{"candidates-generated"},
					Config:    map[string]any{"min_candidates": 2},
				},
				{
					ID:        "validate-candidates",
					Kind:      models.StepKindStage,
					Target:    "validation",
					Timeout:   15 * time.Second,
					Retries:   1,
					DependsOn: []string{"generate-candidates"},
					Inputs:    []string{"candidates-generated"},
					Outputs:   []string{"candidates-validated"},
				},
				{
					ID:        "select-candidates",
					Kind:      models.StepKindStage,
					Target:    "selection",
					Timeout:   15 * time.Second,
					Retries:   1,
					DependsOn: []string{"validate-candidates"},
					Inputs:    []string{"candidates-validated"},
					Outputs:   []string{"candidates-selected"},
					Config:    map[string]any{"strategy": "top-ranked", "max_per_category": 1},
				},
				{
					ID:        "generate-output",
					Kind:      models.StepKindStage,
					Target:    "output",
					Timeout:   15 * time.Second,
					Retries:   1,
					DependsOn: []string{"select-candidates"},
					Inputs:    []string{"candidates-selected"},
					Outputs:   []string{"output-generated"},
					Config:    map[string]any{"format": "itinerary"},
				},
				{
					ID:        "finalize",
					Kind:      models.StepKindSystem,
					Target:    "finalize",
					Timeout:   5 * time.Second,
					DependsOn: []string{"generate-output"},
					Inputs:    []string{"output-generated"},
					Outputs:   []string{"workflow-finalized"},
				},
			},
			ErrorHandling: &ErrorHandlingConfig{
				Strategy: StrategyFailFast,
			},
			SLA: &SLAConfig{
				MaxDuration:       2 * time.Minute,
				WarningThreshold:  1 * time.Minute,
				CriticalThreshold: 90 * time.Second,
			},
		},
		"travel-planning-premium": {
			Description: "Full pipeline plus affiliate booking links from the external affiliate service",
			Steps: []StepConfig{
				{
					ID:      "initialize",
					Kind:    models.StepKindSystem,
					Target:  "initialize",
					Timeout: 5 * time.Second,
					Outputs: []string{"trip-request"},
				},
				{
					ID:        "generate-candidates",
					Kind:      models.StepKindStage,
					Target:    "candidate",
					Timeout:   30 * time.Second,
					Retries:   2,
					DependsOn: []string{"initialize"},
					Inputs:    []string{"trip-request"},
					Outputs:   []string{"candidates-generated"},
					Config:    map[string]any{"min_candidates": 5},
				},
				{
					ID:        "validate-candidates",
					Kind:      models.StepKindStage,
					Target:    "validation",
					Timeout:   15 * time.Second,
					Retries:   1,
					DependsOn: []string{"generate-candidates"},
					Inputs:    []string{"candidates-generated"},
					Outputs:   []string{"candidates-validated"},
					Config:    map[string]any{"min_quality_score": 0.7},
				},
				{
					ID:        "rank-candidates",
					Kind:      models.StepKindStage,
					Target:    "ranking",
					Timeout:   15 * time.Second,
					Retries:   1,
					DependsOn: []string{"validate-candidates"},
					Inputs:    []string{"candidates-validated"},
					Outputs:   []string{"candidates-ranked"},
					Config:    map[string]any{"algorithm": "weighted-score", "diversity_weight": 0.3},
				},
				{
					ID:        "select-candidates",
					Kind:      models.StepKindStage,
					Target:    "selection",
					Timeout:   15 * time.Second,
					Retries:   1,
					DependsOn: []string{"rank-candidates"},
					Inputs:    []string{"candidates-ranked"},
					Outputs:   []string{"candidates-selected"},
					Config:    map[string]any{"strategy": "budget-aware", "max_per_category": 3},
				},
				{
					ID:        "enrich-candidates",
					Kind:      models.StepKindStage,
					Target:    "enrichment",
					Timeout:   10 * time.Second,
					Retries:   2,
					DependsOn: []string{"select-candidates"},
					Inputs:    []string{"candidates-selected"},
					Outputs:   []string{"candidates-enriched"},
					Config:    map[string]any{"include_media": true},
				},
				{
					ID:        "generate-affiliate-links",
					Kind:      models.StepKindExternal,
					Target:    "affiliate-service",
					Timeout:   20 * time.Second,
					Retries:   2,
					DependsOn: []string{"select-candidates"},
					Inputs:    []string{"candidates-selected"},
					Outputs:   []string{"affiliate-links"},
					Config:    map[string]any{"provider": "trippartner"},
				},
				{
					ID:        "generate-output",
					Kind:      models.StepKindStage,
					Target:    "output",
					Timeout:   15 * time.Second,
					Retries:   1,
					DependsOn: []string{"enrich-candidates", "generate-affiliate-links"},
					Inputs:    []string{"candidates-enriched", "affiliate-links"},
					Outputs:   []string{"output-generated"},
					Config:    map[string]any{"format": "itinerary", "include_booking_links": true},
				},
				{
					ID:        "finalize",
					Kind:      models.StepKindSystem,
					Target:    "finalize",
					Timeout:   5 * time.Second,
					DependsOn: []string{"generate-output"},
					Inputs:    []string{"output-generated"},
					Outputs:   []string{"workflow-finalized"},
				},
			},
			ErrorHandling: &ErrorHandlingConfig{
				Strategy:         StrategyRetryAndFallback,
				FallbackTemplate: "travel-planning",
				CompensationActions: []CompensationAction{
					{Step: "enrich-candidates", Action: "skip-enrichment", Condition: ConditionTimeout},
					{Step: "generate-affiliate-links", Action: "skip-affiliate-links", Condition: ConditionAny},
				},
			},
			SLA: &SLAConfig{
				MaxDuration:       10 * time.Minute,
				WarningThreshold:  4 * time.Minute,
				CriticalThreshold: 8 * time.Minute,
			},
		},
	}
}
