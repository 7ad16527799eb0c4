package config

import "time"

// BlackboardConfig contains blackboard store tuning and policy rules.
type BlackboardConfig struct {
	// SweepInterval is how often the sweeper scans every namespace for
	// expired entries missed by their deferred timers.
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// TTLRules are evaluated top-down at write time; the first matching
	// rule supplies the default TTL for entries written without one.
	TTLRules []TTLRule `yaml:"ttl_rules,omitempty"`

	// InvalidationRules map inbound invalidation reasons to entry
	// selections to purge.
	InvalidationRules []InvalidationRule `yaml:"invalidation_rules,omitempty"`
}

// TTLRule assigns a default TTL to blackboard entries by namespace and
// key pattern.
type TTLRule struct {
	// Namespace this rule applies to; empty matches every namespace
	Namespace string `yaml:"namespace,omitempty"`

	// KeyPattern is a glob matched against entry keys; empty matches all
	KeyPattern string `yaml:"key_pattern,omitempty"`

	// TTL applied to matching entries (required)
	TTL time.Duration `yaml:"ttl" validate:"required"`
}

// InvalidationRule purges matching blackboard entries when an inbound
// state-invalidate reason matches ReasonPattern.
type InvalidationRule struct {
	// Name identifies the rule in logs (required)
	Name string `yaml:"name" validate:"required"`

	// ReasonPattern is a glob matched against the invalidation reason (required)
	ReasonPattern string `yaml:"reason_pattern" validate:"required"`

	// Namespace whose entries are purged (required)
	Namespace string `yaml:"namespace" validate:"required"`

	// KeyPattern is a glob selecting entries within the namespace (required)
	KeyPattern string `yaml:"key_pattern" validate:"required"`
}

// DefaultBlackboardConfig returns the built-in blackboard defaults.
// Key-pattern TTL rules come before namespace-wide ones so that, for
// example, a flights entry in candidates expires by category, not by
// the candidates catch-all.
func DefaultBlackboardConfig() *BlackboardConfig {
	return &BlackboardConfig{
		SweepInterval: 1 * time.Minute,
		TTLRules: []TTLRule{
			{KeyPattern: "flights*", TTL: 5 * time.Minute},
			{KeyPattern: "hotels*", TTL: 30 * time.Minute},
			{KeyPattern: "activities*", TTL: 24 * time.Hour},
			{KeyPattern: "restaurants*", TTL: 24 * time.Hour},
			{KeyPattern: "cars*", TTL: 12 * time.Hour},
			{Namespace: "candidates", TTL: 5 * time.Minute},
			{Namespace: "selections", TTL: 30 * time.Minute},
			{Namespace: "media", TTL: 24 * time.Hour},
			{Namespace: "cache", TTL: 1 * time.Hour},
		},
		InvalidationRules: []InvalidationRule{
			{
				Name:          "price-drift",
				ReasonPattern: "price-drift*",
				Namespace:     "candidates",
				KeyPattern:    "*",
			},
			{
				Name:          "reverify",
				ReasonPattern: "reverify*",
				Namespace:     "cache",
				KeyPattern:    "*",
			},
		},
	}
}
