package config

import "time"

// EngineConfig contains workflow engine tuning.
// These values control admission, retries, SLA checks, and reaping.
type EngineConfig struct {
	// MaxConcurrentWorkflows is the admission cap on non-terminal sagas.
	// Start requests beyond the cap are rejected, not queued.
	MaxConcurrentWorkflows int `yaml:"max_concurrent_workflows"`

	// DefaultStepTimeout applies to steps that declare no timeout.
	DefaultStepTimeout time.Duration `yaml:"default_step_timeout"`

	// RetryBackoffBase is the delay before the first retry of a step.
	// Subsequent retries double the delay up to RetryBackoffMax.
	RetryBackoffBase time.Duration `yaml:"retry_backoff_base"`

	// RetryBackoffMax caps the exponential retry delay.
	RetryBackoffMax time.Duration `yaml:"retry_backoff_max"`

	// SLACheckInterval is how often running sagas are measured against
	// their template SLA thresholds.
	SLACheckInterval time.Duration `yaml:"sla_check_interval"`

	// CleanupInterval is how often terminal sagas are scanned for reaping.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`

	// MaxWorkflowAge is how long a terminal saga is retained before the
	// reaper removes it.
	MaxWorkflowAge time.Duration `yaml:"max_workflow_age"`

	// GracefulShutdownTimeout is the max time to wait for running sagas
	// to settle during shutdown.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`
}

// DefaultEngineConfig returns the built-in engine defaults.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		MaxConcurrentWorkflows:  100,
		DefaultStepTimeout:      30 * time.Second,
		RetryBackoffBase:        1 * time.Second,
		RetryBackoffMax:         30 * time.Second,
		SLACheckInterval:        30 * time.Second,
		CleanupInterval:         60 * time.Second,
		MaxWorkflowAge:          30 * time.Minute,
		GracefulShutdownTimeout: 30 * time.Second,
	}
}
