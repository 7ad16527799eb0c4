package config

// Config is the umbrella configuration object that encapsulates
// all registries, defaults, and configuration state.
// This is the primary object returned by Initialize() and used throughout the application.
type Config struct {
	configDir string // Configuration directory path (for reference)

	// Engine tuning (admission cap, retries, SLA checks, reaping)
	Engine *EngineConfig

	// Blackboard tuning and policy rules
	Blackboard *BlackboardConfig

	// HTTP API settings
	API *APIConfig

	// Slack notification settings
	Slack *SlackConfig

	// Stage harness settings
	Stages *StagesConfig

	// DefaultTemplate is used when a start request names no template
	DefaultTemplate string

	// Workflow template registry
	TemplateRegistry *TemplateRegistry
}

// Initialize is defined in loader.go

// Stats contains statistics about loaded configuration
type Stats struct {
	Templates         int
	TTLRules          int
	InvalidationRules int
}

// Stats returns configuration statistics for logging/monitoring
func (c *Config) Stats() Stats {
	s := Stats{}
	if c.TemplateRegistry != nil {
		s.Templates = c.TemplateRegistry.Len()
	}
	if c.Blackboard != nil {
		s.TTLRules = len(c.Blackboard.TTLRules)
		s.InvalidationRules = len(c.Blackboard.InvalidationRules)
	}
	return s
}

// ConfigDir returns the configuration directory path
func (c *Config) ConfigDir() string {
	return c.configDir
}

// GetTemplate retrieves a workflow template by name.
// This is a convenience method that wraps TemplateRegistry.Get().
func (c *Config) GetTemplate(name string) (*WorkflowTemplate, error) {
	return c.TemplateRegistry.Get(name)
}

// TemplateNames returns a sorted list of all registered template names.
func (c *Config) TemplateNames() []string {
	return c.TemplateRegistry.Names()
}
