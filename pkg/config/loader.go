package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// TripsmithYAMLConfig represents the complete tripsmith.yaml file structure
type TripsmithYAMLConfig struct {
	System     *SystemYAMLConfig `yaml:"system"`
	Engine     *EngineConfig     `yaml:"engine"`
	Blackboard *BlackboardConfig `yaml:"blackboard"`
}

// SystemYAMLConfig groups system-wide infrastructure settings.
type SystemYAMLConfig struct {
	API    *APIYAMLConfig    `yaml:"api"`
	Slack  *SlackYAMLConfig  `yaml:"slack"`
	Stages *StagesYAMLConfig `yaml:"stages"`
}

// APIYAMLConfig holds HTTP API settings from YAML.
type APIYAMLConfig struct {
	ListenAddr       string        `yaml:"listen_addr,omitempty"`
	AllowedWSOrigins []string      `yaml:"allowed_ws_origins,omitempty"`
	WSWriteTimeout   time.Duration `yaml:"ws_write_timeout,omitempty"`
}

// SlackYAMLConfig holds Slack notification settings from YAML.
type SlackYAMLConfig struct {
	Enabled  *bool  `yaml:"enabled,omitempty"`
	TokenEnv string `yaml:"token_env,omitempty"`
	Channel  string `yaml:"channel,omitempty"`
}

// StagesYAMLConfig holds stage harness settings from YAML.
type StagesYAMLConfig struct {
	Enabled          *bool         `yaml:"enabled,omitempty"`
	AffiliateLatency time.Duration `yaml:"affiliate_latency,omitempty"`
}

// TemplatesYAMLConfig represents the complete templates.yaml file structure
type TemplatesYAMLConfig struct {
	Templates map[string]WorkflowTemplate `yaml:"templates"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load YAML files from configDir (missing files fall back to built-ins)
//  2. Expand environment variables
//  3. Parse YAML into structs
//  4. Merge built-in + user-defined templates
//  5. Merge engine/blackboard settings over code defaults
//  6. Build the template registry
//  7. Validate all configuration
//  8. Return Config ready for use
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	// 1. Load configuration files
	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Validate all configuration
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("Configuration initialized successfully",
		"templates", stats.Templates,
		"ttl_rules", stats.TTLRules,
		"invalidation_rules", stats.InvalidationRules)

	return cfg, nil
}

// load is the internal loader (not exported)
func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{
		configDir: configDir,
	}

	// 1. Load tripsmith.yaml (engine, blackboard, system settings)
	mainConfig, err := loader.loadTripsmithYAML()
	if err != nil {
		return nil, NewLoadError("tripsmith.yaml", err)
	}

	// 2. Load templates.yaml (user workflow templates)
	userTemplates, err := loader.loadTemplatesYAML()
	if err != nil {
		return nil, NewLoadError("templates.yaml", err)
	}

	// 3. Get built-in configuration
	builtin := GetBuiltinConfig()

	// 4. Merge built-in + user-defined templates (user overrides built-in)
	templates := mergeTemplates(builtin.Templates, userTemplates)

	// 5. Build registry
	templateRegistry := NewTemplateRegistry(templates)

	// 6. Resolve engine config (merge user YAML with built-in defaults)
	// Start with defaults, then merge user config on top to preserve unset defaults
	engineConfig := DefaultEngineConfig()
	if mainConfig.Engine != nil {
		if err := mergo.Merge(engineConfig, mainConfig.Engine, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge engine config: %w", err)
		}
	}

	// 7. Resolve blackboard config the same way. A user-provided rule list
	// replaces the default list wholesale.
	blackboardConfig := DefaultBlackboardConfig()
	if mainConfig.Blackboard != nil {
		if err := mergo.Merge(blackboardConfig, mainConfig.Blackboard, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge blackboard config: %w", err)
		}
	}

	// 8. Resolve system config (API + Slack + Stages)
	apiCfg := resolveAPIConfig(mainConfig.System)
	slackCfg := resolveSlackConfig(mainConfig.System)
	stagesCfg := resolveStagesConfig(mainConfig.System)

	return &Config{
		configDir:        configDir,
		Engine:           engineConfig,
		Blackboard:       blackboardConfig,
		API:              apiCfg,
		Slack:            slackCfg,
		Stages:           stagesCfg,
		DefaultTemplate:  builtin.DefaultTemplate,
		TemplateRegistry: templateRegistry,
	}, nil
}

// validate performs comprehensive validation on loaded configuration
func validate(cfg *Config) error {
	validator := NewValidator(cfg)
	return validator.ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	// Expand environment variables using {{.VAR}} template syntax
	// Note: ExpandEnv passes through original data on parse/execution errors,
	// allowing YAML parser to handle the content (or fail with clearer error message)
	data = ExpandEnv(data)

	// Parse YAML
	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

func (l *configLoader) loadTripsmithYAML() (*TripsmithYAMLConfig, error) {
	var config TripsmithYAMLConfig

	if err := l.loadYAML("tripsmith.yaml", &config); err != nil {
		if errors.Is(err, ErrConfigNotFound) {
			// Built-in defaults cover every setting; the file is optional
			slog.Debug("tripsmith.yaml not found, using built-in defaults")
			return &config, nil
		}
		return nil, err
	}

	return &config, nil
}

func (l *configLoader) loadTemplatesYAML() (map[string]WorkflowTemplate, error) {
	var config TemplatesYAMLConfig

	// Initialize map to avoid nil map
	config.Templates = make(map[string]WorkflowTemplate)

	if err := l.loadYAML("templates.yaml", &config); err != nil {
		if errors.Is(err, ErrConfigNotFound) {
			slog.Debug("templates.yaml not found, using built-in templates only")
			return config.Templates, nil
		}
		return nil, err
	}

	return config.Templates, nil
}

// resolveAPIConfig resolves HTTP API configuration from system YAML, applying defaults.
func resolveAPIConfig(sys *SystemYAMLConfig) *APIConfig {
	cfg := &APIConfig{
		ListenAddr:     ":8080",
		WSWriteTimeout: 10 * time.Second,
	}

	if sys == nil || sys.API == nil {
		return cfg
	}

	a := sys.API
	if a.ListenAddr != "" {
		cfg.ListenAddr = a.ListenAddr
	}
	if len(a.AllowedWSOrigins) > 0 {
		cfg.AllowedWSOrigins = a.AllowedWSOrigins
	}
	if a.WSWriteTimeout > 0 {
		cfg.WSWriteTimeout = a.WSWriteTimeout
	}

	return cfg
}

// resolveSlackConfig resolves Slack configuration from system YAML, applying defaults.
func resolveSlackConfig(sys *SystemYAMLConfig) *SlackConfig {
	cfg := &SlackConfig{
		Enabled:  false,
		TokenEnv: "SLACK_BOT_TOKEN",
	}

	if sys == nil || sys.Slack == nil {
		return cfg
	}

	s := sys.Slack
	if s.Enabled != nil {
		cfg.Enabled = *s.Enabled
	}
	if s.TokenEnv != "" {
		cfg.TokenEnv = s.TokenEnv
	}
	if s.Channel != "" {
		cfg.Channel = s.Channel
	}

	return cfg
}

// resolveStagesConfig resolves stage harness configuration from system YAML, applying defaults.
func resolveStagesConfig(sys *SystemYAMLConfig) *StagesConfig {
	cfg := &StagesConfig{
		Enabled:          true,
		AffiliateLatency: 50 * time.Millisecond,
	}

	if sys == nil || sys.Stages == nil {
		return cfg
	}

	s := sys.Stages
	if s.Enabled != nil {
		cfg.Enabled = *s.Enabled
	}
	if s.AffiliateLatency > 0 {
		cfg.AffiliateLatency = s.AffiliateLatency
	}

	return cfg
}
