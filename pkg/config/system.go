package config

import "time"

// APIConfig holds resolved HTTP API configuration.
type APIConfig struct {
	ListenAddr       string        // host:port for the HTTP server (default: ":8080")
	AllowedWSOrigins []string      // additional allowed WebSocket origin patterns
	WSWriteTimeout   time.Duration // per-message WebSocket write deadline (default: 10s)
}

// SlackConfig holds resolved Slack notification configuration.
type SlackConfig struct {
	Enabled  bool
	TokenEnv string // Env var name for Slack bot token (default: "SLACK_BOT_TOKEN")
	Channel  string // Slack channel ID (e.g., "C12345678")
}

// StagesConfig holds resolved stage harness configuration.
type StagesConfig struct {
	Enabled          bool          // register the in-process pipeline stages (default: true)
	AffiliateLatency time.Duration // simulated latency of the affiliate link service
}
