// Package config handles loading and validation of the sync client
// configuration from environment variables and an optional topics manifest.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/VieGym/viegym-sync-client/logger"
)

// Environment represents the application's running environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"

	// Local defaults mirror the backend's development setup.
	defaultAPIBaseURL = "http://localhost:8080"
	defaultWSEndpoint = "ws://localhost:8080/ws"
)

// GatewayConfig holds REST gateway connection details.
type GatewayConfig struct {
	BaseURL        string `mapstructure:"BASE_URL" yaml:"base_url"`
	TimeoutSeconds int    `mapstructure:"TIMEOUT_SECONDS" yaml:"timeout_seconds"`
}

// Timeout returns the HTTP client timeout for gateway calls.
func (c GatewayConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RealtimeConfig holds the WebSocket bridge connection details.
type RealtimeConfig struct {
	Endpoint string `mapstructure:"ENDPOINT" yaml:"endpoint"`
	// HeartbeatSeconds is the ping interval on the open connection.
	HeartbeatSeconds int `mapstructure:"HEARTBEAT_SECONDS" yaml:"heartbeat_seconds"`
	// ReconnectDelaySeconds is the fixed delay before a reconnect attempt.
	ReconnectDelaySeconds int `mapstructure:"RECONNECT_DELAY_SECONDS" yaml:"reconnect_delay_seconds"`
	// MaxReconnectsPer10s rate-limits reconnect storms.
	MaxReconnectsPer10s int `mapstructure:"MAX_RECONNECTS_PER_10S" yaml:"max_reconnects_per_10s"`
}

// Heartbeat returns the ping interval.
func (c RealtimeConfig) Heartbeat() time.Duration {
	return time.Duration(c.HeartbeatSeconds) * time.Second
}

// ReconnectDelay returns the fixed reconnect delay.
func (c RealtimeConfig) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelaySeconds) * time.Second
}

// AuthConfig holds the bearer token used for both REST and realtime calls.
// The token is the single credential scheme of the client boundary.
type AuthConfig struct {
	Token string `mapstructure:"TOKEN" yaml:"token"`
}

// SyncConfig tunes the sync cores.
type SyncConfig struct {
	// NotificationPageSize is the default page size for full refetches.
	NotificationPageSize int `mapstructure:"NOTIFICATION_PAGE_SIZE" yaml:"notification_page_size"`
	// SoundCue toggles the audible alert side effect on pushed notifications.
	SoundCue bool `mapstructure:"SOUND_CUE" yaml:"sound_cue"`
}

// Config is the root configuration object.
type Config struct {
	Environment Environment    `mapstructure:"ENVIRONMENT"`
	LogLevel    string         `mapstructure:"LOG_LEVEL"`
	Gateway     GatewayConfig  `mapstructure:"GATEWAY"`
	Realtime    RealtimeConfig `mapstructure:"REALTIME"`
	Auth        AuthConfig     `mapstructure:"AUTH"`
	Sync        SyncConfig     `mapstructure:"SYNC"`
	// TopicsManifest is an optional YAML file listing extra topic
	// subscriptions (e.g. like counters to follow).
	TopicsManifest string `mapstructure:"TOPICS_MANIFEST"`
	// MetricsAddr is the listen address for the Prometheus endpoint.
	// Empty disables exposition; metrics are still registered.
	MetricsAddr string `mapstructure:"METRICS_ADDR"`
}

// LoadConfig reads configuration from the environment with development
// defaults, then validates it.
func LoadConfig() (*Config, error) {
	v := viper.New()
	log := logger.GetLogger()

	v.SetDefault("ENVIRONMENT", EnvDevelopment)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("GATEWAY.BASE_URL", defaultAPIBaseURL)
	v.SetDefault("GATEWAY.TIMEOUT_SECONDS", 10)
	v.SetDefault("REALTIME.ENDPOINT", defaultWSEndpoint)
	v.SetDefault("REALTIME.HEARTBEAT_SECONDS", 30)
	v.SetDefault("REALTIME.RECONNECT_DELAY_SECONDS", 5)
	v.SetDefault("REALTIME.MAX_RECONNECTS_PER_10S", 3)
	v.SetDefault("SYNC.NOTIFICATION_PAGE_SIZE", 20)
	v.SetDefault("SYNC.SOUND_CUE", true)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	envBindings := [][2]string{
		{"ENVIRONMENT", "ENVIRONMENT"},
		{"LOG_LEVEL", "LOG_LEVEL"},
		{"GATEWAY.BASE_URL", "VIEGYM_API_BASE_URL"},
		{"GATEWAY.TIMEOUT_SECONDS", "VIEGYM_API_TIMEOUT_SECONDS"},
		{"REALTIME.ENDPOINT", "VIEGYM_WS_ENDPOINT"},
		{"REALTIME.HEARTBEAT_SECONDS", "VIEGYM_WS_HEARTBEAT_SECONDS"},
		{"REALTIME.RECONNECT_DELAY_SECONDS", "VIEGYM_WS_RECONNECT_DELAY_SECONDS"},
		{"REALTIME.MAX_RECONNECTS_PER_10S", "VIEGYM_WS_MAX_RECONNECTS_PER_10S"},
		{"AUTH.TOKEN", "VIEGYM_AUTH_TOKEN"},
		{"SYNC.NOTIFICATION_PAGE_SIZE", "VIEGYM_NOTIFICATION_PAGE_SIZE"},
		{"SYNC.SOUND_CUE", "VIEGYM_SOUND_CUE"},
		{"TOPICS_MANIFEST", "VIEGYM_TOPICS_MANIFEST"},
		{"METRICS_ADDR", "VIEGYM_METRICS_ADDR"},
	}
	for _, binding := range envBindings {
		if err := v.BindEnv(binding[0], binding[1]); err != nil {
			return nil, fmt.Errorf("failed to bind env var %s: %w", binding[1], err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Infow("Configuration loaded",
		"environment", cfg.Environment,
		"apiBaseURL", cfg.Gateway.BaseURL,
		"wsEndpoint", cfg.Realtime.Endpoint,
		"token", logger.MaskToken(cfg.Auth.Token),
	)

	return &cfg, nil
}

// Validate checks structural invariants of the loaded configuration.
func (c *Config) Validate() error {
	if c.Environment != EnvDevelopment && c.Environment != EnvProduction {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}
	if _, err := url.ParseRequestURI(c.Gateway.BaseURL); err != nil {
		return fmt.Errorf("invalid gateway base URL %q: %w", c.Gateway.BaseURL, err)
	}
	u, err := url.Parse(c.Realtime.Endpoint)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		return fmt.Errorf("invalid realtime endpoint %q: scheme must be ws or wss", c.Realtime.Endpoint)
	}
	if c.Realtime.HeartbeatSeconds <= 0 {
		return fmt.Errorf("heartbeat interval must be positive")
	}
	if c.Realtime.ReconnectDelaySeconds <= 0 {
		return fmt.Errorf("reconnect delay must be positive")
	}
	if c.Sync.NotificationPageSize <= 0 {
		return fmt.Errorf("notification page size must be positive")
	}
	return nil
}
