// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Acquire     AcquireConfig     `mapstructure:"acquire"`
	Capture     CaptureConfig     `mapstructure:"capture"`
	Processing  ProcessingConfig  `mapstructure:"processing"`
	Delivery    DeliveryConfig    `mapstructure:"delivery"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Screenshots ScreenshotsConfig `mapstructure:"screenshots"`
	PubSub      PubSubConfig      `mapstructure:"pubsub"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines admin API authentication toggles. Public presell and
// click routes are never behind the key.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// AcquireConfig governs the source page fetcher.
type AcquireConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// CaptureConfig configures the headless screenshot subsystem.
type CaptureConfig struct {
	ViewportHeight    int `mapstructure:"viewport_height"`
	NavTimeoutSec     int `mapstructure:"nav_timeout_seconds"`
	SettleMillis      int `mapstructure:"settle_ms"`
	JPEGQuality       int `mapstructure:"jpeg_quality"`
	RunTimeoutSeconds int `mapstructure:"run_timeout_seconds"`
}

// ProcessingConfig governs the orchestrator worker pool.
type ProcessingConfig struct {
	Concurrency int    `mapstructure:"concurrency"`
	QueueDepth  int    `mapstructure:"queue_depth"`
	EventTopic  string `mapstructure:"event_topic"`
}

// DeliveryConfig tunes visitor-facing responses.
type DeliveryConfig struct {
	PlaceholderReloadSeconds int `mapstructure:"placeholder_reload_seconds"`
}

// StorageConfig selects the campaign store backend.
type StorageConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
}

// ScreenshotsConfig sets where captured images live.
type ScreenshotsConfig struct {
	Provider  string `mapstructure:"provider"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PRESELL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("acquire.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("acquire.timeout_seconds", 15)
	v.SetDefault("capture.viewport_height", 1080)
	v.SetDefault("capture.nav_timeout_seconds", 25)
	v.SetDefault("capture.settle_ms", 500)
	v.SetDefault("capture.jpeg_quality", 85)
	v.SetDefault("capture.run_timeout_seconds", 0)
	v.SetDefault("processing.concurrency", 4)
	v.SetDefault("processing.queue_depth", 64)
	v.SetDefault("delivery.placeholder_reload_seconds", 5)
	v.SetDefault("storage.provider", "memory")
	v.SetDefault("screenshots.provider", "local")
	v.SetDefault("screenshots.base_dir", "data/screenshots")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Acquire.TimeoutSeconds <= 0 {
		return fmt.Errorf("acquire.timeout_seconds must be > 0")
	}
	if c.Capture.NavTimeoutSec <= 0 {
		return fmt.Errorf("capture.nav_timeout_seconds must be > 0")
	}
	if c.Capture.JPEGQuality <= 0 || c.Capture.JPEGQuality > 100 {
		return fmt.Errorf("capture.jpeg_quality must be in (0, 100]")
	}
	if c.Processing.Concurrency <= 0 {
		return fmt.Errorf("processing.concurrency must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Storage.Provider {
	case "memory":
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn must be set when storage.provider is postgres")
		}
	default:
		return fmt.Errorf("unknown storage.provider %q", c.Storage.Provider)
	}
	switch c.Screenshots.Provider {
	case "local":
		if c.Screenshots.BaseDir == "" {
			return fmt.Errorf("screenshots.base_dir must be set when screenshots.provider is local")
		}
	case "gcs":
		if c.Screenshots.GCSBucket == "" {
			return fmt.Errorf("screenshots.gcs_bucket must be set when screenshots.provider is gcs")
		}
	default:
		return fmt.Errorf("unknown screenshots.provider %q", c.Screenshots.Provider)
	}
	return nil
}

// AcquireTimeout converts the acquire timeout into a duration.
func (c Config) AcquireTimeout() time.Duration {
	return time.Duration(c.Acquire.TimeoutSeconds) * time.Second
}

// NavTimeout converts the per-navigation capture timeout into a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Capture.NavTimeoutSec) * time.Second
}

// RunTimeout converts the whole-run capture deadline into a duration.
// Zero disables the deadline.
func (c Config) RunTimeout() time.Duration {
	return time.Duration(c.Capture.RunTimeoutSeconds) * time.Second
}

// Settle converts the post-navigation settle delay into a duration.
func (c Config) Settle() time.Duration {
	return time.Duration(c.Capture.SettleMillis) * time.Millisecond
}
