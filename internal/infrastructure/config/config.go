package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Classifier ClassifierConfig
	Detection  DetectionConfig
	Settings   SettingsConfig
	Logging    LogConfig
	RateLimit  RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"5031"`
	Host string `envconfig:"HOST" default:"127.0.0.1"`
}

// ClassifierConfig holds the remote classifier connection settings.
type ClassifierConfig struct {
	URL            string        `envconfig:"CLASSIFIER_URL" default:"http://127.0.0.1:5030"`
	AttemptTimeout time.Duration `envconfig:"CLASSIFIER_ATTEMPT_TIMEOUT" default:"10s"`
	BackoffInitial time.Duration `envconfig:"CLASSIFIER_BACKOFF_INITIAL" default:"1s"`
	BackoffMax     time.Duration `envconfig:"CLASSIFIER_BACKOFF_MAX" default:"5s"`
	BackoffJitter  float64       `envconfig:"CLASSIFIER_BACKOFF_JITTER" default:"0"`
	RateLimit      float64       `envconfig:"CLASSIFIER_RPS" default:"0"`
}

// DetectionConfig tunes the decision pipeline.
type DetectionConfig struct {
	CacheTTL        time.Duration `envconfig:"DECISION_CACHE_TTL" default:"10m"`
	HoverThreshold  float64       `envconfig:"HOVER_RISK_THRESHOLD" default:"0.9"`
	SkipWindow      time.Duration `envconfig:"NAV_SKIP_WINDOW" default:"15s"`
	CheckTimeout    time.Duration `envconfig:"CHECK_TIMEOUT" default:"0"`
	SafeDomainsFile string        `envconfig:"SAFE_DOMAINS_FILE"`
	WarningPageURL  string        `envconfig:"WARNING_PAGE_URL" default:"chrome-extension://phishguard/extension/warning.html"`
	SessionPrune    time.Duration `envconfig:"NAV_SESSION_PRUNE" default:"30m"`
}

// SettingsConfig selects the settings store. An empty path keeps settings
// in memory.
type SettingsConfig struct {
	Path string `envconfig:"SETTINGS_DB"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds inbound rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"50"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"100"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "5031",
			Host: "127.0.0.1",
		},
		Classifier: ClassifierConfig{
			URL:            "http://127.0.0.1:5030",
			AttemptTimeout: 10 * time.Second,
			BackoffInitial: time.Second,
			BackoffMax:     5 * time.Second,
		},
		Detection: DetectionConfig{
			CacheTTL:       10 * time.Minute,
			HoverThreshold: 0.9,
			SkipWindow:     15 * time.Second,
			WarningPageURL: "chrome-extension://phishguard/extension/warning.html",
			SessionPrune:   30 * time.Minute,
		},
		Logging: LogConfig{
			Level: "info",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			Enabled:           true,
		},
	}
}

// Validate rejects settings the detection layer cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Classifier.URL == "" {
		errs = append(errs, errors.New("classifier url is required"))
	}
	if c.Classifier.AttemptTimeout <= 0 {
		errs = append(errs, errors.New("classifier attempt timeout must be positive"))
	}
	if c.Classifier.BackoffInitial <= 0 {
		errs = append(errs, errors.New("classifier backoff initial must be positive"))
	}
	if c.Classifier.BackoffInitial > c.Classifier.BackoffMax {
		errs = append(errs, fmt.Errorf("classifier backoff initial %s exceeds max %s",
			c.Classifier.BackoffInitial, c.Classifier.BackoffMax))
	}
	if c.Classifier.BackoffJitter < 0 || c.Classifier.BackoffJitter >= 1 {
		errs = append(errs, errors.New("classifier backoff jitter must be in [0,1)"))
	}
	if c.Detection.CacheTTL <= 0 {
		errs = append(errs, errors.New("decision cache ttl must be positive"))
	}
	if c.Detection.HoverThreshold < 0 || c.Detection.HoverThreshold > 1 {
		errs = append(errs, fmt.Errorf("hover threshold %v outside [0,1]", c.Detection.HoverThreshold))
	}
	if c.Detection.SkipWindow <= 0 {
		errs = append(errs, errors.New("skip window must be positive"))
	}
	if c.Detection.CheckTimeout < 0 {
		errs = append(errs, errors.New("check timeout must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}
