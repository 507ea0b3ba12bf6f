// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type DatabaseConfig struct {
	Driver      string        `yaml:"driver" env:"DATABASE_DRIVER"`
	Filename    string        `yaml:"filename" env:"DATABASE_FILENAME"`
	BusyTimeout time.Duration `yaml:"busy_timeout" env:"DATABASE_BUSY_TIMEOUT"`
}

// ScoringConfig bounds the ball entry and undo transactions.
type ScoringConfig struct {
	TransactionTimeout time.Duration `yaml:"transaction_timeout" env:"SCORING_TRANSACTION_TIMEOUT"`
	MaxRetries         int           `yaml:"max_retries" env:"SCORING_MAX_RETRIES"`
	InitialRetryDelay  time.Duration `yaml:"initial_retry_delay" env:"SCORING_INITIAL_RETRY_DELAY"`
	MaxRetryDelay      time.Duration `yaml:"max_retry_delay" env:"SCORING_MAX_RETRY_DELAY"`
}

type ApprovalsConfig struct {
	DefaultAutoApproveTimeout time.Duration `yaml:"default_auto_approve_timeout" env:"APPROVALS_DEFAULT_AUTO_APPROVE_TIMEOUT"`
	SweepEnabled              bool          `yaml:"sweep_enabled" env:"APPROVALS_SWEEP_ENABLED"`
	SweepSchedule             string        `yaml:"sweep_schedule" env:"APPROVALS_SWEEP_SCHEDULE"`
}

type EmailConfig struct {
	Enabled bool   `yaml:"enabled" env:"EMAIL_ENABLED"`
	Region  string `yaml:"region" env:"AWS_REGION"`
	Sender  string `yaml:"sender" env:"EMAIL_SENDER"`
	// Loaded from environment
	AccessKeyID     string `yaml:"-" env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"-" env:"AWS_SECRET_ACCESS_KEY"`
}

type LiveConfig struct {
	AllowedOrigins []string      `yaml:"allowed_origins" env:"LIVE_ALLOWED_ORIGINS" envSeparator:","`
	WriteTimeout   time.Duration `yaml:"write_timeout" env:"LIVE_WRITE_TIMEOUT"`
}

// RateLimitConfig bounds state-changing API requests.
type RateLimitConfig struct {
	Enabled      bool          `yaml:"enabled" env:"RATE_LIMIT_ENABLED"`
	Window       time.Duration `yaml:"window" env:"RATE_LIMIT_WINDOW"`
	MaxPerCaller int           `yaml:"max_per_caller" env:"RATE_LIMIT_MAX_PER_CALLER"`
	MaxPerIP     int           `yaml:"max_per_ip" env:"RATE_LIMIT_MAX_PER_IP"`
	TrustProxy   bool          `yaml:"trust_proxy" env:"RATE_LIMIT_TRUST_PROXY"`
}

type Config struct {
	App struct {
		Name        string `yaml:"name" env:"APP_NAME"`
		Environment string `yaml:"environment" env:"APP_ENVIRONMENT"`
		Port        int    `yaml:"port" env:"APP_PORT"`
		BaseURL     string `yaml:"base_url" env:"APP_BASE_URL"`
	} `yaml:"app"`

	Database  DatabaseConfig  `yaml:"database"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Approvals ApprovalsConfig `yaml:"approvals"`
	Email     EmailConfig     `yaml:"email"`
	Live      LiveConfig      `yaml:"live"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// Default returns the configuration used when a key is absent from the YAML file.
func Default() Config {
	var cfg Config
	cfg.App.Name = "crease"
	cfg.App.Environment = "development"
	cfg.App.Port = 8080
	cfg.Database.Driver = "sqlite"
	cfg.Database.Filename = "build/db/crease.db"
	cfg.Database.BusyTimeout = 5 * time.Second
	cfg.Scoring = ScoringConfig{
		TransactionTimeout: 15 * time.Second,
		MaxRetries:         2,
		InitialRetryDelay:  100 * time.Millisecond,
		MaxRetryDelay:      time.Second,
	}
	cfg.Approvals = ApprovalsConfig{
		DefaultAutoApproveTimeout: 5 * time.Minute,
		SweepEnabled:              true,
		SweepSchedule:             "* * * * *",
	}
	cfg.Live.WriteTimeout = 10 * time.Second
	cfg.RateLimit = RateLimitConfig{
		Enabled:      true,
		Window:       time.Minute,
		MaxPerCaller: 120,
		MaxPerIP:     600,
	}
	return cfg
}

// Load loads .env, then the yaml configuration, then environment overrides.
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.App.Port == 0 {
		return fmt.Errorf("app port is required")
	}
	if c.Database.Driver == "" {
		return fmt.Errorf("database driver is required")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Filename == "" {
			return fmt.Errorf("database filename is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Scoring.TransactionTimeout <= 0 {
		return fmt.Errorf("scoring transaction_timeout must be positive")
	}
	if c.Scoring.MaxRetries < 0 {
		return fmt.Errorf("scoring max_retries must not be negative")
	}
	if c.Scoring.InitialRetryDelay > c.Scoring.MaxRetryDelay {
		return fmt.Errorf("scoring initial_retry_delay must not exceed max_retry_delay")
	}

	if c.Approvals.DefaultAutoApproveTimeout < time.Minute {
		return fmt.Errorf("approvals default_auto_approve_timeout must be at least one minute")
	}
	if c.Approvals.SweepEnabled {
		if _, err := cron.ParseStandard(c.Approvals.SweepSchedule); err != nil {
			return fmt.Errorf("approvals sweep_schedule %q: %w", c.Approvals.SweepSchedule, err)
		}
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate_limit window must be positive")
		}
		if c.RateLimit.MaxPerCaller <= 0 || c.RateLimit.MaxPerIP <= 0 {
			return fmt.Errorf("rate_limit max_per_caller and max_per_ip must be positive")
		}
	}

	if c.Email.Enabled {
		if c.Email.Region == "" {
			return fmt.Errorf("email region is required when email is enabled")
		}
		if c.Email.Sender == "" {
			return fmt.Errorf("email sender is required when email is enabled")
		}
	}

	return nil
}

// IsDevelopment reports whether the service runs with developer defaults.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "" || c.App.Environment == "development"
}
