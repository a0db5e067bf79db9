// Package config loads vetdiag settings from the environment, optionally seeded by a .env file.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds every runtime setting for the server and CLI.
type Config struct {
	Port    string `envconfig:"PORT" default:"8080"`
	GinMode string `envconfig:"GIN_MODE" default:"release"`

	ModelDir         string `envconfig:"MODEL_DIR" default:"model_assets"`
	PipelineFile     string `envconfig:"PIPELINE_FILE" default:"ai_diagnosa_pipeline.json"`
	LabelEncoderFile string `envconfig:"LABEL_ENCODER_FILE" default:"label_encoder.json"`
	InferenceURL     string `envconfig:"INFERENCE_URL"`

	DataDir       string `envconfig:"DATA_DIR" default:"data"`
	RulesFile     string `envconfig:"RULES_FILE"`
	MinClassCount int    `envconfig:"MIN_CLASS_COUNT"`
	TopN          int    `envconfig:"TOP_N" default:"10"`

	EnableDB    bool          `envconfig:"ENABLE_DB" default:"false"`
	DatabaseURL string        `envconfig:"DATABASE_URL"`
	RedisURL    string        `envconfig:"REDIS_URL"`
	CacheTTL    time.Duration `envconfig:"CACHE_TTL" default:"1h"`

	RateLimitRPS   float64 `envconfig:"RATE_LIMIT_RPS" default:"20"`
	RateLimitBurst int     `envconfig:"RATE_LIMIT_BURST" default:"40"`

	Watch          bool     `envconfig:"WATCH" default:"true"`
	LogLevel       string   `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat      string   `envconfig:"LOG_FORMAT" default:"json"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"*"`
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	if c.EnableDB && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when ENABLE_DB=true")
	}
	if c.MinClassCount < 0 {
		return fmt.Errorf("MIN_CLASS_COUNT must not be negative, got %d", c.MinClassCount)
	}
	if c.TopN < 1 {
		return fmt.Errorf("TOP_N must be at least 1, got %d", c.TopN)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		return fmt.Errorf("rate limit must be positive (rps=%v burst=%d)", c.RateLimitRPS, c.RateLimitBurst)
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat)
	}
	return nil
}

// PipelinePath is the exported vectorizer+classifier artifact.
func (c *Config) PipelinePath() string {
	return filepath.Join(c.ModelDir, c.PipelineFile)
}

// LabelEncoderPath is the exported label encoder artifact.
func (c *Config) LabelEncoderPath() string {
	return filepath.Join(c.ModelDir, c.LabelEncoderFile)
}

// UseRemoteModel reports whether predictions go to an external inference server.
func (c *Config) UseRemoteModel() bool {
	return c.InferenceURL != ""
}
