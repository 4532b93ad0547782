// Package config holds the immutable pipeline configuration. Components
// receive a Config value at construction; nothing reads the environment at
// call time.
package config

import (
	"os"
	"strconv"
	"time"
)

// Weights blend the four confidence sub-scores.
type Weights struct {
	S float64 `yaml:"wS"`
	R float64 `yaml:"wR"`
	I float64 `yaml:"wI"`
	Q float64 `yaml:"wQ"`
}

// LLM configures the verification/explanation layer.
type LLM struct {
	Provider    string        `yaml:"provider"` // "mock" or "openai"
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"-"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"-"` // env only, never in profile files
	DailyLimit  int           `yaml:"daily_limit"`
	DailyWindowTZ string      `yaml:"daily_window_tz"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// Config is the full pipeline configuration.
type Config struct {
	DatabaseURL        string  // serving store DSN
	SourceDatabaseURL  string  // materialized OCEL view DSN
	Weights            Weights
	ApprovalPercentile float64 // lengthy-approval threshold percentile
	LLM                LLM
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DatabaseURL:        "serving.sqlite",
		SourceDatabaseURL:  "ocel.sqlite",
		Weights:            Weights{S: 0.45, R: 0.20, I: 0.25, Q: 0.10},
		ApprovalPercentile: 0.95,
		LLM: LLM{
			Provider:          "openai",
			Model:             "gpt-4o-mini",
			Temperature:       0.2,
			MaxTokens:         3000,
			Timeout:           30 * time.Second,
			BaseURL:           "https://api.openai.com/v1/chat/completions",
			DailyLimit:        20,
			DailyWindowTZ:     "Asia/Seoul",
			RequestsPerSecond: 1,
		},
	}
}

// Load builds the configuration from environment variables on top of the
// defaults.
func Load() *Config {
	cfg := Default()

	setString(&cfg.DatabaseURL, "SERVING_DB_URL")
	setString(&cfg.SourceDatabaseURL, "OCEL_DB_URL")
	setFloat(&cfg.Weights.S, "SCORE_WEIGHT_S")
	setFloat(&cfg.Weights.R, "SCORE_WEIGHT_R")
	setFloat(&cfg.Weights.I, "SCORE_WEIGHT_I")
	setFloat(&cfg.Weights.Q, "SCORE_WEIGHT_Q")
	setFloat(&cfg.ApprovalPercentile, "LENGTHY_APPROVAL_PERCENTILE")

	setString(&cfg.LLM.Provider, "LLM_PROVIDER")
	setString(&cfg.LLM.Model, "LLM_MODEL")
	setFloat(&cfg.LLM.Temperature, "LLM_TEMPERATURE")
	setInt(&cfg.LLM.MaxTokens, "LLM_MAX_TOKENS")
	setString(&cfg.LLM.BaseURL, "OPENAI_BASE_URL")
	setString(&cfg.LLM.APIKey, "OPENAI_API_KEY")
	setInt(&cfg.LLM.DailyLimit, "LLM_DAILY_LIMIT")
	setString(&cfg.LLM.DailyWindowTZ, "LLM_DAILY_WINDOW_TZ")
	setFloat(&cfg.LLM.RequestsPerSecond, "LLM_REQUESTS_PER_SECOND")
	if v := os.Getenv("LLM_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
			cfg.LLM.Timeout = time.Duration(secs * float64(time.Second))
		}
	}
	return cfg
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
