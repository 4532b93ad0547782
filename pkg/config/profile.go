package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile is the YAML overlay format. Only set fields override the base
// configuration.
type Profile struct {
	Weights *Weights `yaml:"weights"`
	Thresholds *struct {
		LengthyApproval *struct {
			P *float64 `yaml:"p"`
		} `yaml:"lengthy_approval"`
	} `yaml:"thresholds"`
	LLM *struct {
		Provider          *string  `yaml:"provider"`
		Model             *string  `yaml:"model"`
		Temperature       *float64 `yaml:"temperature"`
		MaxTokens         *int     `yaml:"max_tokens"`
		TimeoutSeconds    *float64 `yaml:"timeout_seconds"`
		BaseURL           *string  `yaml:"base_url"`
		DailyLimit        *int     `yaml:"daily_limit"`
		DailyWindowTZ     *string  `yaml:"daily_window_tz"`
		RequestsPerSecond *float64 `yaml:"requests_per_second"`
	} `yaml:"llm"`
}

// ApplyProfile overlays a YAML profile file on top of cfg and returns the
// merged configuration. cfg is not mutated.
func ApplyProfile(cfg *Config, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: load profile %q: %w", path, err)
	}
	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("config: parse profile %q: %w", path, err)
	}

	merged := *cfg
	if profile.Weights != nil {
		merged.Weights = *profile.Weights
	}
	if profile.Thresholds != nil && profile.Thresholds.LengthyApproval != nil && profile.Thresholds.LengthyApproval.P != nil {
		merged.ApprovalPercentile = *profile.Thresholds.LengthyApproval.P
	}
	if p := profile.LLM; p != nil {
		if p.Provider != nil {
			merged.LLM.Provider = *p.Provider
		}
		if p.Model != nil {
			merged.LLM.Model = *p.Model
		}
		if p.Temperature != nil {
			merged.LLM.Temperature = *p.Temperature
		}
		if p.MaxTokens != nil {
			merged.LLM.MaxTokens = *p.MaxTokens
		}
		if p.TimeoutSeconds != nil && *p.TimeoutSeconds > 0 {
			merged.LLM.Timeout = time.Duration(*p.TimeoutSeconds * float64(time.Second))
		}
		if p.BaseURL != nil {
			merged.LLM.BaseURL = *p.BaseURL
		}
		if p.DailyLimit != nil {
			merged.LLM.DailyLimit = *p.DailyLimit
		}
		if p.DailyWindowTZ != nil {
			merged.LLM.DailyWindowTZ = *p.DailyWindowTZ
		}
		if p.RequestsPerSecond != nil {
			merged.LLM.RequestsPerSecond = *p.RequestsPerSecond
		}
	}
	return &merged, nil
}
