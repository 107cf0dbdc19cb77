package llm

import (
	"fmt"
	"net/url"
	"strings"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	// DefaultMaxTokens is the completion budget when none is configured.
	DefaultMaxTokens = 8000

	// DefaultTemperature is the sampling temperature when none is configured.
	DefaultTemperature = 0.7

	// MaxTemperature is the highest accepted temperature.
	MaxTemperature = 2.0
)

// Message represents a chat message
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Config holds the per-run settings for a provider call.
type Config struct {
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int
	Temperature float64
	Region      string
}

// Overrides carries caller-supplied settings. Empty strings and nil pointers
// leave the corresponding Config field untouched.
type Overrides struct {
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   *int
	Temperature *float64
	Region      string
}

// Merge returns a copy of c with every set override applied.
func (c Config) Merge(o Overrides) Config {
	if o.Model != "" {
		c.Model = o.Model
	}
	if o.APIKey != "" {
		c.APIKey = o.APIKey
	}
	if o.BaseURL != "" {
		c.BaseURL = o.BaseURL
	}
	if o.MaxTokens != nil {
		c.MaxTokens = *o.MaxTokens
	}
	if o.Temperature != nil {
		c.Temperature = *o.Temperature
	}
	if o.Region != "" {
		c.Region = o.Region
	}
	return c
}

// Usage reports token consumption for one generation.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Result is the outcome of one generation.
type Result struct {
	Content  string
	Usage    *Usage
	Model    string
	Provider string
}

// validate checks the provider-independent constraints on cfg.
func validate(cfg Config, requiresKey bool) error {
	if strings.TrimSpace(cfg.Model) == "" {
		return &ConfigError{Field: "model", Reason: "is required"}
	}
	if requiresKey && strings.TrimSpace(cfg.APIKey) == "" {
		return &ConfigError{Field: "api_key", Reason: "is required for this provider"}
	}
	if cfg.MaxTokens <= 0 {
		return &ConfigError{Field: "max_tokens", Reason: fmt.Sprintf("must be positive, got %d", cfg.MaxTokens)}
	}
	if cfg.Temperature < 0 || cfg.Temperature > MaxTemperature {
		return &ConfigError{Field: "temperature", Reason: fmt.Sprintf("must be between 0 and 2, got %g", cfg.Temperature)}
	}
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return &ConfigError{Field: "base_url", Reason: fmt.Sprintf("must be an absolute http(s) URL, got %q", cfg.BaseURL)}
		}
	}
	return nil
}
