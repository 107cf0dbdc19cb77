package llm

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strings"
)

// ProviderInfo describes a registered back end.
type ProviderInfo struct {
	Name           string
	DefaultModel   string
	RequiresKey    bool
	EnvVar         string
	DefaultBaseURL string
}

// KeyResolver looks up the API key for a provider from its environment
// variable name. The default is os.Getenv.
type KeyResolver func(provider, envVar string) string

// Registry maps provider names to instances.
type Registry struct {
	entries map[string]registered
	resolve KeyResolver
	policy  RetryPolicy
	logger  *slog.Logger
	client  *http.Client
}

type registered struct {
	info     ProviderInfo
	provider Provider
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithKeyResolver sets how default API keys are resolved.
func WithKeyResolver(fn KeyResolver) RegistryOption {
	return func(r *Registry) {
		if fn != nil {
			r.resolve = fn
		}
	}
}

// WithRetryPolicy sets the rate-limit retry policy applied to every provider.
func WithRetryPolicy(p RetryPolicy) RegistryOption {
	return func(r *Registry) {
		r.policy = p
	}
}

// WithLogger sets the logger used by retrying providers.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithHTTPClient sets the HTTP client for the HTTP-based back ends.
func WithHTTPClient(c *http.Client) RegistryOption {
	return func(r *Registry) {
		r.client = c
	}
}

// NewRegistry creates a registry holding every built-in back end.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		entries: map[string]registered{},
		resolve: func(_, envVar string) string { return os.Getenv(envVar) },
		policy:  DefaultRetryPolicy(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	openaiOpts := []OpenAIOption{WithOpenAIHTTPClient(r.client)}

	r.Register(ProviderInfo{
		Name:           "anthropic",
		DefaultModel:   "claude-sonnet-4-20250514",
		RequiresKey:    true,
		EnvVar:         "ANTHROPIC_API_KEY",
		DefaultBaseURL: anthropicBaseURL,
	}, NewAnthropic(r.client))

	hosted := []struct {
		info   ProviderInfo
		models []string
		extra  []OpenAIOption
	}{
		{
			info:   ProviderInfo{Name: "openai", DefaultModel: "gpt-4o", RequiresKey: true, EnvVar: "OPENAI_API_KEY", DefaultBaseURL: "https://api.openai.com/v1"},
			models: []string{"gpt-4o", "gpt-4o-mini", "gpt-4.1", "o3-mini"},
		},
		{
			info:   ProviderInfo{Name: "openrouter", DefaultModel: "anthropic/claude-sonnet-4", RequiresKey: true, EnvVar: "OPENROUTER_API_KEY", DefaultBaseURL: "https://openrouter.ai/api/v1"},
			models: []string{"anthropic/claude-sonnet-4", "openai/gpt-4o", "google/gemini-2.5-pro", "deepseek/deepseek-chat"},
			extra: []OpenAIOption{
				WithOpenAIHeader("HTTP-Referer", "https://github.com/simonyos/rulefy"),
				WithOpenAIHeader("X-Title", "rulefy"),
			},
		},
		{
			info:   ProviderInfo{Name: "deepseek", DefaultModel: "deepseek-chat", RequiresKey: true, EnvVar: "DEEPSEEK_API_KEY", DefaultBaseURL: "https://api.deepseek.com/v1"},
			models: []string{"deepseek-chat", "deepseek-reasoner"},
		},
		{
			info:   ProviderInfo{Name: "ollama", DefaultModel: "llama3.1", DefaultBaseURL: "http://localhost:11434/v1"},
			models: []string{"llama3.1", "qwen2.5-coder", "mistral"},
		},
		{
			info:   ProviderInfo{Name: "lmstudio", DefaultModel: "qwen2.5-coder-7b-instruct", DefaultBaseURL: "http://localhost:1234/v1"},
			models: []string{"qwen2.5-coder-7b-instruct"},
		},
		{
			info:   ProviderInfo{Name: "litellm", DefaultModel: "gpt-4o", EnvVar: "LITELLM_API_KEY", DefaultBaseURL: "http://localhost:4000"},
			models: []string{"gpt-4o", "claude-sonnet-4-20250514"},
		},
		{
			info:   ProviderInfo{Name: "openai-compatible", EnvVar: "OPENAI_COMPATIBLE_API_KEY"},
			models: nil,
		},
	}
	for _, h := range hosted {
		p := NewOpenAI(h.info.Name, h.info.DefaultBaseURL, h.info.RequiresKey, h.models, append(openaiOpts, h.extra...)...)
		r.Register(h.info, p)
	}

	r.Register(ProviderInfo{
		Name:         "bedrock",
		DefaultModel: "anthropic.claude-3-5-sonnet-20240620-v1:0",
		EnvVar:       "AWS_REGION",
	}, NewBedrock())

	return r
}

// Register adds or replaces a provider. The provider is wrapped with the
// registry's retry policy.
func (r *Registry) Register(info ProviderInfo, p Provider) {
	info.Name = strings.ToLower(info.Name)
	r.entries[info.Name] = registered{
		info:     info,
		provider: WithRetry(p, r.policy, r.logger),
	}
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, error) {
	e, ok := r.entries[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("provider %q %w, available providers are: %s",
			name, ErrProviderNotFound, strings.Join(r.Names(), ", "))
	}
	return e.provider, nil
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Info returns the metadata for a provider.
func (r *Registry) Info(name string) (ProviderInfo, error) {
	if _, err := r.Get(name); err != nil {
		return ProviderInfo{}, err
	}
	return r.entries[strings.ToLower(strings.TrimSpace(name))].info, nil
}

// DefaultConfig returns the starting configuration for a provider: its
// default model, the token and temperature defaults, and the key found by
// the resolver. For bedrock the environment variable holds the region.
func (r *Registry) DefaultConfig(name string) (Config, error) {
	info, err := r.Info(name)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Model:       info.DefaultModel,
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
	}
	if info.EnvVar == "" {
		return cfg, nil
	}
	value := r.resolve(info.Name, info.EnvVar)
	if info.Name == "bedrock" {
		// An empty region leaves the choice to the AWS profile.
		cfg.Region = value
		return cfg, nil
	}
	cfg.APIKey = value
	return cfg, nil
}
