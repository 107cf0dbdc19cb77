// Package llm provides a uniform generation interface over hosted,
// self-hosted and cloud-managed model back ends.
package llm

import "context"

// Provider is the interface for LLM backends
type Provider interface {
	// Name returns the registry key of the provider (e.g. "anthropic").
	Name() string

	// ValidateConfig checks cfg without touching the network.
	ValidateConfig(cfg Config) error

	// Generate performs exactly one logical generation.
	Generate(ctx context.Context, messages []Message, cfg Config) (*Result, error)

	// Models returns well-known model ids for the provider, default first.
	Models() []string
}
