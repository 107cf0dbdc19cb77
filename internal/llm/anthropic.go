package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

const (
	anthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"

	// Default timeout for Anthropic API requests (large chunks take a while)
	defaultAnthropicTimeout = 5 * time.Minute

	// maxResponseSize limits the response body to prevent memory exhaustion.
	maxResponseSize = 10 * 1024 * 1024
)

// Anthropic implements Provider using the Claude messages API.
type Anthropic struct {
	client *http.Client
}

// Anthropic API request types
type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewAnthropic creates a new Anthropic provider. A nil client gets the
// default five minute timeout.
func NewAnthropic(client *http.Client) *Anthropic {
	if client == nil {
		client = &http.Client{Timeout: defaultAnthropicTimeout}
	}
	return &Anthropic{client: client}
}

// Name returns the provider identifier.
func (a *Anthropic) Name() string { return "anthropic" }

// Models returns well-known Claude model ids.
func (a *Anthropic) Models() []string {
	return []string{
		"claude-sonnet-4-20250514",
		"claude-opus-4-20250514",
		"claude-3-7-sonnet-20250219",
		"claude-3-5-haiku-20241022",
	}
}

// ValidateConfig requires a model and an API key.
func (a *Anthropic) ValidateConfig(cfg Config) error {
	return validate(cfg, true)
}

// convertMessages extracts the system prompt and shapes the remaining turns
// into the alternating user/assistant list the API expects. Consecutive turns
// with the same role are merged.
func convertAnthropicMessages(messages []Message) (string, []anthropicMessage, error) {
	var system []string
	var out []anthropicMessage

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.Content)
			continue
		case RoleUser, RoleAssistant:
		default:
			return "", nil, fmt.Errorf("unsupported message role %q", msg.Role)
		}

		if n := len(out); n > 0 && out[n-1].Role == msg.Role {
			out[n-1].Content += "\n\n" + msg.Content
			continue
		}
		out = append(out, anthropicMessage{Role: msg.Role, Content: msg.Content})
	}

	if len(out) == 0 || out[len(out)-1].Role != RoleUser {
		return "", nil, ErrLastMessageNotUser
	}
	// The first turn must come from the user as well.
	if out[0].Role != RoleUser {
		out = append([]anthropicMessage{{Role: RoleUser, Content: "(continued)"}}, out...)
	}
	return strings.Join(system, "\n\n"), out, nil
}

// Generate calls Anthropic API and returns the response
func (a *Anthropic) Generate(ctx context.Context, messages []Message, cfg Config) (*Result, error) {
	if err := a.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	system, msgs, err := convertAnthropicMessages(messages)
	if err != nil {
		return nil, err
	}

	jsonBody, err := json.Marshal(anthropicRequest{
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		System:      system,
		Messages:    msgs,
		Temperature: cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = anthropicBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(baseURL, "/")+"/messages", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", cfg.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, Classify(a.Name(), 0, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, Classify(a.Name(), 0, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, Classify(a.Name(), resp.StatusCode, fmt.Errorf("API request failed: %s", errorMessage(body)))
	}

	return parseAnthropicResponse(body, cfg.Model)
}

// parseAnthropicResponse extracts text and usage from a messages response.
func parseAnthropicResponse(body []byte, model string) (*Result, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("anthropic: %w: invalid JSON", ErrNoContent)
	}
	if apiErr := gjson.GetBytes(body, "error.message"); apiErr.Exists() {
		return nil, Classify("anthropic", 0, fmt.Errorf("Anthropic API error: %s", apiErr.String()))
	}

	content := gjson.GetBytes(body, "content")
	if !content.Exists() {
		// Legacy text completions put the text at the top level.
		completion := gjson.GetBytes(body, "completion")
		if !completion.Exists() {
			return nil, fmt.Errorf("anthropic: %w", ErrNoContent)
		}
		content = completion
	}

	var text strings.Builder
	if content.IsArray() {
		for _, block := range content.Array() {
			if t := block.Get("type").String(); t != "" && t != "text" {
				continue
			}
			text.WriteString(block.Get("text").String())
		}
	} else {
		text.WriteString(content.String())
	}

	result := &Result{
		Content:  text.String(),
		Model:    model,
		Provider: "anthropic",
	}
	if m := gjson.GetBytes(body, "model"); m.Exists() {
		result.Model = m.String()
	}
	if usage := gjson.GetBytes(body, "usage"); usage.Exists() {
		in := int(usage.Get("input_tokens").Int())
		out := int(usage.Get("output_tokens").Int())
		result.Usage = &Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out}
	}
	return result, nil
}

// errorMessage pulls a readable message out of an error body.
func errorMessage(body []byte) string {
	for _, path := range []string{"error.message", "message", "error"} {
		if v := gjson.GetBytes(body, path); v.Exists() && v.Type == gjson.String {
			return v.String()
		}
	}
	s := string(body)
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

var _ Provider = (*Anthropic)(nil)
