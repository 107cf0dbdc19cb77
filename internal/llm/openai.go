package llm

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Default timeout for OpenAI-style chat completion requests.
const defaultOpenAITimeout = 2 * time.Minute

// keylessPlaceholder is sent to self-hosted servers that ignore authentication.
const keylessPlaceholder = "not-needed"

// OpenAI implements Provider for any OpenAI-style chat completions API:
// the hosted OpenAI service, OpenRouter, DeepSeek, and self-hosted
// compatible servers such as Ollama, LM Studio or a LiteLLM proxy.
type OpenAI struct {
	name        string
	baseURL     string
	requiresKey bool
	models      []string
	headers     map[string]string
	client      *http.Client
}

// OpenAIOption configures an OpenAI provider.
type OpenAIOption func(*OpenAI)

// WithOpenAIHTTPClient sets the HTTP client used for requests.
func WithOpenAIHTTPClient(c *http.Client) OpenAIOption {
	return func(o *OpenAI) {
		if c != nil {
			o.client = c
		}
	}
}

// WithOpenAIHeader adds a static header to every request.
func WithOpenAIHeader(key, value string) OpenAIOption {
	return func(o *OpenAI) {
		o.headers[key] = value
	}
}

// NewOpenAI creates an OpenAI-style provider registered under name.
// requiresKey is false for self-hosted servers.
func NewOpenAI(name, baseURL string, requiresKey bool, models []string, opts ...OpenAIOption) *OpenAI {
	o := &OpenAI{
		name:        name,
		baseURL:     baseURL,
		requiresKey: requiresKey,
		models:      models,
		headers:     map[string]string{},
		client:      &http.Client{Timeout: defaultOpenAITimeout},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Name returns the provider identifier.
func (o *OpenAI) Name() string { return o.name }

// Models returns well-known model ids for this endpoint.
func (o *OpenAI) Models() []string { return o.models }

// BaseURL returns the default endpoint.
func (o *OpenAI) BaseURL() string { return o.baseURL }

// ValidateConfig checks cfg; the key is optional for self-hosted servers.
func (o *OpenAI) ValidateConfig(cfg Config) error {
	if err := validate(cfg, o.requiresKey); err != nil {
		return err
	}
	if cfg.BaseURL == "" && o.baseURL == "" {
		return &ConfigError{Field: "base_url", Reason: "is required for " + o.name}
	}
	return nil
}

// convertMessages converts internal messages to SDK message params. Content
// is sent as a plain string; several self-hosted servers reject the
// content-parts form the SDK helpers produce.
func (o *OpenAI) convertMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		role := openai.ChatCompletionMessageParamRoleUser
		switch msg.Role {
		case RoleSystem:
			role = openai.ChatCompletionMessageParamRoleSystem
		case RoleAssistant:
			role = openai.ChatCompletionMessageParamRoleAssistant
		}
		result = append(result, openai.ChatCompletionMessageParam{
			Role:    openai.F(role),
			Content: openai.F[any](msg.Content),
		})
	}
	return result
}

func (o *OpenAI) newClient(cfg Config) *openai.Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = o.baseURL
	}
	// Relative endpoint paths resolve against the base only with a trailing slash.
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = keylessPlaceholder
	}

	opts := []option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(o.client),
		option.WithMaxRetries(0),
	}
	for k, v := range o.headers {
		opts = append(opts, option.WithHeader(k, v))
	}
	return openai.NewClient(opts...)
}

// Generate calls the chat completions endpoint and returns the response
func (o *OpenAI) Generate(ctx context.Context, messages []Message, cfg Config) (*Result, error) {
	if err := o.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	completion, err := o.newClient(cfg).Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.F(cfg.Model),
		Messages:    openai.F(o.convertMessages(messages)),
		MaxTokens:   openai.Int(int64(cfg.MaxTokens)),
		Temperature: openai.Float(cfg.Temperature),
	})
	if err != nil {
		return nil, Classify(o.name, 0, err)
	}

	return o.parseCompletion(completion, cfg.Model)
}

func (o *OpenAI) parseCompletion(completion *openai.ChatCompletion, model string) (*Result, error) {
	if completion == nil || len(completion.Choices) == 0 {
		return nil, &ProviderError{Provider: o.name, Kind: KindProvider, Err: ErrNoContent}
	}

	result := &Result{
		Content:  completion.Choices[0].Message.Content,
		Model:    model,
		Provider: o.name,
	}
	if completion.Model != "" {
		result.Model = completion.Model
	}
	if u := completion.Usage; u.TotalTokens > 0 || u.PromptTokens > 0 || u.CompletionTokens > 0 {
		result.Usage = &Usage{
			PromptTokens:     int(u.PromptTokens),
			CompletionTokens: int(u.CompletionTokens),
			TotalTokens:      int(u.TotalTokens),
		}
	}
	return result, nil
}

var _ Provider = (*OpenAI)(nil)
