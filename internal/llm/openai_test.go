package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const completionBody = `{
	"id": "chatcmpl-123",
	"object": "chat.completion",
	"created": 1677652288,
	"model": "served-model",
	"choices": [{
		"index": 0,
		"message": {"role": "assistant", "content": "Hello! How can I help you?"},
		"finish_reason": "stop"
	}],
	"usage": {"prompt_tokens": 10, "completion_tokens": 8, "total_tokens": 18}
}`

func TestOpenAIGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "rulefy", r.Header.Get("X-Title"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, "test-model", gjson.GetBytes(body, "model").String())
		assert.Equal(t, "system", gjson.GetBytes(body, "messages.0.role").String())
		assert.Equal(t, gjson.String, gjson.GetBytes(body, "messages.0.content").Type, "content is a plain string")
		assert.Equal(t, "persona", gjson.GetBytes(body, "messages.0.content").String())
		assert.Equal(t, "assistant", gjson.GetBytes(body, "messages.1.role").String())
		assert.Equal(t, "draft", gjson.GetBytes(body, "messages.1.content").String())
		assert.Equal(t, "user", gjson.GetBytes(body, "messages.2.role").String())
		assert.Equal(t, "hello", gjson.GetBytes(body, "messages.2.content").String())
		assert.False(t, gjson.GetBytes(body, "messages.0.audio").Exists(), "unset fields are omitted")
		assert.Equal(t, int64(8000), gjson.GetBytes(body, "max_tokens").Int())

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody))
	}))
	defer server.Close()

	p := NewOpenAI("openrouter", server.URL+"/v1", true, nil,
		WithOpenAIHTTPClient(server.Client()),
		WithOpenAIHeader("X-Title", "rulefy"))

	res, err := p.Generate(context.Background(), []Message{
		{Role: RoleSystem, Content: "persona"},
		{Role: RoleAssistant, Content: "draft"},
		{Role: RoleUser, Content: "hello"},
	}, validConfig())

	require.NoError(t, err)
	assert.Equal(t, "Hello! How can I help you?", res.Content)
	assert.Equal(t, "served-model", res.Model)
	assert.Equal(t, "openrouter", res.Provider)
	require.NotNil(t, res.Usage)
	assert.Equal(t, 18, res.Usage.TotalTokens)
}

func TestOpenAIGenerate_KeylessServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+keylessPlaceholder, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody))
	}))
	defer server.Close()

	p := NewOpenAI("ollama", "http://unused.invalid/v1", false, nil, WithOpenAIHTTPClient(server.Client()))
	cfg := validConfig()
	cfg.APIKey = ""
	cfg.BaseURL = server.URL + "/v1"

	res, err := p.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, cfg)
	require.NoError(t, err)
	assert.Equal(t, "ollama", res.Provider)
}

func TestOpenAIGenerate_RateLimited(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests"}}`))
	}))
	defer server.Close()

	p := NewOpenAI("openai", server.URL+"/v1", true, nil, WithOpenAIHTTPClient(server.Client()))
	_, err := p.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, validConfig())

	require.Error(t, err)
	assert.True(t, IsRateLimit(err))
	assert.Equal(t, 1, calls, "SDK retries are disabled")

	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 429, pe.StatusCode)
}

func TestOpenAIGenerate_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","model":"m","choices":[]}`))
	}))
	defer server.Close()

	p := NewOpenAI("openai", server.URL+"/v1", true, nil, WithOpenAIHTTPClient(server.Client()))
	res, err := p.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, validConfig())

	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestOpenAIValidateConfig(t *testing.T) {
	hosted := NewOpenAI("openai", "https://api.openai.com/v1", true, nil)
	cfg := validConfig()
	cfg.APIKey = ""
	assert.Error(t, hosted.ValidateConfig(cfg))

	local := NewOpenAI("lmstudio", "http://localhost:1234/v1", false, nil)
	assert.NoError(t, local.ValidateConfig(cfg))

	compatible := NewOpenAI("openai-compatible", "", false, nil)
	err := compatible.ValidateConfig(cfg)
	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "base_url", ce.Field)

	cfg.BaseURL = "http://my-server:8080/v1"
	assert.NoError(t, compatible.ValidateConfig(cfg))
}
