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

func TestConvertAnthropicMessages(t *testing.T) {
	t.Run("system extracted and turns kept", func(t *testing.T) {
		system, msgs, err := convertAnthropicMessages([]Message{
			{Role: RoleSystem, Content: "persona"},
			{Role: RoleUser, Content: "hello"},
		})
		require.NoError(t, err)
		assert.Equal(t, "persona", system)
		assert.Equal(t, []anthropicMessage{{Role: RoleUser, Content: "hello"}}, msgs)
	})

	t.Run("consecutive same role merged", func(t *testing.T) {
		_, msgs, err := convertAnthropicMessages([]Message{
			{Role: RoleUser, Content: "a"},
			{Role: RoleUser, Content: "b"},
		})
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, "a\n\nb", msgs[0].Content)
	})

	t.Run("trailing assistant rejected", func(t *testing.T) {
		_, _, err := convertAnthropicMessages([]Message{
			{Role: RoleUser, Content: "a"},
			{Role: RoleAssistant, Content: "b"},
		})
		assert.ErrorIs(t, err, ErrLastMessageNotUser)
	})

	t.Run("empty rejected", func(t *testing.T) {
		_, _, err := convertAnthropicMessages([]Message{{Role: RoleSystem, Content: "only"}})
		assert.ErrorIs(t, err, ErrLastMessageNotUser)
	})

	t.Run("leading assistant gets a user turn", func(t *testing.T) {
		_, msgs, err := convertAnthropicMessages([]Message{
			{Role: RoleAssistant, Content: "draft"},
			{Role: RoleUser, Content: "more"},
		})
		require.NoError(t, err)
		require.Len(t, msgs, 3)
		assert.Equal(t, RoleUser, msgs[0].Role)
	})

	t.Run("unknown role", func(t *testing.T) {
		_, _, err := convertAnthropicMessages([]Message{{Role: "tool", Content: "x"}})
		assert.Error(t, err)
	})
}

func TestAnthropicGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "sk-test", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, "claude-test", gjson.GetBytes(body, "model").String())
		assert.Equal(t, "persona", gjson.GetBytes(body, "system").String())
		assert.Equal(t, int64(8000), gjson.GetBytes(body, "max_tokens").Int())
		assert.Equal(t, "hello", gjson.GetBytes(body, "messages.0.content").String())

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"model": "claude-test-20250101",
			"content": [{"type": "text", "text": "Hello "}, {"type": "text", "text": "there"}],
			"usage": {"input_tokens": 12, "output_tokens": 3}
		}`))
	}))
	defer server.Close()

	cfg := validConfig()
	cfg.Model = "claude-test"
	cfg.BaseURL = server.URL

	res, err := NewAnthropic(server.Client()).Generate(context.Background(), []Message{
		{Role: RoleSystem, Content: "persona"},
		{Role: RoleUser, Content: "hello"},
	}, cfg)

	require.NoError(t, err)
	assert.Equal(t, "Hello there", res.Content)
	assert.Equal(t, "claude-test-20250101", res.Model)
	assert.Equal(t, "anthropic", res.Provider)
	require.NotNil(t, res.Usage)
	assert.Equal(t, Usage{PromptTokens: 12, CompletionTokens: 3, TotalTokens: 15}, *res.Usage)
}

func TestAnthropicGenerate_ErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{name: "rate limit", status: http.StatusTooManyRequests, check: IsRateLimit},
		{name: "auth", status: http.StatusUnauthorized, check: IsAuth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"type":"error","error":{"type":"x","message":"nope"}}`))
			}))
			defer server.Close()

			cfg := validConfig()
			cfg.BaseURL = server.URL
			_, err := NewAnthropic(server.Client()).Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, cfg)

			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected kind for %v", err)
			assert.Contains(t, err.Error(), "nope")
		})
	}
}

func TestAnthropicGenerate_ValidatesBeforeSending(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))
	defer server.Close()

	cfg := validConfig()
	cfg.BaseURL = server.URL
	cfg.APIKey = ""
	_, err := NewAnthropic(server.Client()).Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, cfg)

	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "api_key", ce.Field)

	cfg.APIKey = "sk-test"
	_, err = NewAnthropic(server.Client()).Generate(context.Background(), []Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "draft"},
	}, cfg)
	assert.ErrorIs(t, err, ErrLastMessageNotUser)
	assert.False(t, called)
}

func TestParseAnthropicResponse(t *testing.T) {
	t.Run("legacy completion", func(t *testing.T) {
		res, err := parseAnthropicResponse([]byte(`{"completion":"text"}`), "m")
		require.NoError(t, err)
		assert.Equal(t, "text", res.Content)
		assert.Equal(t, "m", res.Model)
		assert.Nil(t, res.Usage)
	})

	t.Run("missing counters are zero", func(t *testing.T) {
		res, err := parseAnthropicResponse([]byte(`{"content":[{"type":"text","text":"x"}],"usage":{}}`), "m")
		require.NoError(t, err)
		require.NotNil(t, res.Usage)
		assert.Equal(t, Usage{}, *res.Usage)
	})

	t.Run("no content", func(t *testing.T) {
		_, err := parseAnthropicResponse([]byte(`{"id":"x"}`), "m")
		assert.ErrorIs(t, err, ErrNoContent)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := parseAnthropicResponse([]byte(`not json`), "m")
		assert.ErrorIs(t, err, ErrNoContent)
	})

	t.Run("error body", func(t *testing.T) {
		_, err := parseAnthropicResponse([]byte(`{"error":{"message":"overloaded, rate limit"}}`), "m")
		assert.True(t, IsRateLimit(err))
	})
}
