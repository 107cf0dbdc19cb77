package llm

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type fakeInvoker struct {
	input *bedrockruntime.InvokeModelInput
	body  string
	err   error
}

func (f *fakeInvoker) InvokeModel(_ context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(f.body)}, nil
}

func newTestBedrock(inv *fakeInvoker, regions *[]string) *Bedrock {
	b := NewBedrock()
	b.factory = func(_ context.Context, region string) (bedrockInvoker, error) {
		if regions != nil {
			*regions = append(*regions, region)
		}
		return inv, nil
	}
	return b
}

func bedrockConfig(model string) Config {
	return Config{Model: model, MaxTokens: 256, Temperature: 0.5}
}

func TestFamilyFor(t *testing.T) {
	tests := []struct {
		model   string
		family  string
		dialect bedrockDialect
	}{
		{"anthropic.claude-3-5-sonnet-20240620-v1:0", "anthropic", dialectChat},
		{"us.anthropic.claude-3-5-sonnet-20240620-v1:0", "anthropic", dialectChat},
		{"meta.llama3-70b-instruct-v1:0", "meta", dialectInstruction},
		{"eu.meta.llama3-2-3b-instruct-v1:0", "meta", dialectInstruction},
		{"mistral.mistral-large-2402-v1:0", "mistral", dialectInstruction},
		{"amazon.titan-text-premier-v1:0", "amazon", dialectPlain},
		{"apac.amazon.nova-pro-v1:0", "amazon", dialectPlain},
		{"cohere.command-r-plus-v1:0", "cohere", dialectPlain},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			fam, err := familyFor(tt.model)
			require.NoError(t, err)
			assert.Equal(t, tt.family, fam.name)
			assert.Equal(t, tt.dialect, fam.dialect)
		})
	}

	_, err := familyFor("ai21.j2-ultra-v1")
	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "model", ce.Field)
}

func TestBuildBedrockBody(t *testing.T) {
	messages := []Message{
		{Role: RoleSystem, Content: "persona"},
		{Role: RoleUser, Content: "hello"},
	}
	cfg := bedrockConfig("")

	t.Run("chat", func(t *testing.T) {
		fam, _ := familyFor("anthropic.claude-3-haiku-20240307-v1:0")
		body, err := buildBedrockBody(fam, messages, cfg)
		require.NoError(t, err)
		assert.Equal(t, "bedrock-2023-05-31", gjson.GetBytes(body, "anthropic_version").String())
		assert.Equal(t, "persona", gjson.GetBytes(body, "system").String())
		assert.Equal(t, "user", gjson.GetBytes(body, "messages.0.role").String())
		assert.Equal(t, "hello", gjson.GetBytes(body, "messages.0.content").String())
		assert.Equal(t, int64(256), gjson.GetBytes(body, "max_tokens").Int())
		assert.Equal(t, 0.5, gjson.GetBytes(body, "temperature").Float())
	})

	t.Run("instruction", func(t *testing.T) {
		fam, _ := familyFor("meta.llama3-70b-instruct-v1:0")
		body, err := buildBedrockBody(fam, messages, cfg)
		require.NoError(t, err)
		assert.Equal(t, "<s>[INST] persona\n\nhello [/INST]", gjson.GetBytes(body, "prompt").String())
		assert.Equal(t, int64(256), gjson.GetBytes(body, "max_gen_len").Int())
	})

	t.Run("plain", func(t *testing.T) {
		fam, _ := familyFor("amazon.titan-text-premier-v1:0")
		body, err := buildBedrockBody(fam, messages, cfg)
		require.NoError(t, err)
		assert.Equal(t, "persona\n\nhello", gjson.GetBytes(body, "inputText").String())
		assert.Equal(t, int64(256), gjson.GetBytes(body, "textGenerationConfig.maxTokenCount").Int())
		assert.Equal(t, 0.5, gjson.GetBytes(body, "textGenerationConfig.temperature").Float())
	})

	t.Run("chat rejects trailing assistant", func(t *testing.T) {
		fam, _ := familyFor("anthropic.claude-3-haiku-20240307-v1:0")
		_, err := buildBedrockBody(fam, append(messages, Message{Role: RoleAssistant, Content: "x"}), cfg)
		assert.ErrorIs(t, err, ErrLastMessageNotUser)
	})
}

func TestParseBedrockBody(t *testing.T) {
	tests := []struct {
		model     string
		body      string
		wantText  string
		wantUsage *Usage
	}{
		{
			model:     "anthropic.claude-3-haiku-20240307-v1:0",
			body:      `{"content":[{"type":"text","text":"chat reply"}],"usage":{"input_tokens":5,"output_tokens":2}}`,
			wantText:  "chat reply",
			wantUsage: &Usage{PromptTokens: 5, CompletionTokens: 2, TotalTokens: 7},
		},
		{
			model:     "meta.llama3-70b-instruct-v1:0",
			body:      `{"generation":"llama reply","prompt_token_count":9,"generation_token_count":4}`,
			wantText:  "llama reply",
			wantUsage: &Usage{PromptTokens: 9, CompletionTokens: 4, TotalTokens: 13},
		},
		{
			model:    "mistral.mistral-large-2402-v1:0",
			body:     `{"outputs":[{"text":"mistral reply","stop_reason":"stop"}]}`,
			wantText: "mistral reply",
		},
		{
			model:     "amazon.titan-text-premier-v1:0",
			body:      `{"inputTextTokenCount":3,"results":[{"outputText":"titan reply","tokenCount":6}]}`,
			wantText:  "titan reply",
			wantUsage: &Usage{PromptTokens: 3, CompletionTokens: 6, TotalTokens: 9},
		},
		{
			model:    "cohere.command-r-plus-v1:0",
			body:     `{"generations":[{"text":"cohere reply"}]}`,
			wantText: "cohere reply",
		},
		{
			model:    "meta.llama3-70b-instruct-v1:0",
			body:     `{"generation":"no usage"}`,
			wantText: "no usage",
		},
	}
	for _, tt := range tests {
		t.Run(tt.wantText, func(t *testing.T) {
			fam, err := familyFor(tt.model)
			require.NoError(t, err)
			text, usage, err := parseBedrockBody(fam, []byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, text)
			assert.Equal(t, tt.wantUsage, usage)
		})
	}

	fam, _ := familyFor("cohere.command-r-plus-v1:0")
	_, _, err := parseBedrockBody(fam, []byte(`{"unexpected":true}`))
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestBedrockGenerate(t *testing.T) {
	inv := &fakeInvoker{body: `{"generation":"done","prompt_token_count":1,"generation_token_count":1}`}
	var regions []string
	b := newTestBedrock(inv, &regions)

	cfg := bedrockConfig("meta.llama3-70b-instruct-v1:0")
	res, err := b.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, cfg)
	require.NoError(t, err)
	assert.Equal(t, "done", res.Content)
	assert.Equal(t, "bedrock", res.Provider)
	assert.Equal(t, "meta.llama3-70b-instruct-v1:0", aws.ToString(inv.input.ModelId))
	assert.Equal(t, "application/json", aws.ToString(inv.input.ContentType))

	cfg.Region = "eu-central-1"
	_, err = b.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, cfg)
	require.NoError(t, err)
	_, err = b.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"", "eu-central-1"}, regions, "one client per region")
}

func TestBedrockGenerate_Throttled(t *testing.T) {
	inv := &fakeInvoker{err: &smithy.GenericAPIError{Code: "ThrottlingException", Message: "Too many tokens"}}
	b := newTestBedrock(inv, nil)

	_, err := b.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, bedrockConfig("cohere.command-r-plus-v1:0"))
	require.Error(t, err)
	assert.True(t, IsRateLimit(err))
}

func TestBedrockGenerate_Timeout(t *testing.T) {
	inv := &fakeInvoker{err: context.DeadlineExceeded}
	b := newTestBedrock(inv, nil)
	b.timeout = time.Millisecond

	_, err := b.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, bedrockConfig("cohere.command-r-plus-v1:0"))
	assert.True(t, IsTimeout(err))
}

func TestBedrockValidateConfig(t *testing.T) {
	b := NewBedrock()
	assert.NoError(t, b.ValidateConfig(bedrockConfig("amazon.titan-text-premier-v1:0")), "no API key needed")
	assert.Error(t, b.ValidateConfig(bedrockConfig("unknown.model")))
	assert.Error(t, b.ValidateConfig(bedrockConfig("")))
}

// isolateAWS points the AWS chain at a shared config file holding profile.
func isolateAWS(t *testing.T, profile string) {
	t.Helper()
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config")
	credentialsFile := filepath.Join(dir, "credentials")
	require.NoError(t, os.WriteFile(configFile, []byte(profile), 0600))
	require.NoError(t, os.WriteFile(credentialsFile, nil, 0600))

	t.Setenv("AWS_CONFIG_FILE", configFile)
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", credentialsFile)
	t.Setenv("AWS_PROFILE", "")
	t.Setenv("AWS_REGION", "")
	t.Setenv("AWS_DEFAULT_REGION", "")
}

func TestLoadAWSConfig(t *testing.T) {
	t.Run("profile region", func(t *testing.T) {
		isolateAWS(t, "[default]\nregion = ap-south-1\n")
		cfg, err := loadAWSConfig(context.Background(), "")
		require.NoError(t, err)
		assert.Equal(t, "ap-south-1", cfg.Region)
	})

	t.Run("explicit region wins", func(t *testing.T) {
		isolateAWS(t, "[default]\nregion = ap-south-1\n")
		cfg, err := loadAWSConfig(context.Background(), "eu-central-1")
		require.NoError(t, err)
		assert.Equal(t, "eu-central-1", cfg.Region)
	})

	t.Run("fallback", func(t *testing.T) {
		isolateAWS(t, "")
		cfg, err := loadAWSConfig(context.Background(), "")
		require.NoError(t, err)
		assert.Equal(t, DefaultBedrockRegion, cfg.Region)
	})
}
