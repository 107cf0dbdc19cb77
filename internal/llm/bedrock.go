package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

const (
	// DefaultBedrockRegion is used when neither the flags, the config nor the
	// AWS environment and profile name a region.
	DefaultBedrockRegion = "us-east-1"

	defaultBedrockTimeout = 60 * time.Second
)

// bedrockInvoker is the subset of the Bedrock runtime client the provider uses.
type bedrockInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// invokerFactory builds a client for a region.
type invokerFactory func(ctx context.Context, region string) (bedrockInvoker, error)

// Bedrock implements Provider over AWS Bedrock InvokeModel. Credentials come
// from the standard AWS chain, so no API key is needed.
type Bedrock struct {
	timeout time.Duration
	factory invokerFactory

	mu      sync.Mutex
	clients map[string]bedrockInvoker
}

// NewBedrock creates a Bedrock provider using the default AWS configuration.
func NewBedrock() *Bedrock {
	return &Bedrock{
		timeout: defaultBedrockTimeout,
		factory: defaultInvokerFactory,
		clients: map[string]bedrockInvoker{},
	}
}

func defaultInvokerFactory(ctx context.Context, region string) (bedrockInvoker, error) {
	awsCfg, err := loadAWSConfig(ctx, region)
	if err != nil {
		return nil, err
	}
	return bedrockruntime.NewFromConfig(awsCfg), nil
}

// loadAWSConfig loads the default AWS chain. An explicit region wins over
// the environment and the shared profile.
func loadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	if awsCfg.Region == "" {
		awsCfg.Region = DefaultBedrockRegion
	}
	return awsCfg, nil
}

// Name returns the provider identifier.
func (b *Bedrock) Name() string { return "bedrock" }

// Models returns well-known Bedrock model ids.
func (b *Bedrock) Models() []string {
	return []string{
		"anthropic.claude-3-5-sonnet-20240620-v1:0",
		"anthropic.claude-3-haiku-20240307-v1:0",
		"meta.llama3-70b-instruct-v1:0",
		"mistral.mistral-large-2402-v1:0",
		"amazon.titan-text-premier-v1:0",
		"cohere.command-r-plus-v1:0",
	}
}

// ValidateConfig checks cfg and that the model belongs to a known family.
func (b *Bedrock) ValidateConfig(cfg Config) error {
	if err := validate(cfg, false); err != nil {
		return err
	}
	_, err := familyFor(cfg.Model)
	return err
}

func (b *Bedrock) client(ctx context.Context, region string) (bedrockInvoker, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.clients[region]; ok {
		return c, nil
	}
	c, err := b.factory(ctx, region)
	if err != nil {
		return nil, err
	}
	b.clients[region] = c
	return c, nil
}

// Generate renders the family payload, invokes the model and parses the reply.
func (b *Bedrock) Generate(ctx context.Context, messages []Message, cfg Config) (*Result, error) {
	if err := validate(cfg, false); err != nil {
		return nil, err
	}
	fam, err := familyFor(cfg.Model)
	if err != nil {
		return nil, err
	}

	body, err := buildBedrockBody(fam, messages, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	client, err := b.client(ctx, cfg.Region)
	if err != nil {
		return nil, Classify(b.Name(), 0, err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	out, err := client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(cfg.Model),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return nil, Classify(b.Name(), 0, err)
	}

	text, usage, err := parseBedrockBody(fam, out.Body)
	if err != nil {
		return nil, err
	}
	return &Result{
		Content:  text,
		Usage:    usage,
		Model:    cfg.Model,
		Provider: b.Name(),
	}, nil
}

var _ Provider = (*Bedrock)(nil)
