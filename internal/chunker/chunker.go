// Package chunker splits a large text corpus into token-bounded chunks and
// gates processing behind a one-time cost confirmation.
package chunker

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
)

const (
	// DefaultChunkSize is the number of tokens per chunk.
	DefaultChunkSize = 100000

	// DefaultCostPerToken is the estimated price of one input token in USD.
	DefaultCostPerToken = 3.0 / 1_000_000
)

// ErrDeclined is returned by Split when the operator declines the cost
// confirmation. It is a clean abort, not a failure.
var ErrDeclined = errors.New("operation cancelled by user")

// Tokenizer converts between text and token ids.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// Chunk is one contiguous, non-overlapping slice of the tokenized input.
type Chunk struct {
	Text        string
	Index       int
	TokenCount  int
	TotalChunks int
}

// First reports whether c is the first chunk of its sequence.
func (c Chunk) First() bool {
	return c.Index == 0
}

// Last reports whether c is the final chunk of its sequence.
func (c Chunk) Last() bool {
	return c.Index == c.TotalChunks-1
}

// Plan describes the sizing of a split before any chunk is produced.
type Plan struct {
	TotalTokens   int
	ChunkSize     int
	TotalChunks   int
	EstimatedCost float64
}

// ConfirmFunc asks the operator whether to proceed with the given plan.
type ConfirmFunc func(plan Plan) (bool, error)

// AlwaysConfirm approves every plan. Useful for --yes and headless tests.
func AlwaysConfirm(Plan) (bool, error) { return true, nil }

// Chunker partitions text into token-bounded chunks.
type Chunker struct {
	tokenizer Tokenizer
	size      int
	rate      float64
	confirm   ConfirmFunc
	logger    *slog.Logger
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithChunkSize sets the maximum number of tokens per chunk.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		c.size = size
	}
}

// WithCostPerToken sets the per-token rate used for the cost estimate.
func WithCostPerToken(rate float64) Option {
	return func(c *Chunker) {
		c.rate = rate
	}
}

// WithConfirm sets the confirmation gate consulted once per Split.
func WithConfirm(fn ConfirmFunc) Option {
	return func(c *Chunker) {
		c.confirm = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chunker) {
		c.logger = logger
	}
}

// New creates a Chunker. The default confirmation gate approves everything.
func New(tokenizer Tokenizer, opts ...Option) (*Chunker, error) {
	if tokenizer == nil {
		return nil, errors.New("tokenizer is required")
	}
	c := &Chunker{
		tokenizer: tokenizer,
		size:      DefaultChunkSize,
		rate:      DefaultCostPerToken,
		confirm:   AlwaysConfirm,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", c.size)
	}
	if c.rate < 0 {
		return nil, fmt.Errorf("cost per token must not be negative, got %g", c.rate)
	}
	return c, nil
}

// ChunkSize returns the configured tokens per chunk.
func (c *Chunker) ChunkSize() int {
	return c.size
}

// ChunkCount returns how many chunks totalTokens splits into.
func ChunkCount(totalTokens, chunkSize int) int {
	if totalTokens <= chunkSize {
		return 1
	}
	return (totalTokens + chunkSize - 1) / chunkSize
}

// EstimateCost returns the estimated price of processing totalTokens.
func EstimateCost(totalTokens int, rate float64) float64 {
	return float64(totalTokens) * rate
}

// Count sanitizes and tokenizes text and returns its plan without consulting
// the confirmation gate.
func (c *Chunker) Count(text string) Plan {
	return c.plan(len(c.tokenizer.Encode(Sanitize(text))))
}

func (c *Chunker) plan(total int) Plan {
	return Plan{
		TotalTokens:   total,
		ChunkSize:     c.size,
		TotalChunks:   ChunkCount(total, c.size),
		EstimatedCost: EstimateCost(total, c.rate),
	}
}

// Split tokenizes text once and returns its plan together with a lazy
// sequence of chunks. The confirmation gate runs before Split returns; a
// decline yields ErrDeclined and no sequence.
//
// The sequence can be ranged over once. Call Split again to start over.
func (c *Chunker) Split(text string) (Plan, iter.Seq[Chunk], error) {
	tokens := c.tokenizer.Encode(Sanitize(text))
	plan := c.plan(len(tokens))

	c.logger.Info("Tokenized input",
		"tokens", plan.TotalTokens,
		"chunk_size", plan.ChunkSize,
		"chunks", plan.TotalChunks,
		"estimated_cost_usd", fmt.Sprintf("%.4f", plan.EstimatedCost))

	ok, err := c.confirm(plan)
	if err != nil {
		return plan, nil, fmt.Errorf("confirm: %w", err)
	}
	if !ok {
		return plan, nil, ErrDeclined
	}

	consumed := false
	seq := func(yield func(Chunk) bool) {
		if consumed {
			return
		}
		consumed = true

		if len(tokens) == 0 {
			yield(Chunk{Index: 0, TotalChunks: 1})
			return
		}
		for i := 0; i < plan.TotalChunks; i++ {
			start := i * c.size
			end := min(start+c.size, len(tokens))
			chunk := Chunk{
				Text:        c.tokenizer.Decode(tokens[start:end]),
				Index:       i,
				TokenCount:  end - start,
				TotalChunks: plan.TotalChunks,
			}
			if !yield(chunk) {
				return
			}
		}
	}
	return plan, seq, nil
}
