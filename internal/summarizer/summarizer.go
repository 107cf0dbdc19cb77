// Package summarizer drives a chunk sequence through a provider, revising a
// running draft with each chunk, and extracts the finished document.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/simonyos/rulefy/internal/chunker"
	"github.com/simonyos/rulefy/internal/llm"
)

// DefaultDelay is the pause between consecutive chunk requests.
const DefaultDelay = 5 * time.Second

// ChunkError reports the chunk and provider a generation failed on.
type ChunkError struct {
	Index       int
	TotalChunks int
	Provider    string
	Err         error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d/%d (%s): %v", e.Index+1, e.TotalChunks, e.Provider, e.Err)
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Summarizer runs the progressive summarization loop.
type Summarizer struct {
	provider llm.Provider
	cfg      llm.Config
	chunker  *chunker.Chunker
	delay    time.Duration
	handler  EventHandler
	logger   *slog.Logger
	sleep    SleepFunc
}

// Option configures a Summarizer.
type Option func(*Summarizer)

// WithDelay sets the pause between chunks. Zero disables it.
func WithDelay(d time.Duration) Option {
	return func(s *Summarizer) {
		if d >= 0 {
			s.delay = d
		}
	}
}

// WithHandler sets the progress observer.
func WithHandler(h EventHandler) Option {
	return func(s *Summarizer) {
		if h != nil {
			s.handler = h
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Summarizer) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSleep replaces the inter-chunk wait, mainly for tests.
func WithSleep(fn SleepFunc) Option {
	return func(s *Summarizer) {
		if fn != nil {
			s.sleep = fn
		}
	}
}

// New creates a Summarizer that sends every chunk to provider with cfg.
func New(provider llm.Provider, cfg llm.Config, c *chunker.Chunker, opts ...Option) (*Summarizer, error) {
	if provider == nil {
		return nil, errors.New("provider is required")
	}
	if c == nil {
		return nil, errors.New("chunker is required")
	}
	s := &Summarizer{
		provider: provider,
		cfg:      cfg,
		chunker:  c,
		delay:    DefaultDelay,
		handler:  NopHandler{},
		logger:   slog.Default(),
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run splits req.Digest, feeds every chunk through the provider in order and
// returns the extracted document. The configuration is validated before the
// digest is tokenized. Any failure aborts the run without partial output.
func (s *Summarizer) Run(ctx context.Context, req Request) (string, error) {
	if err := s.provider.ValidateConfig(s.cfg); err != nil {
		return "", err
	}

	plan, chunks, err := s.chunker.Split(req.Digest)
	if err != nil {
		return "", err
	}

	s.logger.Info("Starting summarization",
		"provider", s.provider.Name(),
		"model", s.cfg.Model,
		"dialect", string(req.Dialect),
		"chunks", plan.TotalChunks)

	draft := ""
	for chunk := range chunks {
		if !chunk.First() && s.delay > 0 {
			s.handler.OnWait(s.delay)
			s.logger.Debug("Waiting before next chunk", "delay", s.delay)
			if err := s.sleep(ctx, s.delay); err != nil {
				return "", err
			}
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		draft, err = s.step(ctx, req, chunk, draft)
		if err != nil {
			return "", err
		}
	}

	content, err := Extract(draft, req.Dialect)
	if err != nil {
		s.logger.Error("Final response has no tagged document",
			"tag", req.Dialect.Tag(),
			"response_bytes", len(draft))
		return "", err
	}
	return content, nil
}

// step sends one chunk and returns the new draft, which is the raw model
// response. Extraction happens only after the last chunk.
func (s *Summarizer) step(ctx context.Context, req Request, chunk chunker.Chunk, draft string) (string, error) {
	var messages []llm.Message
	if chunk.First() {
		messages = CreatePrompt(req, chunk)
	} else {
		messages = UpdatePrompt(req, chunk, draft)
	}

	s.handler.OnChunkStart(chunk)
	s.logger.Info("Processing chunk",
		"chunk", chunk.Index+1,
		"of", chunk.TotalChunks,
		"tokens", chunk.TokenCount)

	start := time.Now()
	res, err := s.provider.Generate(ctx, messages, s.cfg)
	if err != nil {
		return "", &ChunkError{
			Index:       chunk.Index,
			TotalChunks: chunk.TotalChunks,
			Provider:    s.provider.Name(),
			Err:         err,
		}
	}

	attrs := []any{"chunk", chunk.Index + 1, "duration", time.Since(start).Round(time.Millisecond)}
	if res.Usage != nil {
		attrs = append(attrs, "prompt_tokens", res.Usage.PromptTokens, "completion_tokens", res.Usage.CompletionTokens)
	}
	s.logger.Debug("Chunk done", attrs...)

	s.handler.OnChunkDone(chunk, res)
	return res.Content, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
