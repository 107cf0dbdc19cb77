// Package rules turns a repository into a rules file: it gathers the digest
// and guidelines, runs the summarizer and writes the result.
package rules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/simonyos/rulefy/internal/chunker"
	"github.com/simonyos/rulefy/internal/digest"
	"github.com/simonyos/rulefy/internal/llm"
	"github.com/simonyos/rulefy/internal/summarizer"
)

// Options describes one generation.
type Options struct {
	RepoPath     string
	Dialect      string
	Description  string
	RuleType     string
	TemplatePath string
	OutputDir    string

	// Provider defaults to anthropic when empty.
	Provider  string
	Overrides llm.Overrides

	// ChunkSize of zero uses chunker.DefaultChunkSize. A nil Delay uses
	// summarizer.DefaultDelay.
	ChunkSize int
	Delay     *time.Duration

	// KeepDrafts saves each raw chunk response under the temp dir.
	KeepDrafts bool

	// RunID identifies the run; generated when empty.
	RunID string
}

// Outcome is the result of a successful run.
type Outcome struct {
	Path     string
	Content  string
	RunID    string
	Chunks   int
	DraftDir string

	// Problems lists structural issues found by Check.
	Problems []string
}

// Pipeline runs generations against a provider registry.
type Pipeline struct {
	registry  *llm.Registry
	source    digest.Source
	confirm   chunker.ConfirmFunc
	handler   summarizer.EventHandler
	logger    *slog.Logger
	tokenizer chunker.Tokenizer
	draftRoot string
	sleep     summarizer.SleepFunc
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConfirm sets the cost confirmation gate.
func WithConfirm(fn chunker.ConfirmFunc) Option {
	return func(p *Pipeline) {
		if fn != nil {
			p.confirm = fn
		}
	}
}

// WithHandler adds a progress observer.
func WithHandler(h summarizer.EventHandler) Option {
	return func(p *Pipeline) {
		if h != nil {
			p.handler = h
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithTokenizer replaces the default cl100k_base tokenizer.
func WithTokenizer(t chunker.Tokenizer) Option {
	return func(p *Pipeline) {
		if t != nil {
			p.tokenizer = t
		}
	}
}

// WithDraftRoot sets the directory drafts are kept under, os.TempDir() by default.
func WithDraftRoot(dir string) Option {
	return func(p *Pipeline) {
		if dir != "" {
			p.draftRoot = dir
		}
	}
}

// WithSleep replaces the inter-chunk wait.
func WithSleep(fn summarizer.SleepFunc) Option {
	return func(p *Pipeline) {
		p.sleep = fn
	}
}

// New creates a Pipeline reading repositories through source.
func New(registry *llm.Registry, source digest.Source, opts ...Option) (*Pipeline, error) {
	if registry == nil {
		return nil, errors.New("registry is required")
	}
	if source == nil {
		return nil, errors.New("digest source is required")
	}
	p := &Pipeline{
		registry:  registry,
		source:    source,
		confirm:   chunker.AlwaysConfirm,
		handler:   summarizer.NopHandler{},
		logger:    slog.Default(),
		draftRoot: os.TempDir(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run generates the rules file described by opts and writes it to disk.
// Nothing is written when the operator declines or any chunk fails.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Outcome, error) {
	runID := opts.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	logger := p.logger.With("run_id", runID)

	dialect, err := summarizer.ParseDialect(opts.Dialect)
	if err != nil {
		return nil, err
	}

	providerName := opts.Provider
	if providerName == "" {
		providerName = "anthropic"
	}
	provider, err := p.registry.Get(providerName)
	if err != nil {
		return nil, err
	}
	cfg, err := p.registry.DefaultConfig(providerName)
	if err != nil {
		return nil, err
	}
	cfg = cfg.Merge(opts.Overrides)
	if err := provider.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	repoPath := opts.RepoPath
	if repoPath == "" {
		repoPath = "."
	}
	logger.Info("Building repository digest", "repo", repoPath)
	text, err := p.source.Digest(ctx, repoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to build digest: %w", err)
	}

	guidelines, err := LoadGuidelines(opts.TemplatePath, dialect)
	if err != nil {
		return nil, err
	}

	tokenizer := p.tokenizer
	if tokenizer == nil {
		if tokenizer, err = chunker.NewTiktoken(chunker.DefaultEncoding); err != nil {
			return nil, err
		}
	}
	chunkOpts := []chunker.Option{chunker.WithConfirm(p.confirm), chunker.WithLogger(logger)}
	if opts.ChunkSize > 0 {
		chunkOpts = append(chunkOpts, chunker.WithChunkSize(opts.ChunkSize))
	}
	c, err := chunker.New(tokenizer, chunkOpts...)
	if err != nil {
		return nil, err
	}

	count := &chunkCounter{}
	handlers := []summarizer.EventHandler{count, p.handler}
	var drafts *draftSink
	if opts.KeepDrafts {
		drafts = newDraftSink(p.draftRoot, runID, logger)
		handlers = append(handlers, drafts)
	}

	sumOpts := []summarizer.Option{
		summarizer.WithHandler(summarizer.Handlers(handlers...)),
		summarizer.WithLogger(logger),
		summarizer.WithSleep(p.sleep),
	}
	if opts.Delay != nil {
		sumOpts = append(sumOpts, summarizer.WithDelay(*opts.Delay))
	}
	s, err := summarizer.New(provider, cfg, c, sumOpts...)
	if err != nil {
		return nil, err
	}

	content, err := s.Run(ctx, summarizer.Request{
		Digest:      text,
		Guidelines:  guidelines,
		Description: opts.Description,
		RuleType:    opts.RuleType,
		Dialect:     dialect,
	})
	if drafts != nil && count.done > 0 {
		logger.Info("Kept chunk drafts", "dir", drafts.dir)
	}
	if err != nil {
		return nil, err
	}

	problems := Check(dialect, content)
	for _, problem := range problems {
		logger.Warn("Generated document may need review", "problem", problem)
	}

	path := OutputPath(opts.OutputDir, dialect, RepoName(repoPath))
	if err := writeOutput(path, content); err != nil {
		return nil, err
	}
	logger.Info("Wrote rules file", "path", path, "chunks", count.done, "bytes", len(content))

	out := &Outcome{
		Path:     path,
		Content:  content,
		RunID:    runID,
		Chunks:   count.done,
		Problems: problems,
	}
	if drafts != nil {
		out.DraftDir = drafts.dir
	}
	return out, nil
}

// chunkCounter counts completed chunks.
type chunkCounter struct {
	done int
}

func (c *chunkCounter) OnChunkStart(chunker.Chunk) {}

func (c *chunkCounter) OnChunkDone(chunker.Chunk, *llm.Result) {
	c.done++
}

func (c *chunkCounter) OnWait(time.Duration) {}
