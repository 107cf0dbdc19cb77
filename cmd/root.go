package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/simonyos/rulefy/internal/chunker"
	"github.com/simonyos/rulefy/internal/config"
	"github.com/simonyos/rulefy/internal/digest"
	"github.com/simonyos/rulefy/internal/events"
	"github.com/simonyos/rulefy/internal/llm"
	"github.com/simonyos/rulefy/internal/logging"
	"github.com/simonyos/rulefy/internal/rules"
	"github.com/simonyos/rulefy/internal/summarizer"
	"github.com/simonyos/rulefy/internal/tui"
	"github.com/simonyos/rulefy/internal/tui/theme"
)

// generateFlags holds the root command flags.
type generateFlags struct {
	provider    string
	model       string
	apiKey      string
	baseURL     string
	maxTokens   int
	temperature float64
	region      string

	dialect     string
	description string
	ruleType    string
	template    string
	output      string
	chunkSize   int
	delayMS     int
	keepDrafts  bool

	digestFile string
	repomix    bool
	include    []string

	yes     bool
	print   bool
	natsURL string
	verbose bool
	logJSON bool
}

var flags generateFlags

var rootCmd = &cobra.Command{
	Use:   "rulefy [repo-path]",
	Short: "Generate AI assistant rules files from a codebase",
	Long: `Rulefy flattens a repository into a single digest and has an LLM distill it into
a rules file for an AI coding assistant. Large repositories are split into chunks
and the draft is refined chunk by chunk.

Output dialects:
  cursor  - <repo>.rules.mdc (default)
  cline   - .clinerules
  roo     - .roomodes

Run 'rulefy providers' for the supported providers.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runGenerate,
}

func runGenerate(cmd *cobra.Command, args []string) error {
	repoPath := "."
	if len(args) == 1 {
		repoPath = args[0]
	}

	interactive := logging.IsTerminal(os.Stderr) && !flags.verbose && !flags.logJSON
	logger := logging.Setup(logging.Options{
		Verbose: flags.verbose,
		JSON:    flags.logJSON,
		Quiet:   interactive,
	})
	cfg := config.Get()

	providerName := firstNonEmpty(flags.provider, cfg.DefaultProvider, config.DefaultProvider)
	opts := rules.Options{
		RepoPath:     repoPath,
		Dialect:      flags.dialect,
		Description:  flags.description,
		RuleType:     flags.ruleType,
		TemplatePath: flags.template,
		OutputDir:    flags.output,
		Provider:     providerName,
		Overrides:    overrides(cmd, cfg, providerName),
		ChunkSize:    cfg.ChunkSize,
		KeepDrafts:   flags.keepDrafts,
		RunID:        uuid.New().String(),
	}
	if cmd.Flags().Changed("chunk-size") {
		opts.ChunkSize = flags.chunkSize
	}
	if cmd.Flags().Changed("delay") {
		d := time.Duration(flags.delayMS) * time.Millisecond
		opts.Delay = &d
	} else if cfg.DelayMS != nil {
		d := time.Duration(*cfg.DelayMS) * time.Millisecond
		opts.Delay = &d
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := llm.NewRegistry(llm.WithKeyResolver(config.APIKey), llm.WithLogger(logger))

	confirm, err := confirmFunc()
	if err != nil {
		return err
	}
	pipelineOpts := []rules.Option{rules.WithConfirm(confirm), rules.WithLogger(logger)}

	var handlers []summarizer.EventHandler
	var pub *events.Publisher
	if url := firstNonEmpty(flags.natsURL, cfg.NATSURL); url != "" {
		natsCfg := events.DefaultNATSConfig()
		natsCfg.URL = url
		if pub, err = events.Connect(natsCfg, opts.RunID, logger); err != nil {
			logger.Warn("Progress events disabled", "error", err)
			pub = nil
		} else {
			defer pub.Close()
			handlers = append(handlers, pub)
		}
	}
	var progress *tui.Progress
	if interactive {
		progress = tui.NewProgress(os.Stderr)
		defer progress.Stop()
		handlers = append(handlers, progress)
	}
	pipelineOpts = append(pipelineOpts, rules.WithHandler(summarizer.Handlers(handlers...)))

	pipeline, err := rules.New(registry, digestSource(logger), pipelineOpts...)
	if err != nil {
		return err
	}

	outcome, err := pipeline.Run(ctx, opts)
	if progress != nil {
		progress.Stop()
	}
	if pub != nil {
		path := ""
		if outcome != nil {
			path = outcome.Path
		}
		pub.Finish(path, err)
	}
	if errors.Is(err, chunker.ErrDeclined) {
		fmt.Fprintln(os.Stderr, "Operation cancelled.")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "%s Wrote %s (%d chunk(s))\n", theme.Status(true).Render("✓"), outcome.Path, outcome.Chunks)
	if outcome.DraftDir != "" {
		fmt.Fprintf(os.Stderr, "  drafts kept in %s\n", outcome.DraftDir)
	}
	if flags.print {
		return printOutcome(outcome, opts.Dialect)
	}
	return nil
}

// overrides collects the provider settings from flags and the config file.
// Flags win over the config file; unset values keep the provider defaults.
func overrides(cmd *cobra.Command, cfg *config.Config, providerName string) llm.Overrides {
	o := llm.Overrides{
		Model:   flags.model,
		APIKey:  flags.apiKey,
		BaseURL: firstNonEmpty(flags.baseURL, config.BaseURL(providerName)),
		Region:  firstNonEmpty(flags.region, cfg.Region),
	}
	// The configured default model belongs to the configured default provider
	if o.Model == "" && (cfg.DefaultProvider == "" || cfg.DefaultProvider == providerName) {
		o.Model = cfg.DefaultModel
	}
	if cmd.Flags().Changed("max-tokens") {
		o.MaxTokens = &flags.maxTokens
	}
	if cmd.Flags().Changed("temperature") {
		o.Temperature = &flags.temperature
	}
	return o
}

func digestSource(logger *slog.Logger) digest.Source {
	switch {
	case flags.digestFile != "":
		return digest.File{Path: flags.digestFile}
	case flags.repomix:
		return digest.NewRepomix(digest.WithRepomixLogger(logger))
	default:
		return digest.NewWalker(digest.WithInclude(flags.include...), digest.WithLogger(logger))
	}
}

// confirmFunc picks the cost confirmation gate. Without a terminal to ask on,
// the run needs --yes.
func confirmFunc() (chunker.ConfirmFunc, error) {
	if flags.yes {
		return chunker.AlwaysConfirm, nil
	}
	if !logging.IsTerminal(os.Stdin) {
		return nil, errors.New("stdin is not a terminal; pass --yes to skip the cost confirmation")
	}
	return tui.Confirm(os.Stdin, os.Stderr), nil
}

func printOutcome(outcome *rules.Outcome, dialectName string) error {
	d, err := summarizer.ParseDialect(dialectName)
	if err != nil {
		return err
	}
	if !logging.IsTerminal(os.Stdout) {
		_, err := fmt.Fprint(os.Stdout, outcome.Content)
		return err
	}
	rendered, err := tui.Render(outcome.Content, rules.Format(d), tui.DefaultWidth)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(os.Stdout, rendered)
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// describe prefixes provider failures with their category.
func describe(err error) string {
	var cfgErr *llm.ConfigError
	switch {
	case errors.As(err, &cfgErr):
		return "invalid configuration: " + err.Error()
	case llm.IsRateLimit(err):
		return "rate limited: " + err.Error()
	case llm.IsAuth(err):
		return "authentication failed: " + err.Error()
	case llm.IsTimeout(err):
		return "request timed out: " + err.Error()
	case llm.IsNetwork(err):
		return "network error: " + err.Error()
	case errors.Is(err, context.Canceled):
		return "interrupted"
	}
	return err.Error()
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, theme.Status(false).Render("Error:"), describe(err))
		os.Exit(1)
	}
}

func init() {
	addGenerateFlags(rootCmd)
	rootCmd.MarkFlagsMutuallyExclusive("digest", "repomix")
}

// addGenerateFlags registers the generation flags on c.
func addGenerateFlags(c *cobra.Command) {
	f := c.Flags()
	f.StringVarP(&flags.provider, "provider", "p", "", "LLM provider (see 'rulefy providers')")
	f.StringVarP(&flags.model, "model", "m", "", "Model to use (provider-specific)")
	f.StringVar(&flags.apiKey, "api-key", "", "API key (overrides config and environment)")
	f.StringVar(&flags.baseURL, "base-url", "", "Base URL for OpenAI-compatible servers")
	f.IntVar(&flags.maxTokens, "max-tokens", llm.DefaultMaxTokens, "Maximum tokens per response")
	f.Float64Var(&flags.temperature, "temperature", llm.DefaultTemperature, "Sampling temperature (0-2)")
	f.StringVar(&flags.region, "region", "", "AWS region for bedrock")

	f.StringVar(&flags.dialect, "dialect", string(summarizer.Cursor), "Output dialect (cursor, cline, roo)")
	f.StringVar(&flags.description, "description", "", "Short description of the project")
	f.StringVar(&flags.ruleType, "rule-type", "", "Kind of rules to emphasize")
	f.StringVar(&flags.template, "template", "", "Guidelines template file (default: built-in)")
	f.StringVarP(&flags.output, "output", "o", ".", "Directory to write the rules file to")
	f.IntVar(&flags.chunkSize, "chunk-size", chunker.DefaultChunkSize, "Tokens per chunk")
	f.IntVar(&flags.delayMS, "delay", int(summarizer.DefaultDelay/time.Millisecond), "Delay between chunks in milliseconds")
	f.BoolVar(&flags.keepDrafts, "keep-drafts", false, "Keep each chunk's raw response in the temp dir")

	f.StringVar(&flags.digestFile, "digest", "", "Use a pre-built digest file instead of walking the repository")
	f.BoolVar(&flags.repomix, "repomix", false, "Build the digest with repomix (npx)")
	f.StringSliceVar(&flags.include, "include", nil, "Only include files matching these globs")

	f.BoolVarP(&flags.yes, "yes", "y", false, "Skip the cost confirmation")
	f.BoolVar(&flags.print, "print", false, "Print the generated rules after writing them")
	f.StringVar(&flags.natsURL, "nats-url", "", "Publish progress events to this NATS server")
	f.BoolVarP(&flags.verbose, "verbose", "v", false, "Debug logging")
	f.BoolVar(&flags.logJSON, "log-json", false, "Log JSON lines")
}
