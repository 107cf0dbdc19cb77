package digest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// DefaultRepomixTimeout bounds a single repomix invocation.
const DefaultRepomixTimeout = 5 * time.Minute

// Repomix builds the digest with the external repomix tool.
type Repomix struct {
	command []string
	timeout time.Duration
	logger  *slog.Logger
}

// RepomixOption configures a Repomix source.
type RepomixOption func(*Repomix)

// WithCommand replaces the launcher, "npx --yes repomix" by default.
func WithCommand(name string, args ...string) RepomixOption {
	return func(r *Repomix) {
		r.command = append([]string{name}, args...)
	}
}

// WithTimeout sets the invocation timeout.
func WithTimeout(d time.Duration) RepomixOption {
	return func(r *Repomix) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithRepomixLogger sets the logger.
func WithRepomixLogger(l *slog.Logger) RepomixOption {
	return func(r *Repomix) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRepomix creates a Repomix source.
func NewRepomix(opts ...RepomixOption) *Repomix {
	r := &Repomix{
		command: []string{"npx", "--yes", "repomix"},
		timeout: DefaultRepomixTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Digest runs repomix against root and returns its plain-style stdout.
func (r *Repomix) Digest(ctx context.Context, root string) (string, error) {
	execCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	args := append(append([]string{}, r.command[1:]...), "--stdout", "--style", "plain", root)
	cmd := exec.CommandContext(execCtx, r.command[0], args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	r.logger.Debug("Running repomix", "command", strings.Join(cmd.Args, " "))
	err := cmd.Run()
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("repomix timed out after %s", r.timeout)
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("repomix failed: %w", err)
		}
		return "", fmt.Errorf("repomix failed: %w: %s", err, msg)
	}

	out := stdout.String()
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("repomix produced no output: %w", ErrEmpty)
	}
	return out, nil
}
