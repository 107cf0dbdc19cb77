// Package logging builds the slog logger used across rulefy, backed by zerolog.
package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/phsym/zeroslog"
	"github.com/rs/zerolog"
)

// Options controls the logger output.
type Options struct {
	Verbose bool
	JSON    bool

	// Quiet raises the level to warnings, for when a progress display owns
	// the terminal. Verbose wins over Quiet.
	Quiet bool
}

// New returns a logger writing to w. Terminals get zerolog's console format
// unless JSON is forced; everything else gets JSON lines.
func New(w io.Writer, opts Options) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case opts.Verbose:
		level = slog.LevelDebug
	case opts.Quiet:
		level = slog.LevelWarn
	}

	out := w
	if !opts.JSON && IsTerminal(w) {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Stamp}
	}
	log := zerolog.New(out).With().Timestamp().Logger()

	return slog.New(zeroslog.NewHandler(log, &zeroslog.HandlerOptions{Level: level}))
}

// Setup installs a stderr logger as the slog default and returns it.
func Setup(opts Options) *slog.Logger {
	logger := New(os.Stderr, opts)
	slog.SetDefault(logger)
	return logger
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
