// Package digest flattens a repository into the single text document the
// summarizer consumes.
package digest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrEmpty is returned when a source produces no content.
var ErrEmpty = errors.New("repository digest is empty")

// Source produces a digest for the repository at root.
type Source interface {
	Digest(ctx context.Context, root string) (string, error)
}

// File serves a digest that was built ahead of time.
type File struct {
	Path string
}

// Digest reads the file; root is ignored.
func (f File) Digest(ctx context.Context, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.Path == "" {
		return "", errors.New("digest file path is required")
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("failed to read digest: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("%s: %w", f.Path, ErrEmpty)
	}
	return string(data), nil
}
