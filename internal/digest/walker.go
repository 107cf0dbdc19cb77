package digest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/simonyos/rulefy/internal/ignore"
)

const (
	// DefaultMaxFileSize skips files larger than 1 MiB.
	DefaultMaxFileSize = 1 << 20

	// sniffSize is how much of a file is inspected for binary content.
	sniffSize = 8000

	separator     = "================================================================"
	fileSeparator = "================"
)

// Walker builds a digest natively by walking the repository tree.
type Walker struct {
	includes    []string
	extraIgnore []string
	maxFileSize int64
	logger      *slog.Logger
}

// WalkerOption configures a Walker.
type WalkerOption func(*Walker)

// WithInclude restricts the digest to files matching any of the doublestar
// globs, relative to the root.
func WithInclude(globs ...string) WalkerOption {
	return func(w *Walker) {
		w.includes = append(w.includes, globs...)
	}
}

// WithIgnore adds gitignore-style patterns on top of the repository's own.
func WithIgnore(patterns ...string) WalkerOption {
	return func(w *Walker) {
		w.extraIgnore = append(w.extraIgnore, patterns...)
	}
}

// WithMaxFileSize sets the largest file included, in bytes.
func WithMaxFileSize(n int64) WalkerOption {
	return func(w *Walker) {
		if n > 0 {
			w.maxFileSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) WalkerOption {
	return func(w *Walker) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWalker creates a Walker.
func NewWalker(opts ...WalkerOption) *Walker {
	w := &Walker{
		maxFileSize: DefaultMaxFileSize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type entry struct {
	rel   string
	depth int
	isDir bool
}

// Digest walks root and renders every included text file.
func (w *Walker) Digest(ctx context.Context, root string) (string, error) {
	for _, g := range w.includes {
		if !doublestar.ValidatePattern(g) {
			return "", fmt.Errorf("invalid include pattern %q", g)
		}
	}

	info, err := os.Stat(root)
	if err != nil {
		return "", fmt.Errorf("failed to open repository: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("repository path %s is not a directory", root)
	}

	matcher, err := ignore.NewMatcher(root, w.extraIgnore...)
	if err != nil {
		return "", err
	}

	var tree []entry
	var files []string
	skipped := 0

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Debug("Skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if matcher.ShouldIgnore(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		depth := strings.Count(rel, "/")
		if d.IsDir() {
			tree = append(tree, entry{rel: rel, depth: depth, isDir: true})
			return nil
		}
		if !w.included(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil || info.Size() > w.maxFileSize {
			skipped++
			return nil
		}
		if binary, err := isBinary(path); err != nil || binary {
			skipped++
			return nil
		}

		tree = append(tree, entry{rel: rel, depth: depth})
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", fmt.Errorf("no files to digest in %s: %w", root, ErrEmpty)
	}

	w.logger.Info("Walked repository", "root", root, "files", len(files), "skipped", skipped)
	return render(root, pruneEmptyDirs(tree), files)
}

func (w *Walker) included(rel string) bool {
	if len(w.includes) == 0 {
		return true
	}
	for _, g := range w.includes {
		if ok, _ := doublestar.Match(g, rel); ok {
			return true
		}
	}
	return false
}

// pruneEmptyDirs drops directories with no included files below them.
func pruneEmptyDirs(tree []entry) []entry {
	keep := make(map[string]bool)
	for _, e := range tree {
		if e.isDir {
			continue
		}
		for dir := filepath.ToSlash(filepath.Dir(e.rel)); dir != "."; dir = filepath.ToSlash(filepath.Dir(dir)) {
			keep[dir] = true
		}
	}
	out := tree[:0]
	for _, e := range tree {
		if !e.isDir || keep[e.rel] {
			out = append(out, e)
		}
	}
	return out
}

func isBinary(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, sniffSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return false, err
	}
	head := buf[:n]
	if bytes.IndexByte(head, 0) >= 0 {
		return true, nil
	}
	// A multi-byte rune may be cut at the sniff boundary.
	if n == sniffSize {
		for i := 0; i < utf8.UTFMax-1 && !utf8.Valid(head); i++ {
			head = head[:len(head)-1]
		}
	}
	return !utf8.Valid(head), nil
}

func render(root string, tree []entry, files []string) (string, error) {
	var b strings.Builder

	b.WriteString("This file is a merged representation of the repository ")
	b.WriteString(filepath.Base(root))
	b.WriteString(", combined into a single document.\n\n")

	b.WriteString(separator + "\nDirectory Structure\n" + separator + "\n")
	for _, e := range tree {
		b.WriteString(strings.Repeat("  ", e.depth))
		b.WriteString(filepath.Base(e.rel))
		if e.isDir {
			b.WriteString("/")
		}
		b.WriteString("\n")
	}

	b.WriteString("\n" + separator + "\nFiles\n" + separator + "\n")
	for _, rel := range files {
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", rel, err)
		}
		b.WriteString("\n" + fileSeparator + "\nFile: " + rel + "\n" + fileSeparator + "\n")
		b.Write(data)
		if len(data) > 0 && data[len(data)-1] != '\n' {
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}
