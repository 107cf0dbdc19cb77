package rules

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/simonyos/rulefy/internal/summarizer"
)

// OutputName returns the file name of the rules file for a repository.
func OutputName(d summarizer.Dialect, repoName string) string {
	switch d {
	case summarizer.Cline:
		return ".clinerules"
	case summarizer.Roo:
		return ".roomodes"
	default:
		return repoName + ".rules.mdc"
	}
}

// Format returns the syntax of the generated document, for previews.
func Format(d summarizer.Dialect) string {
	if d == summarizer.Roo {
		return "json"
	}
	return "markdown"
}

// OutputPath joins dir with the output name for the dialect.
func OutputPath(dir string, d summarizer.Dialect, repoName string) string {
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, OutputName(d, repoName))
}

// RepoName derives the repository name from its path.
func RepoName(repoPath string) string {
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return filepath.Base(repoPath)
	}
	return filepath.Base(abs)
}

// writeOutput creates the containing directory and writes content to path.
func writeOutput(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
