package rules

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"github.com/simonyos/rulefy/internal/summarizer"
)

//go:embed templates/*.md
var embeddedTemplates embed.FS

// DefaultGuidelines returns the built-in guideline document for d.
func DefaultGuidelines(d summarizer.Dialect) (string, error) {
	content, err := embeddedTemplates.ReadFile("templates/" + string(d) + ".md")
	if err != nil {
		return "", fmt.Errorf("no built-in guidelines for dialect %q: %w", d, err)
	}
	return string(content), nil
}

// LoadGuidelines reads the guideline document at path, or the built-in one
// for d when path is empty.
func LoadGuidelines(path string, d summarizer.Dialect) (string, error) {
	if path == "" {
		return DefaultGuidelines(d)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read template: %w", err)
	}
	if strings.TrimSpace(string(content)) == "" {
		return "", fmt.Errorf("template %s is empty", path)
	}
	return string(content), nil
}
