package rules

import (
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/simonyos/rulefy/internal/summarizer"
)

// ErrMissingFrontmatter is returned for a cursor document without a YAML header.
var ErrMissingFrontmatter = errors.New("missing YAML front matter")

// FrontMatter is the header of a Cursor .mdc rules file.
type FrontMatter struct {
	Description string `yaml:"description"`
	Globs       any    `yaml:"globs"`
	AlwaysApply bool   `yaml:"alwaysApply"`
}

// ParseFrontMatter splits a cursor document into its header and body.
func ParseFrontMatter(content string) (*FrontMatter, string, error) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "---") {
		return nil, "", ErrMissingFrontmatter
	}

	// Find the closing ---
	rest := content[3:]
	endIdx := strings.Index(rest, "\n---")
	if endIdx == -1 {
		return nil, "", ErrMissingFrontmatter
	}

	var fm FrontMatter
	if err := yaml.Unmarshal([]byte(rest[:endIdx]), &fm); err != nil {
		return nil, "", fmt.Errorf("invalid front matter: %w", err)
	}
	return &fm, strings.TrimSpace(rest[endIdx+4:]), nil
}

// Check reports structural problems in a generated document. Problems are
// advisory; the document is written regardless.
func Check(d summarizer.Dialect, content string) []string {
	var problems []string
	switch d {
	case summarizer.Cursor:
		fm, body, err := ParseFrontMatter(content)
		if err != nil {
			problems = append(problems, err.Error())
			break
		}
		if fm.Description == "" {
			problems = append(problems, "front matter has no description")
		}
		if body == "" {
			problems = append(problems, "document has no rules after the front matter")
		}
	case summarizer.Roo:
		var doc struct {
			CustomModes []map[string]any `json:"customModes"`
		}
		if err := json.Unmarshal([]byte(content), &doc); err != nil {
			problems = append(problems, "not valid JSON: "+err.Error())
			break
		}
		if len(doc.CustomModes) == 0 {
			problems = append(problems, "customModes is empty")
		}
		for i, mode := range doc.CustomModes {
			for _, field := range []string{"slug", "name", "roleDefinition"} {
				if s, _ := mode[field].(string); s == "" {
					problems = append(problems, fmt.Sprintf("mode %d has no %s", i, field))
				}
			}
		}
	default:
		if strings.TrimSpace(content) == "" {
			problems = append(problems, "document is empty")
		}
	}
	return problems
}
