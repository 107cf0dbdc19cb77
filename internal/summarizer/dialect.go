package summarizer

import (
	"fmt"
	"strings"
)

// Dialect selects the output format of the generated rules file.
type Dialect string

const (
	Cursor Dialect = "cursor"
	Cline  Dialect = "cline"
	Roo    Dialect = "roo"
)

// Dialects returns every supported dialect.
func Dialects() []Dialect {
	return []Dialect{Cursor, Cline, Roo}
}

// ParseDialect parses a dialect name, case-insensitively.
func ParseDialect(s string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(strings.TrimSpace(s))); d {
	case Cursor, Cline, Roo:
		return d, nil
	case "":
		return Cursor, nil
	}
	return "", fmt.Errorf("unknown dialect %q (expected cursor, cline or roo)", s)
}

// Tag returns the delimiter tag name wrapping the finished document.
func (d Dialect) Tag() string {
	switch d {
	case Cline:
		return "clinerules"
	case Roo:
		return "roomodes"
	default:
		return "cursorrules"
	}
}

// document names what the dialect produces, for prompt wording.
func (d Dialect) document() string {
	switch d {
	case Cline:
		return "Cline rules file"
	case Roo:
		return "Roo Code custom modes configuration"
	default:
		return "Cursor rules file"
	}
}

// persona is the system message for the dialect.
func (d Dialect) persona() string {
	if d == Roo {
		return "You are an expert software architect who writes Roo Code custom mode configurations. " +
			"You study codebases and define focused modes with clear role definitions, tool groups and " +
			"custom instructions that fit the project."
	}
	return fmt.Sprintf("You are an expert software engineer who writes %ss for AI coding assistants. "+
		"You study codebases and distill their conventions, architecture and workflows into precise, "+
		"actionable rules.", d.document())
}
