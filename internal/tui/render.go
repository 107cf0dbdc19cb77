package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// DefaultWidth is the wrap width used when the terminal size is unknown.
const DefaultWidth = 100

// Render formats a generated rules file for the terminal. Markdown renders as
// markdown; anything else, such as a .roomodes document, is shown as a code
// block in lang.
func Render(content, lang string, width int) (string, error) {
	if width <= 0 {
		width = DefaultWidth
	}
	// Use dark style explicitly to avoid terminal color queries
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}

	doc := content
	if lang != "" && lang != "markdown" {
		doc = "```" + lang + "\n" + strings.TrimRight(content, "\n") + "\n```\n"
	}
	return renderer.Render(doc)
}
