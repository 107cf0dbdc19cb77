package summarizer

import (
	"fmt"
	"regexp"
	"strings"
)

// ExtractionError is returned when the final model output has no tag pair.
type ExtractionError struct {
	Tag string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("model output does not contain a <%s>...</%s> block", e.Tag, e.Tag)
}

var tagPatterns = map[string]*regexp.Regexp{}

func init() {
	for _, d := range Dialects() {
		tag := d.Tag()
		tagPatterns[tag] = regexp.MustCompile(`(?s)<` + tag + `>(.*)</` + tag + `>`)
	}
}

// Extract returns the trimmed text between the first opening tag and the
// last closing tag for the dialect, so a body may mention its own tags.
// Matching is case-sensitive.
func Extract(raw string, d Dialect) (string, error) {
	tag := d.Tag()
	m := tagPatterns[tag].FindStringSubmatch(raw)
	if m == nil {
		return "", &ExtractionError{Tag: tag}
	}
	return strings.TrimSpace(m[1]), nil
}
