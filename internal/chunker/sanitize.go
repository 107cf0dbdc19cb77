package chunker

import "strings"

// specialMarkers are tiktoken control sequences that must never reach the
// encoder as literal text.
var specialMarkers = []string{
	"<|endoftext|>",
	"<|endofprompt|>",
	"<|fim_prefix|>",
	"<|fim_middle|>",
	"<|fim_suffix|>",
}

var sanitizer = func() *strings.Replacer {
	pairs := make([]string, 0, 2*(len(specialMarkers)+2))
	for _, m := range specialMarkers {
		pairs = append(pairs, m, "")
	}
	pairs = append(pairs, "\x00", "", "\uFFFD", "")
	return strings.NewReplacer(pairs...)
}()

// Sanitize removes end-of-text markers, NUL bytes and Unicode replacement
// characters from text.
func Sanitize(text string) string {
	return sanitizer.Replace(text)
}
