// Package ignore decides which repository paths are left out of a digest.
// Rules follow .gitignore syntax and come from built-in defaults, the
// repository's .gitignore and an optional .rulefyignore.
package ignore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// Files lists the ignore files read from the repository root, in order.
var Files = []string{".gitignore", ".rulefyignore"}

// defaultPatterns are always ignored.
var defaultPatterns = []string{
	".git/",
	".svn/",
	".hg/",
	"node_modules/",
	"vendor/",
	"__pycache__/",
	".venv/",
	"dist/",
	"build/",
	"target/",
	".idea/",
	".vscode/",
	".DS_Store",
	"Thumbs.db",
	"*.pyc",
	"*.class",
	"*.o",
	"*.so",
	"*.dylib",
	"*.dll",
	"*.exe",
	"*.min.js",
	"*.min.css",
	"*.map",
	"*.lock",
	"package-lock.json",
	"go.sum",
	// Secrets and credentials
	".env",
	".env.*",
	"*.pem",
	"*.key",
	"*_rsa",
	"*_ed25519",
	"*.p12",
	"*.pfx",
	"credentials.json",
	// Generated rules files
	"*.rules.mdc",
	".clinerules",
	".roomodes",
}

// Matcher checks repository-relative paths against the compiled rules.
type Matcher struct {
	root     string
	patterns []string
	compiled *gitignore.GitIgnore
}

// NewMatcher loads the defaults, the ignore files found in root and any
// extra patterns, in that order. Later patterns override earlier ones.
func NewMatcher(root string, extra ...string) (*Matcher, error) {
	m := &Matcher{root: root}
	m.patterns = append(m.patterns, defaultPatterns...)

	for _, name := range Files {
		lines, err := loadFile(filepath.Join(root, name))
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		m.patterns = append(m.patterns, lines...)
	}
	m.patterns = append(m.patterns, extra...)

	m.compiled = gitignore.CompileIgnoreLines(m.patterns...)
	return m, nil
}

// loadFile returns the non-empty, non-comment lines of an ignore file.
func loadFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}

// ShouldIgnore reports whether the path, relative to the root, is excluded.
// Directories are matched with a trailing slash so dir-only rules apply.
func (m *Matcher) ShouldIgnore(path string, isDir bool) bool {
	path = filepath.ToSlash(path)
	if path == "." || path == "" {
		return false
	}
	if isDir && !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return m.compiled.MatchesPath(path)
}

// Root returns the directory the matcher was built for.
func (m *Matcher) Root() string {
	return m.root
}

// Patterns returns the effective rules in evaluation order.
func (m *Matcher) Patterns() []string {
	return append([]string(nil), m.patterns...)
}
