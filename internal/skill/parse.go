package skill

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingOpeningDelimiter indicates the file does not start with a "---" line.
	ErrMissingOpeningDelimiter = errors.New("SKILL.md must start with '---' YAML frontmatter boundary")
	// ErrMissingClosingDelimiter indicates the frontmatter block is never closed.
	ErrMissingClosingDelimiter = errors.New("SKILL.md frontmatter missing closing '---' boundary")
)

var boundary = regexp.MustCompile(`^---\s*$`)

// SplitFrontmatter returns the YAML block and the Markdown body of a
// declaration file. The body is left-trimmed.
func SplitFrontmatter(markdown string) (string, string, error) {
	lines := strings.Split(strings.ReplaceAll(markdown, "\r\n", "\n"), "\n")
	if len(lines) == 0 || !boundary.MatchString(lines[0]) {
		return "", "", ErrMissingOpeningDelimiter
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		if boundary.MatchString(lines[i]) {
			end = i
			break
		}
	}
	if end < 0 {
		return "", "", ErrMissingClosingDelimiter
	}

	fm := strings.TrimSpace(strings.Join(lines[1:end], "\n")) + "\n"
	body := strings.TrimLeft(strings.Join(lines[end+1:], "\n"), " \t\r\n")
	return fm, body, nil
}

// ParseDeclaration parses and validates the declaration at path. The declared
// name must match the name of the folder containing the file.
func ParseDeclaration(path string) (Declaration, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Declaration{}, fmt.Errorf("read %s: %w", path, err)
	}
	fm, _, err := SplitFrontmatter(string(raw))
	if err != nil {
		return Declaration{}, fmt.Errorf("%w (%s)", err, path)
	}

	var decl Declaration
	if err := yaml.Unmarshal([]byte(fm), &decl); err != nil {
		return Declaration{}, fmt.Errorf("invalid YAML frontmatter in %s: %w", path, err)
	}
	decl.Description = strings.TrimSpace(decl.Description)

	if err := decl.Validate(); err != nil {
		return Declaration{}, fmt.Errorf("frontmatter schema validation failed for %s: %w", path, err)
	}

	parent := filepath.Base(filepath.Dir(path))
	if decl.Name != parent {
		return Declaration{}, fmt.Errorf("skill name '%s' must match directory name '%s' for %s", decl.Name, parent, path)
	}
	return decl, nil
}

// LoadBody reads the Markdown instructions following the frontmatter.
func LoadBody(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	_, body, err := SplitFrontmatter(string(raw))
	if err != nil {
		return "", fmt.Errorf("%w (%s)", err, path)
	}
	return body, nil
}
