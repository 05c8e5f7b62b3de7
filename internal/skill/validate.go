package skill

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	maxNameLen        = 64
	maxDescriptionLen = 1024
)

var namePattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// ValidateName checks the kebab-case naming rules for skill names.
func ValidateName(name string) error {
	n := utf8.RuneCountInString(name)
	if n < 1 || n > maxNameLen {
		return errors.New("name must be 1-64 characters")
	}
	if strings.HasPrefix(name, "-") || strings.HasSuffix(name, "-") || strings.Contains(name, "--") {
		return errors.New("name must not start/end with '-' and must not contain '--'")
	}
	if !namePattern.MatchString(name) {
		return errors.New("name must match [a-z0-9-]+ (kebab-case)")
	}
	return nil
}

// Validate checks field constraints. The description is expected to be trimmed.
func (d Declaration) Validate() error {
	if err := ValidateName(d.Name); err != nil {
		return err
	}
	if d.Description == "" {
		return errors.New("description must be non-empty")
	}
	if utf8.RuneCountInString(d.Description) > maxDescriptionLen {
		return errors.New("description must be <= 1024 chars")
	}
	return nil
}
