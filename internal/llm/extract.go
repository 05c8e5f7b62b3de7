package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when no JSON object can be located in model output.
var ErrNoJSON = errors.New("model did not return JSON")

var (
	fenceOpen  = regexp.MustCompile("^```[a-zA-Z0-9_-]*\n")
	fenceClose = regexp.MustCompile("\n```$")
)

// ExtractJSON parses a JSON object out of model output. Markdown code fences
// are stripped first; if the remainder does not parse, the first balanced
// {...} span is tried.
func ExtractJSON(text string) (map[string]any, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = fenceOpen.ReplaceAllString(text, "")
		text = fenceClose.ReplaceAllString(text, "")
		text = strings.TrimSpace(text)
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(text), &out); err == nil && out != nil {
		return out, nil
	}

	span, ok := firstObjectSpan(text)
	if !ok {
		return nil, ErrNoJSON
	}
	if err := json.Unmarshal([]byte(span), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoJSON, err)
	}
	return out, nil
}

// firstObjectSpan returns the first brace-balanced object, ignoring braces
// inside string literals.
func firstObjectSpan(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	for start >= 0 {
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(s); i++ {
			c := s[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case c == '\\':
					escaped = true
				case c == '"':
					inString = false
				}
				continue
			}
			switch c {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}
