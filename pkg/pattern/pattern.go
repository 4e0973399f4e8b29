// Package pattern provides the pattern syntax used for site and domain
// matching in configuration.
//
// Matching behavior:
//
//   - Exact (no prefix): case-insensitive exact match
//     Example: "example.com" matches "example.com", "EXAMPLE.COM"
//
//   - Wildcard (*): case-insensitive with * matching any characters
//     Example: "*.example.com" matches "cdn.example.com", "a.b.example.com"
//
//   - Regexp (~): case-sensitive regular expression
//     Example: "~^img[0-9]+\.example\.com$"
//
//   - Regexp (~*): case-insensitive regular expression
//     Example: "~*example\.(com|net)"
package pattern

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind is the matching strategy of a compiled pattern.
type Kind int

const (
	KindExact Kind = iota
	KindWildcard
	KindRegexp
)

// Pattern is a compiled matcher ready for repeated use.
type Pattern struct {
	// Original is the pattern string as written in config.
	Original string
	Kind     Kind

	clean string
	re    *regexp.Regexp
}

// detect splits the pattern prefix from its body.
func detect(pattern string) (Kind, string, bool) {
	if body, ok := strings.CutPrefix(pattern, "~*"); ok {
		return KindRegexp, body, true
	}
	if body, ok := strings.CutPrefix(pattern, "~"); ok {
		return KindRegexp, body, false
	}
	if strings.Contains(pattern, "*") {
		return KindWildcard, pattern, false
	}
	return KindExact, pattern, false
}

// Compile parses a pattern string. Call once at configuration load.
func Compile(pattern string) (*Pattern, error) {
	if pattern == "" {
		return nil, fmt.Errorf("pattern cannot be empty")
	}

	kind, clean, insensitive := detect(pattern)

	p := &Pattern{Original: pattern, Kind: kind, clean: clean}

	if kind == KindRegexp {
		expr := clean
		if insensitive {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid regexp pattern %q: %w", pattern, err)
		}
		p.re = re
	}

	return p, nil
}

// Match reports whether input matches the pattern.
func (p *Pattern) Match(input string) bool {
	if p == nil {
		return false
	}

	switch p.Kind {
	case KindRegexp:
		return p.re.MatchString(input)
	case KindWildcard:
		return matchWildcard(strings.ToLower(input), strings.ToLower(p.clean))
	default:
		return strings.EqualFold(input, p.clean)
	}
}

// matchWildcard matches text against a pattern where * matches any run of
// characters, including across dots.
func matchWildcard(text, pattern string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return text == pattern
	}

	if !strings.HasPrefix(text, parts[0]) {
		return false
	}
	text = text[len(parts[0]):]

	last := parts[len(parts)-1]
	if !strings.HasSuffix(text, last) {
		return false
	}
	text = text[:len(text)-len(last)]

	for _, part := range parts[1 : len(parts)-1] {
		if part == "" {
			continue
		}
		idx := strings.Index(text, part)
		if idx == -1 {
			return false
		}
		text = text[idx+len(part):]
	}

	return true
}
