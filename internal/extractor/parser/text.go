package parser

import (
	"strings"
	"unicode/utf8"
)

// TrimText clamps text to at most max bytes without cutting mid-sentence:
// it truncates at the punctuation mark nearest the limit, falling back to
// a hard rune-boundary cut when the text has none.
func TrimText(text string, max int) string {
	text = strings.TrimSpace(text)

	if len(text) <= max {
		return text
	}

	text = text[:max]
	for !utf8.ValidString(text) {
		text = text[:len(text)-1]
	}

	for i := len(text); i > 0; {
		r, size := utf8.DecodeLastRuneInString(text[:i])
		i -= size
		switch r {
		case '.', ',', '!', '?', '\n':
			return strings.TrimRight(text[:i], " \t\r\n")
		}
	}

	return text
}

// CollapseNewlines removes carriage returns, collapses runs of three or
// more newlines down to two, and trims surrounding whitespace.
func CollapseNewlines(text string) string {
	text = strings.TrimSpace(text)
	if text == "" || !strings.ContainsAny(text, "\r\n") {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))

	i := 0
	for i < len(text) {
		c := text[i]
		if c != '\r' && c != '\n' {
			b.WriteByte(c)
			i++
			continue
		}

		newlines := 0
		for i < len(text) && (text[i] == '\r' || text[i] == '\n') {
			if text[i] == '\n' {
				newlines++
			}
			i++
		}

		switch {
		case newlines <= 1:
			b.WriteByte('\n')
		default:
			b.WriteString("\n\n")
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// TrimQuotes strips surrounding whitespace and plain or typographic
// quotation marks.
func TrimQuotes(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		switch r {
		case '"', '\'', '“', '”', ' ', '\t', '\r', '\n':
			return true
		}
		return false
	})
}

// FormatList joins items with commas and a final "and", producing
// human-readable footers like "a, b, and c".
func FormatList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	}
	return strings.Join(items[:len(items)-1], ", ") + ", and " + items[len(items)-1]
}

// TagChecker matches tags against a fixed list of prefixes,
// case-insensitively. "mature_themes" matches a checker built with
// "mature".
type TagChecker struct {
	prefixes []string
}

func NewTagChecker(tags ...string) *TagChecker {
	c := &TagChecker{prefixes: make([]string, 0, len(tags))}
	for _, tag := range tags {
		c.prefixes = append(c.prefixes, strings.ToLower(tag))
	}
	return c
}

func (c *TagChecker) Contains(tag string) bool {
	tag = strings.ToLower(tag)
	for _, p := range c.prefixes {
		if strings.HasPrefix(tag, p) {
			return true
		}
	}
	return false
}
