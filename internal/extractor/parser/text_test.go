package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrimTextShortInputUntouched(t *testing.T) {
	assert.Equal(t, "hello world", TrimText("  hello world  ", 64))
}

func TestTrimTextPrefersPunctuation(t *testing.T) {
	text := "First sentence. Second sentence that keeps going and going"
	got := TrimText(text, 40)
	assert.Equal(t, "First sentence", got)
}

func TestTrimTextHardCutWithoutPunctuation(t *testing.T) {
	text := strings.Repeat("a", 100)
	assert.Equal(t, strings.Repeat("a", 10), TrimText(text, 10))
}

func TestTrimTextRespectsRuneBoundaries(t *testing.T) {
	text := strings.Repeat("ä", 100)
	got := TrimText(text, 11)
	assert.LessOrEqual(t, len(got), 11)
	assert.True(t, strings.HasPrefix(text, got))
}

func TestCollapseNewlines(t *testing.T) {
	in := "para one\r\n\r\n\r\n\r\npara two\nline\n\nlast"
	assert.Equal(t, "para one\n\npara two\nline\n\nlast", CollapseNewlines(in))
}

func TestTrimQuotes(t *testing.T) {
	assert.Equal(t, "value", TrimQuotes(` "value" `))
	assert.Equal(t, "curly", TrimQuotes("“curly”"))
}

func TestFormatList(t *testing.T) {
	assert.Equal(t, "", FormatList(nil))
	assert.Equal(t, "a", FormatList([]string{"a"}))
	assert.Equal(t, "a and b", FormatList([]string{"a", "b"}))
	assert.Equal(t, "a, b, and c", FormatList([]string{"a", "b", "c"}))
}

func TestTagChecker(t *testing.T) {
	c := NewTagChecker("gore", "blood")
	assert.True(t, c.Contains("Gore"))
	assert.True(t, c.Contains("bloodshed"))
	assert.False(t, c.Contains("flowers"))
}

func TestContainsAdultRating(t *testing.T) {
	assert.True(t, ContainsAdultRating("Adult"))
	assert.True(t, ContainsAdultRating("mature content"))
	assert.True(t, ContainsAdultRating("RTA-5042-1996-1400-1577-RTA"))
	assert.False(t, ContainsAdultRating("general"))
}
