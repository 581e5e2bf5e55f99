package feedback

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeStripsHTMLTags(t *testing.T) {
	assert.Equal(t, "Hello world", Sanitize("<p>Hello <b>world</b></p>"))
	assert.Equal(t, "alert('x')", Sanitize("<script>alert('x')</script>"))
}

func TestSanitizeTrimsWhitespace(t *testing.T) {
	assert.Equal(t, "payment failed", Sanitize("   payment failed \n\t"))
}

func TestSanitizeTruncatesLongInput(t *testing.T) {
	long := strings.Repeat("a", 600)
	got := Sanitize(long)
	assert.Equal(t, 512, len([]rune(got)))
}

func TestSanitizeTruncatesRunesNotBytes(t *testing.T) {
	long := strings.Repeat("日", 600)
	got := Sanitize(long)
	assert.Equal(t, 512, len([]rune(got)))
	assert.True(t, strings.HasPrefix(long, got))
}

func TestSanitizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"<p>Hello</p>",
		"  padded  ",
		strings.Repeat("x", 1000),
		strings.Repeat("y", 511) + " " + strings.Repeat("z", 100),
		"<div>" + strings.Repeat("w", 520) + "</div>",
	}
	for _, input := range inputs {
		once := Sanitize(input)
		assert.Equal(t, once, Sanitize(once), "input %q", input)
	}
}

func TestContentHashStableAcrossEquivalentInputs(t *testing.T) {
	a := ContentHash(Sanitize("<p>The app is broken</p>"))
	b := ContentHash(Sanitize("  The app is broken  "))
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestContentHashDiffersForDifferentText(t *testing.T) {
	assert.NotEqual(t, ContentHash("one"), ContentHash("two"))
}
