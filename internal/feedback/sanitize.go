package feedback

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// sanitizedMaxRunes bounds the text handed to the classifiers; the original
// message is persisted unmodified as raw_content.
const sanitizedMaxRunes = 512

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// Sanitize strips HTML tags (best-effort), trims surrounding whitespace,
// and truncates to 512 characters. The function is idempotent:
// Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(text string) string {
	clean := htmlTagPattern.ReplaceAllString(text, "")
	clean = strings.TrimSpace(clean)
	if runes := []rune(clean); len(runes) > sanitizedMaxRunes {
		clean = strings.TrimSpace(string(runes[:sanitizedMaxRunes]))
	}
	return clean
}

// ContentHash returns the lowercase hex SHA-256 of sanitized text. It is the
// dedup key: one stored record per distinct sanitized message.
func ContentHash(sanitized string) string {
	sum := sha256.Sum256([]byte(sanitized))
	return hex.EncodeToString(sum[:])
}
