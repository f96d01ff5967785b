package ocr

import (
	"regexp"
	"strings"
)

var disallowedChars = regexp.MustCompile(`[^\w\s.,!?;:()\-]`)

// CleanText collapses whitespace runs to single spaces and strips characters outside
// word characters and common punctuation.
func CleanText(raw string) string {
	text := strings.Join(strings.Fields(raw), " ")
	return strings.TrimSpace(disallowedChars.ReplaceAllString(text, ""))
}
