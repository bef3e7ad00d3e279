package textnorm

import "strings"

// TruncateInput keeps at most maxChars runes of text and strips surrounding whitespace.
// A non-positive maxChars disables the limit.
func TruncateInput(text string, maxChars int) string {
	if maxChars > 0 {
		count := 0
		for i := range text {
			if count == maxChars {
				text = text[:i]
				break
			}
			count++
		}
	}
	return strings.TrimSpace(text)
}

// IsBlank reports whether text has no non-whitespace content.
func IsBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}
