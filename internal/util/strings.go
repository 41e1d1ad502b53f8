package util

import "strings"

// TruncateRunes caps s at limit runes. Descriptions arrive in many scripts,
// so the cap counts characters, not bytes.
func TruncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// CollapseWhitespace squeezes runs of whitespace down to single spaces and
// trims the ends.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
