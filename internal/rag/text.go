package rag

import "strings"

const ellipsis = "..."

// Truncate shortens text to at most max runes, cutting at a space when one
// falls in the last 30% of the allowed length.
func Truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	keep := max - len(ellipsis)
	if keep <= 0 {
		return string(runes[:max])
	}
	cut := string(runes[:keep])
	if idx := strings.LastIndex(cut, " "); idx >= 0 && len([]rune(cut[:idx])) > max*7/10 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " \t\n") + ellipsis
}
