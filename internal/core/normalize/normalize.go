// Package normalize produces the canonical comparison key shared by every
// cache tier and by router pattern matching. Two questions that differ only
// in casing, punctuation or spacing must normalize to the same key.
package normalize

import "strings"

const strippedPunctuation = "¿?¡!.,;:"

// Normalize lowercases, strips punctuation, collapses whitespace runs to a
// single space and trims. Pure and idempotent.
func Normalize(text string) string {
	lower := strings.ToLower(text)

	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		if strings.ContainsRune(strippedPunctuation, r) {
			continue
		}
		b.WriteRune(r)
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// Tokens splits a normalized key into its words.
func Tokens(key string) []string {
	return strings.Fields(key)
}
