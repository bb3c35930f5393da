package utils

import "strings"

// NormalizeName lower-cases, trims, and collapses internal whitespace.
// This is the form similarity scoring compares on.
func NormalizeName(value string) string {
	return strings.Join(strings.Fields(strings.ToLower(value)), " ")
}

// NormalizeCode converts a raw item name to a normalized item code:
// uppercase alphanumerics only. Used to key the biological range table and
// for the punctuation-insensitive exact match in the resolver.
func NormalizeCode(value string) string {
	var b strings.Builder
	for _, ch := range strings.ToUpper(value) {
		if (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') {
			b.WriteRune(ch)
		}
	}
	return b.String()
}
