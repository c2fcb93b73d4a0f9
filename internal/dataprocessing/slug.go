package dataprocessing

import "strings"

// Slugify converts a counterparty display name into its identifier: the
// name is lowercased, every run of characters outside [a-z0-9] becomes a
// single hyphen, and leading or trailing hyphens are dropped.
//
// Distinct names can share a slug ("Alpha Fund" and "ALPHA-FUND"); callers
// that key data by slug merge such names.
func Slugify(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	sep := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if sep && b.Len() > 0 {
				b.WriteByte('-')
			}
			sep = false
			b.WriteRune(r)
			continue
		}
		sep = true
	}
	return b.String()
}
