// Package slug normalizes and validates url-safe company identifiers.
package slug

import (
	"regexp"
	"strings"
)

var validSlug = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Make derives a slug from an arbitrary name: lower-case, every run of
// characters outside [a-z0-9] collapsed to a single hyphen, leading and
// trailing hyphens stripped. Make is idempotent.
func Make(name string) string {
	var b strings.Builder
	lastHyphen := true // suppress a leading hyphen
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastHyphen = false
			continue
		}
		if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Validate reports whether s is a well-formed slug. The server always
// re-validates; client-side suggestions are never trusted.
func Validate(s string) bool {
	return validSlug.MatchString(s)
}
