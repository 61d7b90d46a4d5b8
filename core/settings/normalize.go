package settings

import "strings"

// NormalizeKey turns a category or group display name into its lookup key:
// lower-cased, spaces become underscores, anything outside [a-z0-9_] is dropped.
func NormalizeKey(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r == ' ':
			b.WriteByte('_')
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		}
	}
	return b.String()
}
