package util

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// CanonicalKey normalizes an identifier (username or email) for use as a
// storage key: NFKD normalization, trimmed, lower-cased. Two identifiers
// that fold to the same key refer to the same account.
func CanonicalKey(s string) string {
	return strings.ToLower(norm.NFKD.String(strings.TrimSpace(s)))
}
