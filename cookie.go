package gatekit

import (
	"strings"
)

// maxTokenValueLength bounds cookie and query values considered plausible
// token material. Generated values are 43 characters; the bound leaves room
// for externally minted values without admitting arbitrary garbage.
const maxTokenValueLength = 128

// CookieName derives the deterministic session cookie name for a protected
// pattern's static prefix. Characters unsafe for cookie names are
// percent-escaped so two prefixes can never collide after normalization.
//
// Example: CookieName("gatekit_", "blog/") == "gatekit_blog%2F".
func CookieName(prefix, staticPrefix string) string {
	return prefix + escapeCookieName(staticPrefix)
}

// CookiePath returns the cookie Path attribute scoping a grant to the
// pattern's static prefix, so the cookie is never sent to unrelated routes.
func CookiePath(staticPrefix string) string {
	return "/" + staticPrefix
}

// PlausibleTokenValue reports whether a presented value is syntactically
// plausible token material: non-empty, bounded length, URL-safe alphabet.
// Implausible values are rejected before any store lookup is attempted, and
// an implausible cookie is treated exactly like an absent cookie.
func PlausibleTokenValue(v string) bool {
	if v == "" || len(v) > maxTokenValueLength {
		return false
	}
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '.' || c == '~' || c == '=':
		default:
			return false
		}
	}
	return true
}

const upperhex = "0123456789ABCDEF"

// escapeCookieName percent-encodes everything outside the unreserved set,
// including the slash, so the result is a single flat cookie-name token.
func escapeCookieName(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
			c == '-' || c == '_' || c == '.' || c == '~' {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&0xf])
	}
	return b.String()
}
