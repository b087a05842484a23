package gatekit

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// AccessToken represents a grant of access to one protected path pattern.
// A token authorizes exactly one pattern: matching a request requires the
// request's matched template to equal Path.
type AccessToken struct {
	bun.BaseModel `bun:"table:access_tokens,alias:at"`

	ID          string `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Description string `bun:"description,notnull"`
	Path        string `bun:"path,notnull"`
	Token       string `bun:"token,notnull,unique"`

	IsValid bool `bun:"is_valid,notnull,default:true"`

	CreatedAt time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	ExpiresAt *time.Time `bun:"expires_at"`

	// Nil MaxUses means unlimited uses.
	MaxUses       *int       `bun:"max_uses"`
	TimesAccessed int        `bun:"times_accessed,notnull,default:0"`
	LastAccessed  *time.Time `bun:"last_accessed"`
}

// IsExpired reports whether the token's expiry, if set, has passed.
func (t *AccessToken) IsExpired(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}

// IsExhausted reports whether the token's usage quota, if set, is reached.
func (t *AccessToken) IsExhausted() bool {
	return t.MaxUses != nil && t.TimesAccessed >= *t.MaxUses
}

// IsLive reports whether the token can authorize a request at the given
// instant: explicitly valid, not expired, not exhausted.
func (t *AccessToken) IsLive(now time.Time) bool {
	return t.IsValid && !t.IsExpired(now) && !t.IsExhausted()
}

// String returns a human-readable identification without the token value.
func (t *AccessToken) String() string {
	return fmt.Sprintf("%s (%s)", t.Description, t.Path)
}

// tokenValueBytes yields 256 bits of entropy, encoded to 43 URL-safe
// characters.
const tokenValueBytes = 32

// GenerateTokenValue returns a new opaque token value from a cryptographic
// random source.
func GenerateTokenValue() (string, error) {
	buf := make([]byte, tokenValueBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("gatekit: generate token value: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Uses returns a pointer to n, for the optional MaxUses fields.
func Uses(n int) *int {
	return &n
}

// ExpiresAt returns a pointer to t, for the optional expiry fields.
func ExpiresAt(t time.Time) *time.Time {
	return &t
}
