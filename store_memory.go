package gatekit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process TokenStore. It exists for tests and for
// small deployments that do not want a database; the SQL-backed Service is
// the production store. All methods are safe for concurrent use, and
// Consume performs the liveness check and the increment under one lock, so
// the same no-over-grant guarantee holds.
type MemoryStore struct {
	mu      sync.Mutex
	byValue map[string]*AccessToken
}

// NewMemoryStore creates an empty in-memory token store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byValue: make(map[string]*AccessToken),
	}
}

// Add inserts or replaces a token record. A token without a value gets a
// generated one; the (possibly updated) record is returned.
func (ms *MemoryStore) Add(token *AccessToken) (*AccessToken, error) {
	if token.Token == "" {
		value, err := GenerateTokenValue()
		if err != nil {
			return nil, err
		}
		token.Token = value
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	stored := cloneToken(token)
	ms.byValue[token.Token] = stored
	return cloneToken(stored), nil
}

// FindByValue returns a copy of the token record holding the given value.
func (ms *MemoryStore) FindByValue(ctx context.Context, value string) (*AccessToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewError(ErrStoreUnavailable, err.Error())
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	token, ok := ms.byValue[value]
	if !ok {
		return nil, NewError(ErrTokenNotFound, "no token with that value")
	}
	return cloneToken(token), nil
}

// Consume atomically validates and records one use of a token. See
// TokenStore.
func (ms *MemoryStore) Consume(ctx context.Context, value, path string, now time.Time) (*AccessToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewError(ErrStoreUnavailable, err.Error())
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	token, ok := ms.byValue[value]
	if !ok || token.Path != path || !token.IsLive(now) {
		return nil, NewError(ErrInvalidToken, "").WithPath(path).WithReason(DenyInvalidToken)
	}

	token.TimesAccessed++
	last := now
	token.LastAccessed = &last
	return cloneToken(token), nil
}

// CleanupDeadTokens deletes revoked, expired, and exhausted tokens.
func (ms *MemoryStore) CleanupDeadTokens(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, NewError(ErrStoreUnavailable, err.Error())
	}

	now := time.Now()

	ms.mu.Lock()
	defer ms.mu.Unlock()

	var deleted int64
	for value, token := range ms.byValue {
		if !token.IsLive(now) {
			delete(ms.byValue, value)
			deleted++
		}
	}
	return deleted, nil
}

// Len returns the number of stored token records.
func (ms *MemoryStore) Len() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return len(ms.byValue)
}

func cloneToken(t *AccessToken) *AccessToken {
	clone := *t
	if t.ExpiresAt != nil {
		expires := *t.ExpiresAt
		clone.ExpiresAt = &expires
	}
	if t.MaxUses != nil {
		uses := *t.MaxUses
		clone.MaxUses = &uses
	}
	if t.LastAccessed != nil {
		last := *t.LastAccessed
		clone.LastAccessed = &last
	}
	return &clone
}
