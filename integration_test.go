package gatekit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestIntegrationTokenLifecycle tests create, get, revoke, restore, delete
// against a real database
func TestIntegrationTokenLifecycle(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}

	ctx := context.Background()
	service, err := SetupTestDatabase(ctx)
	require.NoError(t, err)

	token, err := service.CreateToken(ctx, CreateTokenInput{
		Description: fmt.Sprintf("lifecycle-%d", time.Now().UnixNano()),
		Path:        "blog/<int:year>/<str:slug>/",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, token.ID)
	assert.Len(t, token.Token, 43)
	assert.True(t, token.IsValid)
	assert.False(t, token.CreatedAt.IsZero())

	fetched, err := service.GetToken(ctx, token.ID)
	require.NoError(t, err)
	assert.Equal(t, token.Token, fetched.Token)
	assert.True(t, service.TokenExists(ctx, token.Token))

	require.NoError(t, service.RevokeToken(ctx, token.ID))
	fetched, err = service.GetToken(ctx, token.ID)
	require.NoError(t, err)
	assert.False(t, fetched.IsValid)

	require.NoError(t, service.RestoreToken(ctx, token.ID))
	fetched, err = service.GetToken(ctx, token.ID)
	require.NoError(t, err)
	assert.True(t, fetched.IsValid)

	require.NoError(t, service.DeleteToken(ctx, token.ID))
	_, err = service.GetToken(ctx, token.ID)
	assert.ErrorIs(t, err, ErrTokenNotFound)
	assert.False(t, service.TokenExists(ctx, token.Token))
}

// TestIntegrationCreateUnregisteredPattern tests that tokens cannot target
// patterns the registry does not protect
func TestIntegrationCreateUnregisteredPattern(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}

	ctx := context.Background()
	service, err := SetupTestDatabase(ctx)
	require.NoError(t, err)

	_, err = service.CreateToken(ctx, CreateTokenInput{Path: "never/registered/"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPatternNotRegistered)
}

// TestIntegrationConsume tests the conditional-update grant semantics
func TestIntegrationConsume(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}

	ctx := context.Background()
	service, err := SetupTestDatabase(ctx)
	require.NoError(t, err)

	token, err := service.CreateToken(ctx, CreateTokenInput{
		Description: fmt.Sprintf("consume-%d", time.Now().UnixNano()),
		Path:        "blog/<int:year>/<str:slug>/",
		MaxUses:     Uses(2),
	})
	require.NoError(t, err)

	// Two grants, each recorded.
	used, err := service.Consume(ctx, token.Token, token.Path, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, used.TimesAccessed)
	require.NotNil(t, used.LastAccessed)

	used, err = service.Consume(ctx, token.Token, token.Path, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, used.TimesAccessed)

	// Quota reached: denied, counter untouched.
	_, err = service.Consume(ctx, token.Token, token.Path, time.Now())
	require.Error(t, err)
	assert.True(t, IsInvalidToken(err))

	final, err := service.FindByValue(ctx, token.Token)
	require.NoError(t, err)
	assert.Equal(t, 2, final.TimesAccessed)

	// Wrong pattern: denied even while uses remain elsewhere.
	other, err := service.CreateToken(ctx, CreateTokenInput{Path: "docs/"})
	require.NoError(t, err)
	_, err = service.Consume(ctx, other.Token, "blog/<int:year>/<str:slug>/", time.Now())
	require.Error(t, err)
	assert.True(t, IsInvalidToken(err))
}

// TestIntegrationConsumeRevokedAndExpired tests liveness conditions at the
// SQL layer
func TestIntegrationConsumeRevokedAndExpired(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}

	ctx := context.Background()
	service, err := SetupTestDatabase(ctx)
	require.NoError(t, err)

	revoked, err := service.CreateToken(ctx, CreateTokenInput{Path: "docs/"})
	require.NoError(t, err)
	require.NoError(t, service.RevokeToken(ctx, revoked.ID))
	_, err = service.Consume(ctx, revoked.Token, "docs/", time.Now())
	assert.True(t, IsInvalidToken(err))

	expired, err := service.CreateToken(ctx, CreateTokenInput{
		Path:      "docs/",
		ExpiresAt: ExpiresAt(time.Now().Add(-time.Minute)),
	})
	require.NoError(t, err)
	_, err = service.Consume(ctx, expired.Token, "docs/", time.Now())
	assert.True(t, IsInvalidToken(err))
}

// TestIntegrationConsumeRace tests the no-over-grant guarantee against the
// real database
func TestIntegrationConsumeRace(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}

	ctx := context.Background()
	service, err := SetupTestDatabase(ctx)
	require.NoError(t, err)

	const maxUses = 5
	const attempts = 25

	token, err := service.CreateToken(ctx, CreateTokenInput{
		Description: fmt.Sprintf("race-%d", time.Now().UnixNano()),
		Path:        "blog/<int:year>/<str:slug>/",
		MaxUses:     Uses(maxUses),
	})
	require.NoError(t, err)

	var granted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := service.Consume(ctx, token.Token, token.Path, time.Now()); err == nil {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(maxUses), granted.Load())

	final, err := service.FindByValue(ctx, token.Token)
	require.NoError(t, err)
	assert.Equal(t, maxUses, final.TimesAccessed)
}

// TestIntegrationListTokens tests filter combinations
func TestIntegrationListTokens(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}

	ctx := context.Background()
	service, err := SetupTestDatabase(ctx)
	require.NoError(t, err)

	marker := fmt.Sprintf("list-%d", time.Now().UnixNano())
	a, err := service.CreateToken(ctx, CreateTokenInput{Description: marker + "-a", Path: "reports/<uuid:id>"})
	require.NoError(t, err)
	b, err := service.CreateToken(ctx, CreateTokenInput{Description: marker + "-b", Path: "reports/<uuid:id>"})
	require.NoError(t, err)
	require.NoError(t, service.RevokeToken(ctx, b.ID))

	byPath, err := service.ListTokens(ctx, NewTokenFilter().WithPath("reports/<uuid:id>").WithPagination(1000, 0))
	require.NoError(t, err)
	assert.True(t, containsTokenID(byPath, a.ID))
	assert.True(t, containsTokenID(byPath, b.ID))

	validOnly, err := service.ListTokens(ctx, NewTokenFilter().WithPath("reports/<uuid:id>").WithValid(true).WithPagination(1000, 0))
	require.NoError(t, err)
	assert.True(t, containsTokenID(validOnly, a.ID))
	assert.False(t, containsTokenID(validOnly, b.ID))

	// Newest-first ordering with a tight window around these two records.
	window, err := service.ListTokens(ctx, NewTokenFilter().
		WithTimeRange(a.CreatedAt.Add(-time.Second), b.CreatedAt.Add(time.Second)).
		WithPagination(1000, 0))
	require.NoError(t, err)
	assert.True(t, containsTokenID(window, a.ID))
	assert.True(t, containsTokenID(window, b.ID))

	count, err := service.CountTokens(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 2)
}

// TestIntegrationCleanupDeadTokens tests the hygiene sweep against SQL
func TestIntegrationCleanupDeadTokens(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}

	ctx := context.Background()
	service, err := SetupTestDatabase(ctx)
	require.NoError(t, err)

	live, err := service.CreateToken(ctx, CreateTokenInput{Path: "docs/"})
	require.NoError(t, err)
	dead, err := service.CreateToken(ctx, CreateTokenInput{Path: "docs/"})
	require.NoError(t, err)
	require.NoError(t, service.RevokeToken(ctx, dead.ID))

	deleted, err := service.CleanupDeadTokens(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, deleted, int64(1))

	assert.True(t, service.TokenExists(ctx, live.Token))
	assert.False(t, service.TokenExists(ctx, dead.Token))
}

// TestIntegrationHealth tests the health surface over a live pool
func TestIntegrationHealth(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}

	ctx := context.Background()
	service, err := SetupTestDatabase(ctx)
	require.NoError(t, err)

	health := NewHealthService(service)
	require.NoError(t, health.Ping(ctx))
	assert.True(t, health.IsHealthy(ctx))

	status := health.Health(ctx)
	assert.True(t, status.Healthy)

	stats := health.GetPoolStats()
	assert.GreaterOrEqual(t, stats.OpenConnections, 0)
}

func containsTokenID(tokens []AccessToken, id string) bool {
	for _, t := range tokens {
		if t.ID == id {
			return true
		}
	}
	return false
}
