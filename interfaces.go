package gatekit

import (
	"context"
	"time"

	"github.com/fernandezvara/dbkit"
)

// TokenStore is the storage contract the authorization engine depends on.
// Service implements it over dbkit; MemoryStore implements it in process.
type TokenStore interface {
	// FindByValue returns the token record holding the given opaque value.
	// Returns an error wrapping ErrTokenNotFound when no record exists, and
	// one wrapping ErrStoreUnavailable on storage failure.
	FindByValue(ctx context.Context, value string) (*AccessToken, error)

	// Consume atomically validates and records one use of a token: the
	// record must hold the value, target exactly the given pattern template,
	// and be live at now. The increment and the liveness check are a single
	// conditional update, so concurrent requests sharing a token with a
	// usage quota cannot over-grant; a loser of that race receives an error
	// wrapping ErrInvalidToken, as if the token were already exhausted.
	// Storage failure wraps ErrStoreUnavailable and must never be treated as
	// a grant.
	Consume(ctx context.Context, value, path string, now time.Time) (*AccessToken, error)
}

// TokenSweeper is implemented by stores that support the out-of-band
// dead-token sweep. Deletion is store hygiene, not a correctness
// requirement; dead tokens are denied either way.
type TokenSweeper interface {
	CleanupDeadTokens(ctx context.Context) (int64, error)
}

// MigrationManager defines the migration management interface.
type MigrationManager interface {
	Migrations() []dbkit.Migration
}

// HealthMonitor defines the health monitoring interface.
type HealthMonitor interface {
	Health(ctx context.Context) dbkit.HealthStatus
	IsHealthy(ctx context.Context) bool
	Ping(ctx context.Context) error
	GetPoolStats() dbkit.PoolStats
}
