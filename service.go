package gatekit

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/fernandezvara/dbkit"
)

// Service provides token management and the SQL-backed TokenStore.
// It integrates with the database through dbkit.
//
// Error Handling:
// All database operations use dbkit's chainable error wrapping to provide
// detailed context about failed operations, and collapse into GateKit's
// sentinel errors for classification:
//
//	token, err := service.Consume(ctx, value, path, time.Now())
//	if err != nil {
//	    if gatekit.IsInvalidToken(err) {
//	        // revoked, expired, exhausted, wrong pattern, or unknown
//	    }
//	    if gatekit.IsStoreUnavailable(err) {
//	        // storage failure - never grant
//	    }
//	}
type Service struct {
	db       dbkit.IDB
	registry *Registry
}

// NewService creates a new GateKit service.
//
// Example:
//
//	registry := gatekit.NewRegistry()
//	// ... register protected patterns ...
//	db, _ := dbkit.New(dbkit.Config{URL: "postgres://..."})
//	service := gatekit.NewService(registry, db)
func NewService(registry *Registry, db dbkit.IDB) *Service {
	return &Service{
		db:       db,
		registry: registry,
	}
}

// Registry returns the protected pattern registry.
func (s *Service) Registry() *Registry {
	return s.registry
}

// ============================================================================
// TOKEN STORE
// ============================================================================

// FindByValue returns the token record holding the given opaque value.
func (s *Service) FindByValue(ctx context.Context, value string) (*AccessToken, error) {
	var token AccessToken
	err := dbkit.WithErr1(s.db.NewSelect().Model(&token).Where("token = ?", value).Limit(1).Scan(ctx), "FindTokenByValue").Err()
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, NewError(ErrTokenNotFound, "no token with that value")
		}
		return nil, NewError(ErrStoreUnavailable, "token lookup failed")
	}
	return &token, nil
}

// Consume atomically validates and records one use of a token. The liveness
// conditions and the increment form a single conditional UPDATE; zero rows
// affected means the token cannot authorize this request, whichever of the
// liveness conditions failed.
func (s *Service) Consume(ctx context.Context, value, path string, now time.Time) (*AccessToken, error) {
	result, err := s.db.NewUpdate().
		Model((*AccessToken)(nil)).
		Set("times_accessed = times_accessed + 1").
		Set("last_accessed = ?", now).
		Where("token = ?", value).
		Where("path = ?", path).
		Where("is_valid = TRUE").
		Where("(expires_at IS NULL OR expires_at > ?)", now).
		Where("(max_uses IS NULL OR times_accessed < max_uses)").
		Exec(ctx)
	err = dbkit.WithErr(result, err, "ConsumeToken").Err()
	if err != nil {
		return nil, NewError(ErrStoreUnavailable, "token consume failed").WithPath(path)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, NewError(ErrStoreUnavailable, "token consume failed").WithPath(path)
	}
	if rows == 0 {
		return nil, NewError(ErrInvalidToken, "").WithPath(path).WithReason(DenyInvalidToken)
	}

	// The use is already recorded; the reload only feeds notifications.
	token, err := s.FindByValue(ctx, value)
	if err != nil {
		return &AccessToken{Token: value, Path: path}, nil
	}
	return token, nil
}

// ============================================================================
// TOKEN MANAGEMENT
// ============================================================================

// CreateTokenInput carries the operator-supplied attributes of a new token.
type CreateTokenInput struct {
	Description string
	Path        string
	ExpiresAt   *time.Time
	MaxUses     *int
}

// createAttempts bounds regeneration when a random value collides with the
// unique constraint.
const createAttempts = 3

// CreateToken mints a token for a registered protected pattern. The opaque
// value is generated from a cryptographic random source; the target path
// must be a registered template.
//
// Example:
//
//	token, err := service.CreateToken(ctx, gatekit.CreateTokenInput{
//	    Description: "external reviewer",
//	    Path:        "blog/<int:year>/<str:slug>/",
//	    ExpiresAt:   gatekit.ExpiresAt(time.Now().Add(7 * 24 * time.Hour)),
//	    MaxUses:     gatekit.Uses(50),
//	})
func (s *Service) CreateToken(ctx context.Context, input CreateTokenInput) (*AccessToken, error) {
	if !s.registry.IsRegistered(input.Path) {
		return nil, NewError(ErrPatternNotRegistered, "tokens can only target registered patterns").WithPath(input.Path)
	}

	var lastErr error
	for attempt := 0; attempt < createAttempts; attempt++ {
		value, err := GenerateTokenValue()
		if err != nil {
			return nil, err
		}

		token := &AccessToken{
			Description: input.Description,
			Path:        input.Path,
			Token:       value,
			IsValid:     true,
			ExpiresAt:   input.ExpiresAt,
			MaxUses:     input.MaxUses,
		}

		result, err := s.db.NewInsert().Model(token).Returning("id, created_at").Exec(ctx)
		err = dbkit.WithErr(result, err, "CreateToken").Err()
		if err == nil {
			return token, nil
		}
		if dbkit.IsDuplicate(err) {
			// astronomically unlikely; regenerate and retry
			lastErr = err
			continue
		}
		return nil, NewError(ErrStoreUnavailable, "token insert failed").WithPath(input.Path)
	}
	return nil, NewError(ErrStoreUnavailable, "token value collisions exhausted retries: "+lastErr.Error())
}

// GetToken retrieves a token record by ID.
func (s *Service) GetToken(ctx context.Context, id string) (*AccessToken, error) {
	var token AccessToken
	err := dbkit.WithErr1(s.db.NewSelect().Model(&token).Where("id = ?", id).Limit(1).Scan(ctx), "GetToken").Err()
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, NewError(ErrTokenNotFound, "")
		}
		return nil, NewError(ErrStoreUnavailable, "token lookup failed")
	}
	return &token, nil
}

// ListTokens retrieves token records with optional filters.
func (s *Service) ListTokens(ctx context.Context, filter TokenFilter) ([]AccessToken, error) {
	var tokens []AccessToken
	q := s.db.NewSelect().Model(&tokens)
	if filter.Path != "" {
		q = q.Where("path = ?", filter.Path)
	}
	if filter.Valid != nil {
		q = q.Where("is_valid = ?", *filter.Valid)
	}
	if !filter.Since.IsZero() {
		q = q.Where("created_at >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		q = q.Where("created_at <= ?", filter.Until)
	}

	limit := filter.Limit
	if limit == 0 {
		limit = 100 // Default limit
	}
	q = q.Limit(limit)

	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	q = q.Order("created_at DESC")
	err := dbkit.WithErr1(q.Scan(ctx), "ListTokens").Err()
	if err != nil {
		return nil, NewError(ErrStoreUnavailable, "token list failed")
	}
	return tokens, nil
}

// RevokeToken marks a token invalid. Revocation takes effect on the very
// next request, including requests holding a previously issued cookie.
func (s *Service) RevokeToken(ctx context.Context, id string) error {
	return s.setValidity(ctx, id, false, "RevokeToken")
}

// RestoreToken marks a revoked token valid again. Expiry and quota still
// apply.
func (s *Service) RestoreToken(ctx context.Context, id string) error {
	return s.setValidity(ctx, id, true, "RestoreToken")
}

func (s *Service) setValidity(ctx context.Context, id string, valid bool, op string) error {
	result, err := s.db.NewUpdate().
		Model((*AccessToken)(nil)).
		Set("is_valid = ?", valid).
		Where("id = ?", id).
		Exec(ctx)
	err = dbkit.WithErr(result, err, op).Err()
	if err != nil {
		return NewError(ErrStoreUnavailable, "token update failed")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return NewError(ErrTokenNotFound, "")
	}
	return nil
}

// DeleteToken removes a token record entirely.
func (s *Service) DeleteToken(ctx context.Context, id string) error {
	result, err := s.db.NewDelete().
		Model((*AccessToken)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	err = dbkit.WithErr(result, err, "DeleteToken").Err()
	if err != nil {
		return NewError(ErrStoreUnavailable, "token delete failed")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return NewError(ErrTokenNotFound, "")
	}
	return nil
}

// CountTokens returns the total number of token records.
func (s *Service) CountTokens(ctx context.Context) (int, error) {
	return dbkit.Count[AccessToken](ctx, s.db, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q
	})
}

// TokenExists reports whether a token record holds the given value.
func (s *Service) TokenExists(ctx context.Context, value string) bool {
	exists, err := dbkit.Exists[AccessToken](ctx, s.db, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("token = ?", value)
	})
	if err != nil {
		return false
	}
	return exists
}

// CleanupDeadTokens deletes revoked, expired, and exhausted tokens. Safe to
// run anytime, from a cron or an operator shell; correctness never depends
// on it because dead tokens are denied regardless.
func (s *Service) CleanupDeadTokens(ctx context.Context) (int64, error) {
	now := time.Now()
	result, err := s.db.NewDelete().
		Model((*AccessToken)(nil)).
		Where("is_valid = FALSE OR (expires_at IS NOT NULL AND expires_at <= ?) OR (max_uses IS NOT NULL AND times_accessed >= max_uses)", now).
		Exec(ctx)
	err = dbkit.WithErr(result, err, "CleanupDeadTokens").Err()
	if err != nil {
		return 0, NewError(ErrStoreUnavailable, "token sweep failed")
	}
	return result.RowsAffected()
}
