package gatekit

import (
	"github.com/fernandezvara/dbkit"
)

// MigrationService provides migration management functionality as an extension to Service
type MigrationService struct {
	*Service
}

// NewMigrationService creates a new migration service extension
func NewMigrationService(service *Service) *MigrationService {
	return &MigrationService{Service: service}
}

// Migrations returns all database migrations required for GateKit.
// Use dbkit.Migrate(ctx, service.Migrations()) to run migrations.
func (ms *MigrationService) Migrations() []dbkit.Migration {
	return []dbkit.Migration{
		{
			ID:          "gatekit-001",
			Description: "Create access_tokens table",
			SQL: `
                CREATE TABLE IF NOT EXISTS access_tokens (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    description TEXT NOT NULL,
                    path TEXT NOT NULL,
                    token TEXT NOT NULL UNIQUE,
                    is_valid BOOLEAN NOT NULL DEFAULT TRUE,
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    expires_at TIMESTAMPTZ,
                    max_uses INTEGER,
                    times_accessed INTEGER NOT NULL DEFAULT 0,
                    last_accessed TIMESTAMPTZ
                )`,
		},
		{
			ID:          "gatekit-002",
			Description: "Index access_tokens on path for admin listing",
			SQL: `
                CREATE INDEX IF NOT EXISTS access_tokens_path_idx
                    ON access_tokens (path)`,
		},
	}
}
