package database

import (
	"context"
	"embed"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies the credit schema for the connection's dialect.
// Statements are idempotent, so it is safe to run on every start.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	name := "migrations/postgres.sql"
	if db.DriverName() == DriverSQLite {
		name = "migrations/sqlite.sql"
	}

	schema, err := migrations.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}

	if _, err := db.ExecContext(ctx, string(schema)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	log.Info().Str("driver", db.DriverName()).Msg("Database schema is up to date")
	return nil
}
