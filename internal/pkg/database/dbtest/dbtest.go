// Package dbtest opens throwaway databases carrying the production schema.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	dto "github.com/prometheus/client_model/go"

	"github.com/listingkit/credits-api/internal/pkg/database"
	"github.com/listingkit/credits-api/internal/pkg/metrics"
)

// New returns a migrated SQLite database living in t.TempDir().
func New(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := database.NewSQLite(filepath.Join(t.TempDir(), "credits.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// CreateListing inserts a listing owned by agentID and returns its id.
func CreateListing(t *testing.T, db *sqlx.DB, agentID uuid.UUID) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := db.Exec(db.Rebind(`
		INSERT INTO listings (id, agent_id, credit_consumed, created_at)
		VALUES (?, ?, ?, ?)
	`), id, agentID, false, time.Now().UTC())
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	return id
}

// ListingConsumed reads the credit_consumed flag of a listing.
func ListingConsumed(t *testing.T, db *sqlx.DB, listingID uuid.UUID) bool {
	t.Helper()

	var consumed bool
	if err := db.Get(&consumed, db.Rebind(`SELECT credit_consumed FROM listings WHERE id = ?`), listingID); err != nil {
		t.Fatalf("read listing: %v", err)
	}
	return consumed
}

// Count returns SELECT COUNT(*) for the given query.
func Count(t *testing.T, db *sqlx.DB, query string, args ...interface{}) int {
	t.Helper()

	var n int
	if err := db.Get(&n, db.Rebind(query), args...); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

// Conflicts reads the conflict counter of operation.
func Conflicts(t *testing.T, operation string) float64 {
	t.Helper()

	var m dto.Metric
	if err := metrics.Conflicts.WithLabelValues(operation).Write(&m); err != nil {
		t.Fatalf("read conflicts: %v", err)
	}
	return m.GetCounter().GetValue()
}
