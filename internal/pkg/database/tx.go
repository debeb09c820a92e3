package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/listingkit/credits-api/internal/pkg/metrics"
)

// ErrConflict lets callers flag a lost race that the database itself did
// not report, e.g. a conditional UPDATE matching no rows.
var ErrConflict = errors.New("write conflict")

// MaxAttempts bounds how often a conflicting operation is re-evaluated.
const MaxAttempts = 3

// InTx runs fn inside a transaction and commits when fn returns nil.
// PostgreSQL transactions run SERIALIZABLE; SQLite transactions hold the write
// lock from BEGIN (see sqlitePragmas).
func InTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	opts := &sql.TxOptions{}
	if db.DriverName() == DriverPostgres {
		opts.Isolation = sql.LevelSerializable
	}

	tx, err := db.BeginTxx(ctx, opts)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

// IsUniqueViolation reports whether err is a unique/primary key violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}

	return false
}

// IsSerializationFailure reports whether a concurrent transaction forced
// err (serialization failure or deadlock).
func IsSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		// Primary code, so SQLITE_BUSY_SNAPSHOT and friends count too.
		return sqliteErr.Code()&0xff == sqlite3.SQLITE_BUSY
	}

	return false
}

// IsConflict reports whether err was caused by a concurrent writer racing
// on the same rows. Callers re-evaluate instead of surfacing it.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) || IsUniqueViolation(err) || IsSerializationFailure(err)
}

// RetryOnConflict runs fn until it succeeds, fails with a non-conflict
// error, or MaxAttempts is reached. fn must re-read everything it decides
// on, so a retried attempt observes the concurrent writer's rows.
func RetryOnConflict(ctx context.Context, operation string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		err = fn()
		if err == nil || !IsConflict(err) {
			return err
		}

		metrics.Conflicts.WithLabelValues(operation).Inc()
		log.Debug().
			Err(err).
			Str("operation", operation).
			Int("attempt", attempt).
			Msg("Write conflict, re-evaluating")

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return err
}
