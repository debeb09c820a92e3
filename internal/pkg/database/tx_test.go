package database

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) (*sqlx.DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tx.db")
	db, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE codes (id INTEGER PRIMARY KEY, code TEXT NOT NULL UNIQUE)`)
	require.NoError(t, err)
	return db, path
}

func TestIsUniqueViolation_SQLite(t *testing.T) {
	db, _ := newTestSQLite(t)

	_, err := db.Exec(`INSERT INTO codes (id, code) VALUES (1, 'A')`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO codes (id, code) VALUES (2, 'A')`)
	require.Error(t, err)
	wrapped := fmt.Errorf("%w: insert code: %w", errors.New("internal error"), err)
	assert.True(t, IsUniqueViolation(wrapped))
	assert.True(t, IsConflict(wrapped))
	assert.False(t, IsSerializationFailure(wrapped))

	_, err = db.Exec(`INSERT INTO codes (id, code) VALUES (1, 'B')`)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))

	_, err = db.Exec(`INSERT INTO codes (id, code) VALUES (3, NULL)`)
	require.Error(t, err)
	assert.False(t, IsUniqueViolation(err))
	assert.False(t, IsConflict(err))
}

func TestIsSerializationFailure_SQLiteBusy(t *testing.T) {
	db, path := newTestSQLite(t)

	other, err := sqlx.Open(DriverSQLite, "file:"+path+"?_pragma=busy_timeout(0)&_txlock=immediate")
	require.NoError(t, err)
	t.Cleanup(func() { other.Close() })

	holder, err := db.Beginx()
	require.NoError(t, err)
	defer holder.Rollback()

	tx, err := other.Beginx()
	if err == nil {
		tx.Rollback()
		t.Fatal("expected the second writer to be refused")
	}
	assert.True(t, IsSerializationFailure(err), err.Error())
	assert.True(t, IsConflict(err))
}

func TestConflictClassification_Postgres(t *testing.T) {
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})))
	assert.True(t, IsSerializationFailure(&pq.Error{Code: "40001"}))
	assert.True(t, IsSerializationFailure(&pq.Error{Code: "40P01"}))
	assert.False(t, IsConflict(&pq.Error{Code: "23502"}))
	assert.False(t, IsConflict(errors.New("connection reset")))
	assert.True(t, IsConflict(fmt.Errorf("flag: %w", ErrConflict)))
}

func TestRetryOnConflict(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := RetryOnConflict(ctx, "test_retry", func() error {
		calls++
		if calls < 2 {
			return ErrConflict
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	calls = 0
	err = RetryOnConflict(ctx, "test_retry", func() error {
		calls++
		return ErrConflict
	})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, MaxAttempts, calls)

	calls = 0
	boom := errors.New("boom")
	err = RetryOnConflict(ctx, "test_retry", func() error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}
