package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCommandsAgainstSQLite(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", filepath.Join(t.TempDir(), "ctl.db"))
	t.Setenv("REDIS_URL", "")
	t.Setenv("ENV", "test")
	t.Setenv("LOG_LEVEL", "error")

	out, err := run(t, "migrate")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Schema applied (sqlite)")

	out, err = run(t, "promo", "create", "launch", "--credits", "4", "--per-agent", "1", "--expires", "2099-12-31")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Created LAUNCH")

	out, err = run(t, "promo", "list")
	require.NoError(t, err, out)
	assert.Contains(t, out, "LAUNCH")

	out, err = run(t, "package", "upsert", "starter", "--name", "Starter", "--credits", "10", "--price-cents", "4900")
	require.NoError(t, err, out)
	assert.Contains(t, out, "$49.00")

	out, err = run(t, "package", "show", "starter")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Credits:   10")
	assert.Contains(t, out, "Price:     $49.00")

	_, err = run(t, "package", "show", "missing")
	assert.Error(t, err)

	agentID := uuid.New().String()
	out, err = run(t, "adjust", agentID, "--delta", "5", "--reason", "goodwill")
	require.NoError(t, err, out)
	assert.Contains(t, out, "New balance: 5")

	out, err = run(t, "balance", agentID)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Balance:   5")
	assert.Contains(t, out, "goodwill")

	out, err = run(t, "reconcile")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Negative balances:      0")

	out, err = run(t, "adjust", agentID, "--delta=-8", "--reason", "chargeback")
	require.NoError(t, err, out)

	_, err = run(t, "reconcile")
	assert.ErrorIs(t, err, errDiscrepancies)
}

func TestParseExpiry(t *testing.T) {
	got, err := parseExpiry("2030-06-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2030, 6, 1, 23, 59, 59, 0, time.UTC), got)

	got, err = parseExpiry("2030-06-01T10:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, 10, got.Hour())

	_, err = parseExpiry("next tuesday")
	assert.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "next tuesday"))
}
