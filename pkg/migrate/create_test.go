package migrate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCreateSQLMigrationRejectsOutOfOrderVersion(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	path, err := createSQLMigration(dir, "add rate history", now)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "20260301120000_add_rate_history.sql"), path)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, checkAnnotations(string(body)))

	_, err = createSQLMigration(dir, "older", now.Add(-time.Hour))
	require.Error(t, err)
	_, err = createSQLMigration(dir, "same second", now)
	require.Error(t, err)

	_, err = createSQLMigration(dir, "later", now.Add(time.Second))
	require.NoError(t, err)
}

func TestSanitizeName(t *testing.T) {
	require.Equal(t, "add_cash_index", sanitizeName("  Add Cash-Index "))
	require.Equal(t, "", sanitizeName("!!!"))
}
