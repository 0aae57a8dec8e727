// Package databasetest provides migrated databases for tests.
package databasetest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Gobusters/ectologger"
	migrations "github.com/Ramsey-B/fern/db"
	"github.com/Ramsey-B/fern/internal/database"
	"github.com/stretchr/testify/require"
)

// Logger returns a logger that discards every message.
func Logger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

// NewSQLite opens a fresh SQLite database in a temp dir and applies every
// migration. The database is closed when the test ends.
func NewSQLite(t *testing.T) database.DB {
	t.Helper()

	cfg := database.Config{
		Driver:     database.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "fern.db"),
	}
	return open(t, cfg)
}

func open(t *testing.T, cfg database.Config) database.DB {
	t.Helper()
	logger := Logger()

	db, err := database.Open(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	svc := database.NewMigrationService(logger, &database.MigrationConfig{
		Source: migrations.Migrations,
		Folder: migrations.Folder(cfg.Driver),
	})
	require.NoError(t, svc.Migrate(db))

	return db
}
