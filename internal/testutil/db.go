// Package testutil opens throwaway sqlite databases migrated with the
// production migrations.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"go-gin-gorm-accounts/internal/core/database"
)

func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "accounts.db") + "?_busy_timeout=5000&_foreign_keys=on"
	l := zaptest.NewLogger(t)

	db, err := database.NewGorm(database.Opts{Driver: "sqlite", DSN: dsn, LogLevel: "silent"}, l)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(context.Background(), db, "sqlite", l))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one writer at a time; sqlite would otherwise answer SQLITE_BUSY under
	// concurrent tests
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}
