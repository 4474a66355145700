package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed migrations
var migrations embed.FS

var dialects = map[string]goose.Dialect{
	"postgres": goose.DialectPostgres,
	"mysql":    goose.DialectMySQL,
	"sqlite":   goose.DialectSQLite3,
}

// Migrate applies the embedded migrations for driver. The live-email unique
// index lives here rather than in gorm tags because it is partial.
func Migrate(ctx context.Context, db *gorm.DB, driver string, l *zap.Logger) error {
	dialect, ok := dialects[driver]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	dir, err := fs.Sub(migrations, "migrations/"+driver)
	if err != nil {
		return err
	}
	p, err := goose.NewProvider(dialect, sqlDB, dir)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	res, err := p.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	if l != nil {
		for _, r := range res {
			l.Info("[db] migration applied", zap.String("source", r.Source.Path), zap.Duration("took", r.Duration))
		}
	}
	return nil
}
