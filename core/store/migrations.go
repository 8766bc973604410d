package store

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"

	"safeshield/core/utils"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ApplyMigrations brings the schema up to date with goose. The migration SQL
// sticks to TEXT/INTEGER/BIGINT/TIMESTAMP columns so one file set serves
// both sqlite and postgres.
func ApplyMigrations(ctx context.Context, db *DB, logger *utils.Logger) error {
	dialect := goose.DialectSQLite3
	if db.Driver() == DriverPostgres {
		dialect = goose.DialectPostgres
	}
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	provider, err := goose.NewProvider(dialect, db.DB, fsys)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	for _, res := range results {
		logger.Infof("store: applied migration %s", res.Source.Path)
	}
	return nil
}
