package store

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"

	"faceattend/internal/logger"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrations embed.FS

func (r *SQLRepository) migrationSource() (goose.Dialect, string) {
	if r.dialect == DialectSQLite {
		return goose.DialectSQLite3, "migrations/sqlite"
	}
	return goose.DialectPostgres, "migrations/postgres"
}

// Migrate applies the embedded goose migrations for the repo's dialect.
func (r *SQLRepository) Migrate(ctx context.Context) error {
	dialect, dir := r.migrationSource()
	fsys, err := fs.Sub(migrations, dir)
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}
	provider, err := goose.NewProvider(dialect, r.db, fsys)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	for _, res := range results {
		logger.Log.Infow("migration applied",
			"version", res.Source.Version,
			"file", res.Source.Path,
			"duration", res.Duration,
		)
	}
	if len(results) == 0 {
		logger.Log.Debugw("schema up to date", "dialect", dialect)
	}
	return nil
}
