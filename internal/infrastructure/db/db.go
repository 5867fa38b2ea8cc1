// Package db wires the pgx connection pool and the sql-migrate runner that
// the rest of the application treats as the single source of persistence.
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/sirupsen/logrus"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// MigrationsFS is the embedded SQL migration set applied by cmd/migrate and
// at server startup.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS

// Connect opens a pgx pool against connString and pings it, so a bad DSN
// or an unreachable database surfaces at startup rather than on the first
// query.
func Connect(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("db: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}
	return pool, nil
}

// Migrate applies every pending migration in MigrationsFS, in filename
// order, using the same database/sql handle sql-migrate requires.
func Migrate(connString string, logger *logrus.Logger) (int, error) {
	sqlDB, err := sql.Open("pgx", connString)
	if err != nil {
		return 0, fmt.Errorf("db: open for migration: %w", err)
	}
	defer sqlDB.Close()

	src := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: MigrationsFS,
		Root:       "migrations",
	}
	n, err := migrate.Exec(sqlDB, "postgres", src, migrate.Up)
	if err != nil {
		return n, fmt.Errorf("db: migrate: %w", err)
	}
	if logger != nil {
		logger.WithField("applied", n).Info("migrations applied")
	}
	return n, nil
}
