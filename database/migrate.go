// Package database holds the SQL schema and applies it with goose.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsDir = "migrations"

// Migrate applies every pending migration to the database at dsn.
func Migrate(ctx context.Context, dsn string) error {
	return withDB(dsn, func(db *sql.DB) error {
		return goose.UpContext(ctx, db, migrationsDir)
	})
}

// Rollback reverts the most recent migration.
func Rollback(ctx context.Context, dsn string) error {
	return withDB(dsn, func(db *sql.DB) error {
		return goose.DownContext(ctx, db, migrationsDir)
	})
}

// Status prints the applied state of each migration through the goose logger.
func Status(ctx context.Context, dsn string) error {
	return withDB(dsn, func(db *sql.DB) error {
		return goose.StatusContext(ctx, db, migrationsDir)
	})
}

func withDB(dsn string, fn func(*sql.DB) error) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	db, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := fn(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}
