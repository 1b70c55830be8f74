// Package repositories wires database access: it opens the configured
// engine, runs migrations, and hands out repository implementations.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"

	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/dkravets/keychat/internal/migrations"
	"github.com/dkravets/keychat/internal/repositories/secrets"
	"github.com/dkravets/keychat/internal/repositories/sessions"
)

// Repositories bundles the storage collaborators plus the owning handle.
type Repositories struct {
	Secrets  secrets.Repository
	Sessions sessions.Repository
	DB       *sql.DB
}

func (r *Repositories) Close() error {
	return r.DB.Close()
}

// Init opens the database selected by the DSN scheme (postgres:// for
// PostgreSQL, anything else is a SQLite path), migrates it, and returns
// the matching repository implementations.
func Init(ctx context.Context, dsn string) (*Repositories, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return initPostgres(ctx, dsn)
	}
	return initSQLite(ctx, dsn)
}

func initSQLite(ctx context.Context, dsn string) (*Repositories, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL`); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := RunMigrations(ctx, db, "sqlite3"); err != nil {
		return nil, err
	}

	return &Repositories{
		Secrets:  secrets.NewSQLiteRepository(db),
		Sessions: sessions.NewSQLiteRepository(db),
		DB:       db,
	}, nil
}

func initPostgres(ctx context.Context, dsn string) (*Repositories, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	if err := RunMigrations(ctx, db, "postgres"); err != nil {
		return nil, err
	}

	return &Repositories{
		Secrets:  secrets.NewPostgresRepository(db),
		Sessions: sessions.NewPostgresRepository(db),
		DB:       db,
	}, nil
}

// RunMigrations applies the embedded goose migrations for the dialect.
func RunMigrations(ctx context.Context, db *sql.DB, dialect string) error {
	dir := "sqlite"
	if dialect == "postgres" {
		dir = "postgres"
	}

	sub, err := fs.Sub(migrations.Migrations, dir)
	if err != nil {
		return err
	}
	goose.SetBaseFS(sub)

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
