// Package postgres provides the Postgres-backed persistence layer.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/lmeyrat/jobpilot/internal/storage/postgres/migrations"
)

// DB is the pool subset the stores run on. pgxmock satisfies it in tests.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Stores bundles all repositories over one connection pool.
type Stores struct {
	pool *pgxpool.Pool

	Postings     *PostingStore
	Applications *ApplicationStore
	Profiles     *ProfileStore
	Sessions     *SessionStore
	Letters      *LetterStore
	Documents    *DocumentStore
}

// Connect opens the pool, runs pending migrations and wires the stores.
func Connect(ctx context.Context, dsn string, maxConns int32) (*Stores, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := migrate(ctx, dsn); err != nil {
		pool.Close()
		return nil, err
	}

	s := &Stores{pool: pool}
	s.Postings = NewPostingStore(pool)
	s.Applications = NewApplicationStore(pool)
	s.Profiles = NewProfileStore(pool)
	s.Sessions = NewSessionStore(pool)
	s.Letters = NewLetterStore(pool)
	s.Documents = NewDocumentStore(pool)
	return s, nil
}

// Close releases the connection pool.
func (s *Stores) Close() {
	s.pool.Close()
}

// migrate applies the embedded goose migrations over a database/sql
// connection; the pgx stdlib driver shares the DSN with the pool.
func migrate(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
