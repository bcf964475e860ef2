package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "modernc.org/sqlite" // driver: sqlite
)

//go:embed schema/sqlite.sql
var sqliteSchema string

// DefaultSQLiteDSN is used when no DSN is configured.
const DefaultSQLiteDSN = "file:planner.db?mode=rwc&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

// OpenSQLite opens a SQLite database and ensures the formation schema exists.
// The pool is limited to one connection so writers serialize and in-memory
// databases stay visible across calls.
func OpenSQLite(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		dsn = DefaultSQLiteDSN
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite: %w", err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying sqlite schema: %w", err)
	}
	return db, nil
}
