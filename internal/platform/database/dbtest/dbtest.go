// Package dbtest starts a disposable PostgreSQL container for integration tests.
package dbtest

import (
	_ "embed"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/p-n-ai/pai-planner/internal/platform/config"
	"github.com/p-n-ai/pai-planner/internal/platform/database"
)

// upstreamSchema mirrors the exam notice and assessment tables owned by
// upstream systems, enough for the planner's read queries.
//
//go:embed upstream.sql
var upstreamSchema string

// NewPool starts postgres, applies the planner and upstream schemas, and
// returns a pool closed at test cleanup. Skips in -short mode or when no
// container provider is available.
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := t.Context()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("planner"),
		postgres.WithUsername("planner"),
		postgres.WithPassword("planner"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("postgres.Run() error = %v", err)
	}

	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("ConnectionString() error = %v", err)
	}

	db, err := database.New(ctx, config.DatabaseConfig{URL: url, MaxConns: 4, MinConns: 1})
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	t.Cleanup(db.Close)

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if _, err := db.Pool.Exec(ctx, upstreamSchema); err != nil {
		t.Fatalf("apply upstream schema: %v", err)
	}
	return db.Pool
}
