package store

import (
	"context"
	_ "embed"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rissahq/rissa/internal/core"
)

//go:embed schema.sql
var schemaDDL string

// EnsureSchema creates the tables and indexes if they do not exist. Called
// once at startup; the statements are idempotent.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		return core.WrapPersistence("ensure database schema", err)
	}
	return nil
}
