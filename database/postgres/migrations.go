package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JohnGrosso13/r2up"
)

func createSessionsTable(ctx context.Context, pool *pgxpool.Pool, tableName string) error {
	quotedTable := pgx.Identifier{tableName}.Sanitize()
	indexStale := pgx.Identifier{fmt.Sprintf("idx_%s_stale", tableName)}.Sanitize()

	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			upload_id TEXT NOT NULL UNIQUE,
			object_key TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			part_size BIGINT NOT NULL,
			part_count INTEGER NOT NULL,
			state TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS %s
		ON %s (created_at)
		WHERE (state = 'created');
	`,
		quotedTable,
		indexStale, quotedTable,
	)

	_, err := pool.Exec(ctx, sql)
	if err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}
	return nil
}

func dropSessionsTable(ctx context.Context, pool *pgxpool.Pool, tableName string) error {
	quotedTable := pgx.Identifier{tableName}.Sanitize()
	sql := fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", quotedTable)

	_, err := pool.Exec(ctx, sql)
	return err
}

func Migrate(ctx context.Context, pool *pgxpool.Pool, tables r2up.Tables) error {
	if err := tables.Validate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	if err := createSessionsTable(ctx, pool, tables.Sessions); err != nil {
		return fmt.Errorf("migrate up %s: %w", tables.Sessions, err)
	}

	return nil
}

func DropTables(ctx context.Context, pool *pgxpool.Pool, tables r2up.Tables) error {
	if err := tables.Validate(); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}

	if err := dropSessionsTable(ctx, pool, tables.Sessions); err != nil {
		return fmt.Errorf("migrate down %s: %w", tables.Sessions, err)
	}

	return nil
}
