package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
)

//go:embed schema_index.sql
var indexSchemaSQL string

//go:embed schema_content.sql
var contentSchemaSQL string

// schemaVersion is the current schema version for both databases. Bump this
// when either schema changes; existing databases must be recreated.
const schemaVersion = 1

func initSchema(ctx context.Context, db *sql.DB, schemaSQL, label string) error {
	var tableExists int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check %s schema_version table: %w", label, err)
	}

	if tableExists == 0 {
		return createSchema(ctx, db, schemaSQL, label)
	}

	var version int
	err = db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read %s schema version: %w", label, err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: %s database has version %d, expected %d (delete the database to recreate)",
			ErrSchemaMismatch, label, version, schemaVersion)
	}
	return nil
}

func createSchema(ctx context.Context, db *sql.DB, schemaSQL, label string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s schema tx: %w", label, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create %s schema: %w", label, err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record %s schema version: %w", label, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s schema: %w", label, err)
	}
	return nil
}
