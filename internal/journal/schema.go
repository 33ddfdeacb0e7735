package journal

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is stored in PRAGMA user_version.
const schemaVersion = 2

// migrate brings the database to schemaVersion. The journal only indexes run
// state, so an older layout is dropped and recreated rather than converted.
func (s *Store) migrate(ctx context.Context) error {
	var current int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("read journal version: %w", err)
	}
	if current == schemaVersion {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin journal migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if current != 0 {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS analyses"); err != nil {
			return fmt.Errorf("drop journal v%d: %w", current, err)
		}
	}
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS schema_version"); err != nil {
		return fmt.Errorf("drop legacy version table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create journal tables: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("stamp journal version: %w", err)
	}
	return tx.Commit()
}
