package store

import (
	"context"
	"fmt"
)

// ImportChecksums returns the recorded checksum of every imported file.
func (db *DB) ImportChecksums(ctx context.Context) (map[string]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT path, checksum FROM imports`)
	if err != nil {
		return nil, fmt.Errorf("store: import checksums: %w", err)
	}
	defer rows.Close()

	m := make(map[string]string)
	for rows.Next() {
		var p, c string
		if err := rows.Scan(&p, &c); err != nil {
			return nil, fmt.Errorf("store: scan import: %w", err)
		}
		m[p] = c
	}
	return m, rows.Err()
}

// RecordImport notes that path was imported with the given checksum.
func (db *DB) RecordImport(ctx context.Context, path, checksum string, rows int) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO imports (path, checksum, row_count, imported_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(path) DO UPDATE SET
			checksum    = excluded.checksum,
			row_count   = excluded.row_count,
			imported_at = excluded.imported_at
	`, path, checksum, rows)
	if err != nil {
		return fmt.Errorf("store: record import: %w", err)
	}
	return nil
}

// ForgetImport drops the ledger entry for path together with every
// transaction imported from it.
func (db *DB) ForgetImport(ctx context.Context, path string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE source = ?`, path); err != nil {
		return fmt.Errorf("store: forget transactions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM imports WHERE path = ?`, path); err != nil {
		return fmt.Errorf("store: forget import: %w", err)
	}
	return tx.Commit()
}
