package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/starford/spendscope/internal/apperr"
	"github.com/starford/spendscope/internal/models"
)

// UpsertEmployees inserts or updates employees by id. Input order is kept as
// the listing order for new rows.
func (db *DB) UpsertEmployees(ctx context.Context, emps []models.Employee) (int, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var next int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position), 0) FROM employees`).Scan(&next); err != nil {
		return 0, fmt.Errorf("store: employee position: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO employees (id, name, department, manager_id, position, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			name       = excluded.name,
			department = excluded.department,
			manager_id = excluded.manager_id,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return 0, fmt.Errorf("store: prepare employee upsert: %w", err)
	}
	defer stmt.Close()

	for i, e := range emps {
		id := strings.TrimSpace(e.ID)
		if id == "" {
			return 0, fmt.Errorf("store: employee %d: %w: missing id", i, apperr.ErrInvalidInput)
		}
		next++
		if _, err := stmt.ExecContext(ctx, id, e.Name, e.Department, e.ManagerID, next); err != nil {
			return 0, fmt.Errorf("store: upsert employee %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit: %w", err)
	}
	return len(emps), nil
}

// Employees lists every employee in insertion order.
func (db *DB) Employees(ctx context.Context) ([]models.Employee, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, name, department, manager_id FROM employees ORDER BY position, id
	`)
	if err != nil {
		return nil, fmt.Errorf("store: employees: %w", err)
	}
	defer rows.Close()

	out := []models.Employee{}
	for rows.Next() {
		var e models.Employee
		if err := rows.Scan(&e.ID, &e.Name, &e.Department, &e.ManagerID); err != nil {
			return nil, fmt.Errorf("store: scan employee: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
