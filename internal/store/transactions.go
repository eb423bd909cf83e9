package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/starford/spendscope/internal/apperr"
	"github.com/starford/spendscope/internal/daywise"
	"github.com/starford/spendscope/internal/models"
)

const dateLayout = "2006-01-02"

// InsertTransactions stores txs, assigning ids to rows without one. It
// returns the number of rows written.
func (db *DB) InsertTransactions(ctx context.Context, txs []models.Transaction) (int, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	n, err := insertTransactions(ctx, tx, "", txs)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit: %w", err)
	}
	return n, nil
}

// ReplaceSource swaps every transaction previously imported from source for
// txs in a single transaction.
func (db *DB) ReplaceSource(ctx context.Context, source string, txs []models.Transaction) (int, error) {
	if source == "" {
		return 0, fmt.Errorf("store: replace source: %w: empty source", apperr.ErrInvalidInput)
	}
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE source = ?`, source); err != nil {
		return 0, fmt.Errorf("store: clear source: %w", err)
	}
	n, err := insertTransactions(ctx, tx, source, txs)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit: %w", err)
	}
	return n, nil
}

func insertTransactions(ctx context.Context, tx *sql.Tx, source string, txs []models.Transaction) (int, error) {
	if len(txs) == 0 {
		return 0, nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions (id, date, year, month, category, description, credit, debit, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date        = excluded.date,
			year        = excluded.year,
			month       = excluded.month,
			category    = excluded.category,
			description = excluded.description,
			credit      = excluded.credit,
			debit       = excluded.debit,
			source      = excluded.source
	`)
	if err != nil {
		return 0, fmt.Errorf("store: prepare transaction insert: %w", err)
	}
	defer stmt.Close()

	for i, t := range txs {
		if t.Date.IsZero() {
			return 0, fmt.Errorf("store: transaction %d: %w: missing date", i, apperr.ErrInvalidInput)
		}
		id := t.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := stmt.ExecContext(ctx, id, t.Date.Format(dateLayout), t.Date.Year(), int(t.Date.Month()),
			t.Category, t.Description, t.Credit.String(), t.Debit.String(), source); err != nil {
			return 0, fmt.Errorf("store: insert transaction %d: %w", i, err)
		}
	}
	return len(txs), nil
}

// MonthRecords returns the money records of one calendar month ordered by
// date, with dates rendered as dd/mm/yyyy.
func (db *DB) MonthRecords(ctx context.Context, year, month int) ([]daywise.MoneyRecord, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("store: month records: %w: month %d", apperr.ErrInvalidInput, month)
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT date, credit, debit FROM transactions
		WHERE year = ? AND month = ?
		ORDER BY date, rowid
	`, year, month)
	if err != nil {
		return nil, fmt.Errorf("store: month records: %w", err)
	}
	defer rows.Close()

	out := []daywise.MoneyRecord{}
	for rows.Next() {
		var date, credit, debit string
		if err := rows.Scan(&date, &credit, &debit); err != nil {
			return nil, fmt.Errorf("store: scan record: %w", err)
		}
		t, err := time.Parse(dateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("store: parse stored date %q: %w", date, err)
		}
		c, err := decimal.NewFromString(credit)
		if err != nil {
			return nil, fmt.Errorf("store: parse credit: %w", err)
		}
		d, err := decimal.NewFromString(debit)
		if err != nil {
			return nil, fmt.Errorf("store: parse debit: %w", err)
		}
		out = append(out, daywise.MoneyRecord{
			Date:   daywise.FormatDate(t),
			Credit: decimal.NewNullDecimal(c),
			Debit:  decimal.NewNullDecimal(d),
		})
	}
	return out, rows.Err()
}

// CategoryMonthAmounts returns debit totals per month and category for year.
// Rows without a positive debit are left out, so credit-only categories do
// not appear. Sums are computed in decimal to keep amounts exact.
func (db *DB) CategoryMonthAmounts(ctx context.Context, year int) ([]models.CategoryMonthAmount, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT month, category, debit FROM transactions
		WHERE year = ?
		ORDER BY month, category, rowid
	`, year)
	if err != nil {
		return nil, fmt.Errorf("store: category amounts: %w", err)
	}
	defer rows.Close()

	out := []models.CategoryMonthAmount{}
	type key struct {
		month    int
		category string
	}
	index := make(map[key]int)
	for rows.Next() {
		var (
			month    int
			category string
			debit    string
		)
		if err := rows.Scan(&month, &category, &debit); err != nil {
			return nil, fmt.Errorf("store: scan category amount: %w", err)
		}
		d, err := decimal.NewFromString(debit)
		if err != nil {
			return nil, fmt.Errorf("store: parse debit: %w", err)
		}
		if !d.IsPositive() {
			continue
		}
		k := key{month, category}
		if i, ok := index[k]; ok {
			out[i].Amount = out[i].Amount.Add(d)
			continue
		}
		index[k] = len(out)
		out = append(out, models.CategoryMonthAmount{Year: year, Month: month, Category: category, Amount: d})
	}
	return out, rows.Err()
}

// Years returns the distinct years that have transactions, ascending.
func (db *DB) Years(ctx context.Context) ([]int, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT DISTINCT year FROM transactions ORDER BY year`)
	if err != nil {
		return nil, fmt.Errorf("store: years: %w", err)
	}
	defer rows.Close()

	out := []int{}
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, fmt.Errorf("store: scan year: %w", err)
		}
		out = append(out, y)
	}
	return out, rows.Err()
}
