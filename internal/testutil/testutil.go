// Package testutil provides shared test helpers for setting up inboxes,
// databases and seed data.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/starford/spendscope/internal/models"
	"github.com/starford/spendscope/internal/storage"
	"github.com/starford/spendscope/internal/store"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "spendscope-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestInbox creates a temporary inbox directory with a storage provider.
func TestInbox(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	inbox, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return inbox.Root(), inbox
}

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// Tx builds a transaction on the given UTC day.
func Tx(y int, m time.Month, d int, category, credit, debit string) models.Transaction {
	return models.Transaction{
		Date:     time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Category: category,
		Credit:   amount(credit),
		Debit:    amount(debit),
	}
}

func amount(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	return decimal.RequireFromString(s)
}

// Seed inserts a small two-year data set: January and February 2025 plus
// December 2024, and three employees in two departments.
func Seed(t *testing.T, db *store.DB) {
	t.Helper()
	ctx := context.Background()
	_, err := db.InsertTransactions(ctx, []models.Transaction{
		Tx(2025, time.January, 15, "Salary", "1000", "400"),
		Tx(2025, time.January, 1, "Food", "", "100"),
		Tx(2025, time.February, 3, "Rent", "", "900"),
		Tx(2024, time.December, 24, "Gifts", "", "50"),
	})
	if err != nil {
		t.Fatalf("seed transactions: %v", err)
	}
	_, err = db.UpsertEmployees(ctx, []models.Employee{
		{ID: "1", Name: "Ada", Department: "Engineering"},
		{ID: "2", Name: "Linus", Department: "Engineering", ManagerID: "1"},
		{ID: "3", Name: "Grace", Department: "Operations"},
	})
	if err != nil {
		t.Fatalf("seed employees: %v", err)
	}
}
