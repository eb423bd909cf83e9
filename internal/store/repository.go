package store

import (
	"context"

	"github.com/starford/spendscope/internal/daywise"
	"github.com/starford/spendscope/internal/models"
)

// Repository is the persistence surface used by the importer and the
// dashboard service. Consumers should depend on it rather than *DB.
type Repository interface {
	InsertTransactions(ctx context.Context, txs []models.Transaction) (int, error)
	ReplaceSource(ctx context.Context, source string, txs []models.Transaction) (int, error)
	MonthRecords(ctx context.Context, year, month int) ([]daywise.MoneyRecord, error)
	CategoryMonthAmounts(ctx context.Context, year int) ([]models.CategoryMonthAmount, error)
	Years(ctx context.Context) ([]int, error)
	UpsertEmployees(ctx context.Context, emps []models.Employee) (int, error)
	Employees(ctx context.Context) ([]models.Employee, error)
	ImportChecksums(ctx context.Context) (map[string]string, error)
	RecordImport(ctx context.Context, path, checksum string, rows int) error
	ForgetImport(ctx context.Context, path string) error
	Close() error
}

var _ Repository = (*DB)(nil)
