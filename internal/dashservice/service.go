// Package dashservice assembles chart data for the dashboard from the store
// and the monthly record source.
package dashservice

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/starford/spendscope/internal/apperr"
	"github.com/starford/spendscope/internal/daywise"
	"github.com/starford/spendscope/internal/export"
	"github.com/starford/spendscope/internal/models"
	"github.com/starford/spendscope/internal/monthly"
	"github.com/starford/spendscope/internal/tree"
)

// Balance modes.
const (
	ModeNet     = "net"
	ModeSplit   = "split"
	ModeRunning = "running"
)

// Repository is the subset of the store the service reads and writes.
type Repository interface {
	InsertTransactions(ctx context.Context, txs []models.Transaction) (int, error)
	UpsertEmployees(ctx context.Context, emps []models.Employee) (int, error)
	MonthRecords(ctx context.Context, year, month int) ([]daywise.MoneyRecord, error)
	CategoryMonthAmounts(ctx context.Context, year int) ([]models.CategoryMonthAmount, error)
	Years(ctx context.Context) ([]int, error)
	Employees(ctx context.Context) ([]models.Employee, error)
}

// Options configures a Service.
type Options struct {
	ExpenseRootName  string
	EmployeeRootName string
	// Dark is the theme used when a request does not pick one.
	Dark       bool
	CacheTTL   time.Duration
	Location   *time.Location
	FetchLimit int
}

// Balance is a day-wise balance response. Points is set for the net and
// running modes, Credit and Debit for the split mode.
type Balance struct {
	Year    int                    `json:"year,omitempty"`
	Mode    string                 `json:"mode"`
	Points  []daywise.BalancePoint `json:"points,omitempty"`
	Credit  []daywise.BalancePoint `json:"credit,omitempty"`
	Debit   []daywise.BalancePoint `json:"debit,omitempty"`
	Skipped []daywise.Skip         `json:"skipped"`
	Failed  []monthly.MonthError   `json:"failed_months,omitempty"`
}

// Service coordinates the store, the monthly source, the tree builder and
// the day-wise aggregator.
type Service struct {
	repo    Repository
	fetcher *monthly.Fetcher
	agg     daywise.Aggregator
	opts    Options
	logger  *slog.Logger
	now     func() time.Time

	cache *cache.Cache
	group singleflight.Group
}

// NewService creates a dashboard service. Year balances are read through
// src, which is usually the store itself or a remote analytics backend.
func NewService(repo Repository, src monthly.Source, logger *slog.Logger, opts Options) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ExpenseRootName == "" {
		opts.ExpenseRootName = "Expense Data"
	}
	if opts.EmployeeRootName == "" {
		opts.EmployeeRootName = "Employees"
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if src == nil {
		src = repo
	}
	return &Service{
		repo:    repo,
		fetcher: &monthly.Fetcher{Source: src, Logger: logger, Limit: opts.FetchLimit},
		agg:     daywise.Aggregator{Location: opts.Location},
		opts:    opts,
		logger:  logger,
		now:     time.Now,
		cache:   cache.New(opts.CacheTTL, 2*opts.CacheTTL),
	}
}

// Invalidate drops every cached aggregate. Call it after data changes.
func (s *Service) Invalidate() {
	s.cache.Flush()
}

// cached returns the value under key, computing it at most once across
// concurrent callers on a miss. fn runs detached from the caller's
// cancellation so one disconnecting client does not fail the others waiting
// on the same key. Values fn marks as partial are returned but not stored.
func (s *Service) cached(ctx context.Context, key string, fn func(ctx context.Context) (v any, partial bool, err error)) (any, error) {
	if v, ok := s.cache.Get(key); ok {
		return v, nil
	}
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		v, partial, err := fn(shared)
		if err != nil {
			return nil, err
		}
		if !partial {
			s.cache.Set(key, v, cache.DefaultExpiration)
		}
		return v, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

func (s *Service) theme(dark *bool) tree.Options {
	if dark != nil {
		return tree.Options{Dark: *dark}
	}
	return tree.Options{Dark: s.opts.Dark}
}

// BuildTree converts caller-supplied flat nodes into a forest.
func (s *Service) BuildTree(nodes []tree.FlatNode, dark *bool) ([]*tree.TreeNode, error) {
	return tree.Build(nodes, s.theme(dark))
}

// ExpenseTree returns root -> year -> month -> category for year, or for
// every stored year when year is zero.
func (s *Service) ExpenseTree(ctx context.Context, year int, dark *bool) ([]*tree.TreeNode, error) {
	v, err := s.cached(ctx, "expenses:"+strconv.Itoa(year), func(ctx context.Context) (any, bool, error) {
		years := []int{year}
		if year == 0 {
			var err error
			if years, err = s.repo.Years(ctx); err != nil {
				return nil, false, err
			}
		}
		var rows []models.CategoryMonthAmount
		for _, y := range years {
			r, err := s.repo.CategoryMonthAmounts(ctx, y)
			if err != nil {
				return nil, false, err
			}
			rows = append(rows, r...)
		}
		return tree.ExpenseNodes(rows, s.opts.ExpenseRootName), false, nil
	})
	if err != nil {
		return nil, fmt.Errorf("dashservice: expense tree: %w", err)
	}
	return tree.Build(v.([]tree.FlatNode), s.theme(dark))
}

// EmployeeTree returns root -> department -> reporting lines.
func (s *Service) EmployeeTree(ctx context.Context, dark *bool) ([]*tree.TreeNode, error) {
	v, err := s.cached(ctx, "employees", func(ctx context.Context) (any, bool, error) {
		emps, err := s.repo.Employees(ctx)
		if err != nil {
			return nil, false, err
		}
		return tree.EmployeeNodes(emps, s.opts.EmployeeRootName), false, nil
	})
	if err != nil {
		return nil, fmt.Errorf("dashservice: employee tree: %w", err)
	}
	return tree.Build(v.([]tree.FlatNode), s.theme(dark))
}

// CurrentYear is the year in the dashboard time zone. Requests that do not
// name a year use it.
func (s *Service) CurrentYear() int {
	loc := s.opts.Location
	if loc == nil {
		loc = time.Local
	}
	return s.now().In(loc).Year()
}

// Years lists the years with stored transactions.
func (s *Service) Years(ctx context.Context) ([]int, error) {
	return s.repo.Years(ctx)
}

func (s *Service) yearBatch(ctx context.Context, year int) (monthly.YearBatch, error) {
	v, err := s.cached(ctx, "year:"+strconv.Itoa(year), func(ctx context.Context) (any, bool, error) {
		batch, err := s.fetcher.FetchYear(ctx, year)
		return batch, len(batch.Failed) > 0, err
	})
	if err != nil {
		return monthly.YearBatch{}, fmt.Errorf("dashservice: year %d: %w", year, err)
	}
	return v.(monthly.YearBatch), nil
}

// DaywiseNet returns the net day-wise series of year.
func (s *Service) DaywiseNet(ctx context.Context, year int) (Balance, error) {
	return s.Balance(ctx, year, ModeNet)
}

// DaywiseSplit returns the credit and debit series of year.
func (s *Service) DaywiseSplit(ctx context.Context, year int) (Balance, error) {
	return s.Balance(ctx, year, ModeSplit)
}

// RunningBalance returns the cumulative balance of year.
func (s *Service) RunningBalance(ctx context.Context, year int) (Balance, error) {
	return s.Balance(ctx, year, ModeRunning)
}

// Balance fetches the twelve months of year and aggregates them in mode.
// Months that failed to load are listed in Failed.
func (s *Service) Balance(ctx context.Context, year int, mode string) (Balance, error) {
	if err := ValidateMode(mode); err != nil {
		return Balance{}, err
	}
	batch, err := s.yearBatch(ctx, year)
	if err != nil {
		return Balance{}, err
	}
	out := s.aggregate(batch.Records, mode)
	out.Year = year
	out.Failed = batch.Failed
	return out, nil
}

// DaywiseFromRecords aggregates caller-supplied records in mode.
func (s *Service) DaywiseFromRecords(records []daywise.MoneyRecord, mode string) (Balance, error) {
	if err := ValidateMode(mode); err != nil {
		return Balance{}, err
	}
	return s.aggregate(records, mode), nil
}

func (s *Service) aggregate(records []daywise.MoneyRecord, mode string) Balance {
	switch mode {
	case ModeSplit:
		res := s.agg.Split(records)
		return Balance{Mode: mode, Credit: res.Credit, Debit: res.Debit, Skipped: res.Skipped}
	case ModeRunning:
		res := s.agg.Net(records)
		return Balance{Mode: mode, Points: daywise.Running(res.Points), Skipped: res.Skipped}
	default:
		res := s.agg.Net(records)
		return Balance{Mode: ModeNet, Points: res.Points, Skipped: res.Skipped}
	}
}

// ValidateMode rejects unknown balance modes. An empty mode means net.
func ValidateMode(mode string) error {
	switch mode {
	case "", ModeNet, ModeSplit, ModeRunning:
		return nil
	}
	return fmt.Errorf("dashservice: %w: unknown mode %q", apperr.ErrInvalidInput, mode)
}

// ExportBalance writes the year's balance workbook to w.
func (s *Service) ExportBalance(ctx context.Context, year int, w io.Writer) error {
	batch, err := s.yearBatch(ctx, year)
	if err != nil {
		return err
	}
	net := s.agg.Net(batch.Records)
	return export.BalanceWorkbook(w, export.Balance{
		Net:      net.Points,
		Split:    s.agg.Split(batch.Records),
		Skipped:  net.Skipped,
		Location: s.opts.Location,
	})
}

// MonthRecords serves one month of stored records.
func (s *Service) MonthRecords(ctx context.Context, year, month int) ([]daywise.MoneyRecord, error) {
	return s.repo.MonthRecords(ctx, year, month)
}

// ImportTransactions stores txs and drops cached aggregates.
func (s *Service) ImportTransactions(ctx context.Context, txs []models.Transaction) (int, error) {
	if len(txs) == 0 {
		return 0, fmt.Errorf("dashservice: %w: no transactions", apperr.ErrInvalidInput)
	}
	n, err := s.repo.InsertTransactions(ctx, txs)
	if err != nil {
		return 0, err
	}
	s.Invalidate()
	s.logger.Info("transactions ingested", slog.Int("rows", n))
	return n, nil
}

// ImportEmployees upserts emps and drops cached aggregates.
func (s *Service) ImportEmployees(ctx context.Context, emps []models.Employee) (int, error) {
	if len(emps) == 0 {
		return 0, fmt.Errorf("dashservice: %w: no employees", apperr.ErrInvalidInput)
	}
	n, err := s.repo.UpsertEmployees(ctx, emps)
	if err != nil {
		return 0, err
	}
	s.Invalidate()
	s.logger.Info("employees ingested", slog.Int("rows", n))
	return n, nil
}
