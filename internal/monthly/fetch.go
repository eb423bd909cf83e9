// Package monthly gathers a year of money records by issuing one request per
// calendar month concurrently.
package monthly

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/starford/spendscope/internal/daywise"
)

// Source returns the records of one calendar month.
type Source interface {
	MonthRecords(ctx context.Context, year, month int) ([]daywise.MoneyRecord, error)
}

// MonthError records a month whose fetch failed.
type MonthError struct {
	Month int    `json:"month"`
	Err   error  `json:"-"`
	Msg   string `json:"error"`
}

// YearBatch is the concatenation of a year's monthly batches, January first.
type YearBatch struct {
	Year    int                   `json:"year"`
	Records []daywise.MoneyRecord `json:"records"`
	Failed  []MonthError          `json:"failed"`
}

// Fetcher fans a year out into twelve month fetches.
type Fetcher struct {
	Source Source
	Logger *slog.Logger
	// Limit caps concurrent month fetches. Zero or negative means twelve.
	Limit int
}

// FetchYear requests all twelve months of year concurrently. A failed month
// contributes no records and is listed in Failed; only cancellation of ctx
// fails the whole call.
func (f *Fetcher) FetchYear(ctx context.Context, year int) (YearBatch, error) {
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		batches [12][]daywise.MoneyRecord
		errs    [12]error
	)

	g, gCtx := errgroup.WithContext(ctx)
	limit := f.Limit
	if limit <= 0 || limit > 12 {
		limit = 12
	}
	g.SetLimit(limit)

	for m := 1; m <= 12; m++ {
		g.Go(func() error {
			recs, err := f.Source.MonthRecords(gCtx, year, m)
			if err != nil {
				if ctxErr := gCtx.Err(); ctxErr != nil {
					return ctxErr
				}
				errs[m-1] = err
				return nil
			}
			batches[m-1] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return YearBatch{}, fmt.Errorf("monthly: fetch year %d: %w", year, err)
	}

	out := YearBatch{Year: year, Records: []daywise.MoneyRecord{}, Failed: []MonthError{}}
	for i := range batches {
		if errs[i] != nil {
			logger.Warn("month fetch failed",
				slog.Int("year", year),
				slog.Int("month", i+1),
				slog.String("error", errs[i].Error()))
			out.Failed = append(out.Failed, MonthError{Month: i + 1, Err: errs[i], Msg: errs[i].Error()})
			continue
		}
		out.Records = append(out.Records, batches[i]...)
	}
	return out, nil
}
