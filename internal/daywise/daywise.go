// Package daywise converts dated money records into chart-ready balance
// series keyed by local-midnight timestamps.
package daywise

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// MoneyRecord is a dated credit/debit entry as delivered by the analytics
// backend. Absent or null amounts count as zero.
type MoneyRecord struct {
	Date   string              `json:"date"`
	Credit decimal.NullDecimal `json:"credit"`
	Debit  decimal.NullDecimal `json:"debit"`
}

// BalancePoint is one chart sample. It encodes as [timestamp, value].
type BalancePoint struct {
	Timestamp int64
	Value     decimal.Decimal
}

// Time returns the point's timestamp in loc.
func (p BalancePoint) Time(loc *time.Location) time.Time {
	return time.UnixMilli(p.Timestamp).In(loc)
}

func (p BalancePoint) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.Timestamp, json.Number(p.Value.String())})
}

func (p *BalancePoint) UnmarshalJSON(data []byte) error {
	var raw [2]json.Number
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("daywise: decode point: %w", err)
	}
	ts, err := raw[0].Int64()
	if err != nil {
		return fmt.Errorf("daywise: decode point timestamp: %w", err)
	}
	v, err := decimal.NewFromString(raw[1].String())
	if err != nil {
		return fmt.Errorf("daywise: decode point value: %w", err)
	}
	p.Timestamp, p.Value = ts, v
	return nil
}

// Skip records an input row that was dropped because its date did not parse.
type Skip struct {
	Index int
	Date  string
	Err   error
}

func (s Skip) MarshalJSON() ([]byte, error) {
	reason := ""
	if s.Err != nil {
		reason = s.Err.Error()
	}
	return json.Marshal(struct {
		Index  int    `json:"index"`
		Date   string `json:"date"`
		Reason string `json:"reason"`
	}{s.Index, s.Date, reason})
}

// Result is a net balance series.
type Result struct {
	Points  []BalancePoint `json:"points"`
	Skipped []Skip         `json:"skipped"`
}

// SplitResult holds independent credit and debit series.
type SplitResult struct {
	Credit  []BalancePoint `json:"credit"`
	Debit   []BalancePoint `json:"debit"`
	Skipped []Skip         `json:"skipped"`
}

// Aggregator maps records to timestamps in Location. The zero value uses
// time.Local.
type Aggregator struct {
	Location *time.Location
}

func (a Aggregator) location() *time.Location {
	if a.Location != nil {
		return a.Location
	}
	return time.Local
}

// Net produces one point per valid record with value credit minus debit,
// sorted ascending by timestamp. Records sharing a day are not merged.
func (a Aggregator) Net(records []MoneyRecord) Result {
	res := Result{Points: make([]BalancePoint, 0, len(records)), Skipped: []Skip{}}
	a.each(records, &res.Skipped, func(ts int64, credit, debit decimal.Decimal) {
		res.Points = append(res.Points, BalancePoint{Timestamp: ts, Value: credit.Sub(debit)})
	})
	SortStable(res.Points)
	return res
}

// Split produces separate credit and debit series, each sorted independently.
func (a Aggregator) Split(records []MoneyRecord) SplitResult {
	res := SplitResult{
		Credit:  make([]BalancePoint, 0, len(records)),
		Debit:   make([]BalancePoint, 0, len(records)),
		Skipped: []Skip{},
	}
	a.each(records, &res.Skipped, func(ts int64, credit, debit decimal.Decimal) {
		res.Credit = append(res.Credit, BalancePoint{Timestamp: ts, Value: credit})
		res.Debit = append(res.Debit, BalancePoint{Timestamp: ts, Value: debit})
	})
	SortStable(res.Credit)
	SortStable(res.Debit)
	return res
}

func (a Aggregator) each(records []MoneyRecord, skipped *[]Skip, fn func(ts int64, credit, debit decimal.Decimal)) {
	loc := a.location()
	for i, r := range records {
		d, m, y, err := ParseDate(r.Date)
		if err != nil {
			*skipped = append(*skipped, Skip{Index: i, Date: r.Date, Err: err})
			continue
		}
		fn(midnight(d, m, y, loc), amount(r.Credit), amount(r.Debit))
	}
}

func amount(v decimal.NullDecimal) decimal.Decimal {
	if !v.Valid {
		return decimal.Zero
	}
	return v.Decimal
}

// Running returns the cumulative balance of a sorted net series. The input is
// not modified.
func Running(points []BalancePoint) []BalancePoint {
	out := make([]BalancePoint, len(points))
	total := decimal.Zero
	for i, p := range points {
		total = total.Add(p.Value)
		out[i] = BalancePoint{Timestamp: p.Timestamp, Value: total}
	}
	return out
}

// SortStable orders points ascending by timestamp, keeping ties in place.
func SortStable(points []BalancePoint) {
	slices.SortStableFunc(points, byTimestamp)
}

// IsSorted reports whether points are in non-decreasing timestamp order.
func IsSorted(points []BalancePoint) bool {
	return slices.IsSortedFunc(points, byTimestamp)
}

func byTimestamp(a, b BalancePoint) int {
	return cmp.Compare(a.Timestamp, b.Timestamp)
}
