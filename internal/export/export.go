// Package export renders balance series as XLSX workbooks.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/starford/spendscope/internal/daywise"
)

// Sheet names.
const (
	SheetNet     = "Net"
	SheetSplit   = "Split"
	SheetSkipped = "Skipped"
)

// ContentType is the MIME type of the generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Balance is the data written to a workbook.
type Balance struct {
	Net      []daywise.BalancePoint
	Split    daywise.SplitResult
	Skipped  []daywise.Skip
	Location *time.Location
}

// BalanceWorkbook writes b to w. The Net sheet carries the net and running
// balance per point; the Split sheet carries credit and debit side by side.
// A Skipped sheet is added only when rows were dropped.
func BalanceWorkbook(w io.Writer, b Balance) error {
	loc := b.Location
	if loc == nil {
		loc = time.Local
	}

	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("export: header style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", SheetNet); err != nil {
		return fmt.Errorf("export: rename sheet: %w", err)
	}
	running := daywise.Running(b.Net)
	rows := make([][]any, 0, len(b.Net))
	for i, p := range b.Net {
		rows = append(rows, []any{
			daywise.FormatDate(p.Time(loc)), p.Timestamp,
			p.Value.InexactFloat64(), running[i].Value.InexactFloat64(),
		})
	}
	if err := writeSheet(f, SheetNet, header, []any{"Date", "Timestamp", "Net", "Running"}, rows); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetSplit); err != nil {
		return fmt.Errorf("export: add sheet: %w", err)
	}
	rows = rows[:0]
	for i, c := range b.Split.Credit {
		row := []any{daywise.FormatDate(c.Time(loc)), c.Timestamp, c.Value.InexactFloat64(), nil}
		if i < len(b.Split.Debit) {
			row[3] = b.Split.Debit[i].Value.InexactFloat64()
		}
		rows = append(rows, row)
	}
	if err := writeSheet(f, SheetSplit, header, []any{"Date", "Timestamp", "Credit", "Debit"}, rows); err != nil {
		return err
	}

	if len(b.Skipped) > 0 {
		if _, err := f.NewSheet(SheetSkipped); err != nil {
			return fmt.Errorf("export: add sheet: %w", err)
		}
		rows = rows[:0]
		for _, s := range b.Skipped {
			reason := ""
			if s.Err != nil {
				reason = s.Err.Error()
			}
			rows = append(rows, []any{s.Index, s.Date, reason})
		}
		if err := writeSheet(f, SheetSkipped, header, []any{"Index", "Date", "Reason"}, rows); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, headerStyle int, header []any, rows [][]any) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("export: %s header: %w", sheet, err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return fmt.Errorf("export: %s header range: %w", sheet, err)
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("export: %s header style: %w", sheet, err)
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("export: %s row %d: %w", sheet, i, err)
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("export: %s row %d: %w", sheet, i, err)
		}
	}
	if err := f.SetColWidth(sheet, "A", "A", 12); err != nil {
		return fmt.Errorf("export: %s column width: %w", sheet, err)
	}
	return f.SetColWidth(sheet, "B", "B", 16)
}
