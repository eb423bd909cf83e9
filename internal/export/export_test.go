package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/starford/spendscope/internal/daywise"
)

func TestBalanceWorkbook(t *testing.T) {
	agg := daywise.Aggregator{Location: time.UTC}
	records := []daywise.MoneyRecord{
		{Date: "15/01/2025", Credit: decimal.NewNullDecimal(decimal.NewFromInt(1000)), Debit: decimal.NewNullDecimal(decimal.NewFromInt(400))},
		{Date: "01/01/2025", Debit: decimal.NewNullDecimal(decimal.NewFromInt(100))},
		{Date: "garbage"},
	}
	net := agg.Net(records)

	var buf bytes.Buffer
	err := BalanceWorkbook(&buf, Balance{
		Net:      net.Points,
		Split:    agg.Split(records),
		Skipped:  net.Skipped,
		Location: time.UTC,
	})
	if err != nil {
		t.Fatalf("BalanceWorkbook: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 3 || sheets[0] != SheetNet || sheets[1] != SheetSplit || sheets[2] != SheetSkipped {
		t.Fatalf("sheets = %v", sheets)
	}

	rows, err := f.GetRows(SheetNet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("net rows = %d, want header + 2", len(rows))
	}
	if rows[1][0] != "01/01/2025" || rows[1][2] != "-100" || rows[2][3] != "500" {
		t.Errorf("net rows = %v", rows)
	}

	split, _ := f.GetRows(SheetSplit)
	if len(split) != 3 || split[2][2] != "1000" || split[2][3] != "400" {
		t.Errorf("split rows = %v", split)
	}

	skipped, _ := f.GetRows(SheetSkipped)
	if len(skipped) != 2 || skipped[1][1] != "garbage" {
		t.Errorf("skipped rows = %v", skipped)
	}
}

func TestBalanceWorkbook_NoSkippedSheet(t *testing.T) {
	var buf bytes.Buffer
	if err := BalanceWorkbook(&buf, Balance{}); err != nil {
		t.Fatalf("BalanceWorkbook: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()
	if got := f.GetSheetList(); len(got) != 2 {
		t.Errorf("sheets = %v, want Net and Split", got)
	}
}
