package daywise

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func ts(t *testing.T, loc *time.Location, y int, m time.Month, d int) int64 {
	t.Helper()
	return time.Date(y, m, d, 0, 0, 0, 0, loc).UnixMilli()
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		d, m, y int
		wantErr bool
	}{
		{in: "15/01/2025", d: 15, m: 1, y: 2025},
		{in: " 1/2/2024 ", d: 1, m: 2, y: 2024},
		{in: "31/02/2025", d: 31, m: 2, y: 2025},
		{in: "not-a-date", wantErr: true},
		{in: "2025-01-15", wantErr: true},
		{in: "01/01", wantErr: true},
		{in: "01/01/2025/1", wantErr: true},
		{in: "aa/01/2025", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, m, y, err := ParseDate(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedDate) {
					t.Fatalf("err = %v, want ErrMalformedDate", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDate: %v", err)
			}
			if d != tt.d || m != tt.m || y != tt.y {
				t.Errorf("got %d/%d/%d, want %d/%d/%d", d, m, y, tt.d, tt.m, tt.y)
			}
		})
	}
}

func TestNet_SortsAndSubtracts(t *testing.T) {
	loc := time.UTC
	agg := Aggregator{Location: loc}
	res := agg.Net([]MoneyRecord{
		{Date: "15/01/2025", Credit: dec("1000"), Debit: dec("400")},
		{Date: "01/01/2025", Credit: dec("0"), Debit: dec("100")},
	})
	if len(res.Points) != 2 {
		t.Fatalf("points = %d, want 2", len(res.Points))
	}
	want := []BalancePoint{
		{Timestamp: ts(t, loc, 2025, time.January, 1), Value: decimal.NewFromInt(-100)},
		{Timestamp: ts(t, loc, 2025, time.January, 15), Value: decimal.NewFromInt(600)},
	}
	for i, w := range want {
		got := res.Points[i]
		if got.Timestamp != w.Timestamp || !got.Value.Equal(w.Value) {
			t.Errorf("point %d = (%d, %s), want (%d, %s)", i, got.Timestamp, got.Value, w.Timestamp, w.Value)
		}
	}
	if len(res.Skipped) != 0 {
		t.Errorf("skipped = %v", res.Skipped)
	}
}

func TestNet_AbsentAmountsAreZero(t *testing.T) {
	agg := Aggregator{Location: time.UTC}
	res := agg.Net([]MoneyRecord{{Date: "03/03/2025", Debit: dec("150")}})
	if len(res.Points) != 1 || !res.Points[0].Value.Equal(decimal.NewFromInt(-150)) {
		t.Fatalf("points = %+v, want -150", res.Points)
	}

	var r MoneyRecord
	if err := json.Unmarshal([]byte(`{"date":"03/03/2025","credit":null,"debit":"150.50"}`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	res = agg.Net([]MoneyRecord{r})
	if !res.Points[0].Value.Equal(decimal.RequireFromString("-150.5")) {
		t.Errorf("value = %s, want -150.5", res.Points[0].Value)
	}
}

func TestNet_SkipsMalformed(t *testing.T) {
	agg := Aggregator{Location: time.UTC}
	res := agg.Net([]MoneyRecord{
		{Date: "not-a-date", Credit: dec("10")},
		{Date: "02/01/2025", Credit: dec("500"), Debit: dec("200")},
	})
	if len(res.Points) != 1 || !res.Points[0].Value.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("points = %+v", res.Points)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Index != 0 || res.Skipped[0].Date != "not-a-date" {
		t.Fatalf("skipped = %+v", res.Skipped)
	}
	if !errors.Is(res.Skipped[0].Err, ErrMalformedDate) {
		t.Errorf("skip err = %v", res.Skipped[0].Err)
	}
}

func TestNet_StableTiesNoDedup(t *testing.T) {
	agg := Aggregator{Location: time.UTC}
	res := agg.Net([]MoneyRecord{
		{Date: "05/05/2025", Credit: dec("1")},
		{Date: "01/05/2025", Credit: dec("9")},
		{Date: "05/05/2025", Credit: dec("2")},
		{Date: "05/05/2025", Credit: dec("3")},
	})
	if len(res.Points) != 4 {
		t.Fatalf("points = %d, want 4 (no dedup)", len(res.Points))
	}
	order := []string{"9", "1", "2", "3"}
	for i, v := range order {
		if res.Points[i].Value.String() != v {
			t.Errorf("point %d = %s, want %s", i, res.Points[i].Value, v)
		}
	}
	if !IsSorted(res.Points) {
		t.Error("result not sorted")
	}
}

func TestNet_LocalMidnight(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	res := Aggregator{Location: loc}.Net([]MoneyRecord{{Date: "10/06/2025"}})
	got := res.Points[0].Time(loc)
	if got.Hour() != 0 || got.Minute() != 0 || got.Day() != 10 || got.Month() != time.June {
		t.Errorf("time = %v, want local midnight 2025-06-10", got)
	}
}

func TestNet_NormalisesOverflow(t *testing.T) {
	res := Aggregator{Location: time.UTC}.Net([]MoneyRecord{{Date: "31/02/2025"}})
	want := ts(t, time.UTC, 2025, time.March, 3)
	if res.Points[0].Timestamp != want {
		t.Errorf("timestamp = %d, want %d", res.Points[0].Timestamp, want)
	}
}

func TestNet_Empty(t *testing.T) {
	res := Aggregator{}.Net(nil)
	if res.Points == nil || len(res.Points) != 0 || len(res.Skipped) != 0 {
		t.Errorf("res = %+v, want empty", res)
	}
	split := Aggregator{}.Split(nil)
	if split.Credit == nil || split.Debit == nil || len(split.Credit)+len(split.Debit) != 0 {
		t.Errorf("split = %+v, want empty", split)
	}
}

func TestSplit(t *testing.T) {
	loc := time.UTC
	res := Aggregator{Location: loc}.Split([]MoneyRecord{
		{Date: "15/01/2025", Credit: dec("1000"), Debit: dec("400")},
		{Date: "01/01/2025", Debit: dec("100")},
		{Date: "bad"},
	})
	if len(res.Credit) != 2 || len(res.Debit) != 2 {
		t.Fatalf("series lengths = %d/%d", len(res.Credit), len(res.Debit))
	}
	if res.Credit[0].Timestamp != ts(t, loc, 2025, time.January, 1) || !res.Credit[0].Value.IsZero() {
		t.Errorf("credit[0] = %+v", res.Credit[0])
	}
	if !res.Debit[1].Value.Equal(decimal.NewFromInt(400)) {
		t.Errorf("debit[1] = %s", res.Debit[1].Value)
	}
	if !IsSorted(res.Credit) || !IsSorted(res.Debit) {
		t.Error("split series not sorted")
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Index != 2 {
		t.Errorf("skipped = %+v", res.Skipped)
	}
}

func TestRunning(t *testing.T) {
	pts := []BalancePoint{
		{Timestamp: 1, Value: decimal.NewFromInt(-100)},
		{Timestamp: 2, Value: decimal.NewFromInt(600)},
		{Timestamp: 3, Value: decimal.NewFromInt(-50)},
	}
	got := Running(pts)
	want := []int64{-100, 500, 450}
	for i, w := range want {
		if !got[i].Value.Equal(decimal.NewFromInt(w)) || got[i].Timestamp != pts[i].Timestamp {
			t.Errorf("running[%d] = %+v, want %d", i, got[i], w)
		}
	}
	if !pts[1].Value.Equal(decimal.NewFromInt(600)) {
		t.Error("Running modified its input")
	}
}

func TestBalancePoint_JSON(t *testing.T) {
	p := BalancePoint{Timestamp: 1735689600000, Value: decimal.RequireFromString("-100.25")}
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `[1735689600000,-100.25]` {
		t.Fatalf("json = %s", b)
	}
	var back BalancePoint
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Timestamp != p.Timestamp || !back.Value.Equal(p.Value) {
		t.Errorf("round trip = %+v", back)
	}
}

func TestFormatDate(t *testing.T) {
	if got := FormatDate(time.Date(2025, time.March, 7, 0, 0, 0, 0, time.UTC)); got != "07/03/2025" {
		t.Errorf("FormatDate = %s", got)
	}
}

func TestSkip_JSON(t *testing.T) {
	res := Aggregator{}.Net([]MoneyRecord{{Date: "nope"}})
	b, err := json.Marshal(res.Skipped)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `[{"index":0,"date":"nope","reason":"daywise: malformed date: \"nope\""}]`
	if string(b) != want {
		t.Errorf("json = %s, want %s", b, want)
	}
}
