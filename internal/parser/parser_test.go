package parser

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParse_JSONArray(t *testing.T) {
	input := []byte(`[
	{"date": "15/01/2025", "category": "Salary", "credit": 1000, "debit": "400"},
	{"date": "2025-01-01", "category": " Food ", "debit": 100.25, "credit": null}
]`)
	doc, err := Parse("jan.json", input)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Kind != KindTransactions || doc.Rows() != 2 {
		t.Fatalf("doc = %+v", doc)
	}
	first := doc.Transactions[0]
	if !first.Date.Equal(time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date = %v", first.Date)
	}
	if !first.Credit.Equal(decimal.NewFromInt(1000)) || !first.Debit.Equal(decimal.NewFromInt(400)) {
		t.Errorf("amounts = %s/%s", first.Credit, first.Debit)
	}
	second := doc.Transactions[1]
	if second.Category != "Food" || !second.Credit.IsZero() || second.Debit.String() != "100.25" {
		t.Errorf("second = %+v", second)
	}
}

func TestParse_YAMLEmployees(t *testing.T) {
	input := []byte(`kind: employees
employees:
  - id: 1
    name: Ada
    department: Engineering
  - id: 2
    name: Linus
    department: Engineering
    manager_id: 1
`)
	doc, err := Parse("people.yaml", input)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Kind != KindEmployees || len(doc.Employees) != 2 {
		t.Fatalf("doc = %+v", doc)
	}
	if doc.Employees[1].ManagerID != "1" || doc.Employees[0].ID != "1" {
		t.Errorf("employees = %+v", doc.Employees)
	}
}

func TestParse_YAMLTransactionsSequence(t *testing.T) {
	input := []byte(`- date: 2025-02-03
  category: Rent
  debit: 900.00
- date: "04/02/2025"
  credit: 12
`)
	doc, err := Parse("feb.yml", input)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(doc.Transactions) != 2 {
		t.Fatalf("transactions = %+v", doc.Transactions)
	}
	if doc.Transactions[0].Date.Month() != time.February || !doc.Transactions[0].Debit.Equal(decimal.NewFromInt(900)) {
		t.Errorf("first = %+v", doc.Transactions[0])
	}
}

func TestParse_KindedJSONTransactions(t *testing.T) {
	input := []byte(`{"kind":"transactions","transactions":[{"id":"t-1","date":"01/03/2025","debit":"5"}]}`)
	doc, err := Parse("m.json", input)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Transactions[0].ID != "t-1" {
		t.Errorf("id = %q", doc.Transactions[0].ID)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		file  string
		input string
	}{
		{"bad extension", "a.txt", `[]`},
		{"bad json", "a.json", `[{`},
		{"unknown kind", "a.json", `{"kind":"invoices"}`},
		{"missing kind", "a.yaml", "transactions: []\n"},
		{"bad date", "a.json", `[{"date":"not-a-date"}]`},
		{"impossible date", "a.json", `[{"date":"31/02/2025"}]`},
		{"bad amount", "a.json", `[{"date":"01/01/2025","debit":"ten"}]`},
		{"object amount", "a.json", `[{"date":"01/01/2025","debit":{"v":1}}]`},
		{"employee without id", "a.json", `{"kind":"employees","employees":[{"name":"x"}]}`},
		{"duplicate employee", "a.json", `{"kind":"employees","employees":[{"id":"1"},{"id":"1"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.file, []byte(tt.input))
			if !errors.Is(err, ErrInvalidDocument) {
				t.Errorf("err = %v, want ErrInvalidDocument", err)
			}
		})
	}
}

func TestParse_EmptyArray(t *testing.T) {
	doc, err := Parse("empty.json", []byte(" [] "))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Rows() != 0 {
		t.Errorf("rows = %d", doc.Rows())
	}
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate(" 7/3/2025 ")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if got.Day() != 7 || got.Month() != time.March {
		t.Errorf("got %v", got)
	}
}

func TestDecodeJSON(t *testing.T) {
	doc, err := DecodeJSON(KindEmployees, []byte(`[{"id":"1","name":"Ada"}]`))
	if err != nil {
		t.Fatalf("DecodeJSON employees: %v", err)
	}
	if len(doc.Employees) != 1 || doc.Employees[0].Name != "Ada" {
		t.Errorf("employees = %+v", doc.Employees)
	}

	doc, err = DecodeJSON(KindTransactions, []byte(`{"kind":"transactions","transactions":[{"date":"01/01/2025","credit":"5"}]}`))
	if err != nil {
		t.Fatalf("DecodeJSON transactions: %v", err)
	}
	if doc.Rows() != 1 {
		t.Errorf("rows = %d", doc.Rows())
	}

	if _, err := DecodeJSON(KindTransactions, []byte(`{"kind":"employees","employees":[{"id":"1"}]}`)); !errors.Is(err, ErrInvalidDocument) {
		t.Errorf("kind mismatch err = %v", err)
	}
	if _, err := DecodeJSON("invoices", []byte(`[]`)); !errors.Is(err, ErrInvalidDocument) {
		t.Errorf("unknown kind err = %v", err)
	}
}
