// Package parser decodes transaction and employee import documents.
package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/starford/spendscope/internal/daywise"
	"github.com/starford/spendscope/internal/models"
)

// Document kinds.
const (
	KindTransactions = "transactions"
	KindEmployees    = "employees"
)

// ErrInvalidDocument wraps every decoding and validation failure.
var ErrInvalidDocument = errors.New("parser: invalid document")

// Document is a decoded import file.
type Document struct {
	Kind         string
	Transactions []models.Transaction
	Employees    []models.Employee
}

// Rows returns the number of records in the document.
func (d *Document) Rows() int {
	if d.Kind == KindEmployees {
		return len(d.Employees)
	}
	return len(d.Transactions)
}

type rawTransaction struct {
	ID          scalar `json:"id" yaml:"id"`
	Date        scalar `json:"date" yaml:"date"`
	Category    scalar `json:"category" yaml:"category"`
	Description scalar `json:"description" yaml:"description"`
	Credit      scalar `json:"credit" yaml:"credit"`
	Debit       scalar `json:"debit" yaml:"debit"`
}

type rawEmployee struct {
	ID         scalar `json:"id" yaml:"id"`
	Name       scalar `json:"name" yaml:"name"`
	Department scalar `json:"department" yaml:"department"`
	ManagerID  scalar `json:"manager_id" yaml:"manager_id"`
}

type rawDocument struct {
	Kind         string           `json:"kind" yaml:"kind"`
	Transactions []rawTransaction `json:"transactions" yaml:"transactions"`
	Employees    []rawEmployee    `json:"employees" yaml:"employees"`
}

// Parse decodes data according to the file extension of name. A top-level
// array is read as a list of transactions; an object must carry a kind.
func Parse(name string, data []byte) (*Document, error) {
	ext := strings.ToLower(filepath.Ext(name))
	var unmarshal func([]byte, any) error
	switch ext {
	case ".json":
		unmarshal = json.Unmarshal
	case ".yaml", ".yml":
		unmarshal = yaml.Unmarshal
	default:
		return nil, fmt.Errorf("%w: unsupported extension %q", ErrInvalidDocument, ext)
	}

	var raw rawDocument
	if isSequence(data, ext) {
		if err := unmarshal(data, &raw.Transactions); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		raw.Kind = KindTransactions
	} else if err := unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	return build(raw)
}

// DecodeJSON decodes a request body holding rows of kind: either a bare
// array of rows or a document whose kind matches.
func DecodeJSON(kind string, data []byte) (*Document, error) {
	var raw rawDocument
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("[")) {
		var err error
		switch kind {
		case KindEmployees:
			err = json.Unmarshal(data, &raw.Employees)
		case KindTransactions:
			err = json.Unmarshal(data, &raw.Transactions)
		default:
			return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidDocument, kind)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		raw.Kind = kind
	} else if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	doc, err := build(raw)
	if err != nil {
		return nil, err
	}
	if doc.Kind != kind {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrInvalidDocument, kind, doc.Kind)
	}
	return doc, nil
}

func build(raw rawDocument) (*Document, error) {
	switch strings.ToLower(strings.TrimSpace(raw.Kind)) {
	case KindTransactions:
		txs, err := transactions(raw.Transactions)
		if err != nil {
			return nil, err
		}
		return &Document{Kind: KindTransactions, Transactions: txs}, nil
	case KindEmployees:
		emps, err := employees(raw.Employees)
		if err != nil {
			return nil, err
		}
		return &Document{Kind: KindEmployees, Employees: emps}, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidDocument, raw.Kind)
	}
}

func isSequence(data []byte, ext string) bool {
	trimmed := bytes.TrimSpace(data)
	if ext == ".json" {
		return bytes.HasPrefix(trimmed, []byte("["))
	}
	var node yaml.Node
	if err := yaml.Unmarshal(trimmed, &node); err != nil || len(node.Content) == 0 {
		return false
	}
	return node.Content[0].Kind == yaml.SequenceNode
}

func transactions(rows []rawTransaction) ([]models.Transaction, error) {
	out := make([]models.Transaction, 0, len(rows))
	for i, r := range rows {
		date, err := ParseDate(string(r.Date))
		if err != nil {
			return nil, fmt.Errorf("%w: transaction %d: %v", ErrInvalidDocument, i, err)
		}
		credit, err := amount(r.Credit)
		if err != nil {
			return nil, fmt.Errorf("%w: transaction %d: credit: %v", ErrInvalidDocument, i, err)
		}
		debit, err := amount(r.Debit)
		if err != nil {
			return nil, fmt.Errorf("%w: transaction %d: debit: %v", ErrInvalidDocument, i, err)
		}
		out = append(out, models.Transaction{
			ID:          strings.TrimSpace(string(r.ID)),
			Date:        date,
			Category:    strings.TrimSpace(string(r.Category)),
			Description: strings.TrimSpace(string(r.Description)),
			Credit:      credit,
			Debit:       debit,
		})
	}
	return out, nil
}

func employees(rows []rawEmployee) ([]models.Employee, error) {
	out := make([]models.Employee, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for i, r := range rows {
		id := strings.TrimSpace(string(r.ID))
		if id == "" {
			return nil, fmt.Errorf("%w: employee %d: missing id", ErrInvalidDocument, i)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: employee %d: duplicate id %q", ErrInvalidDocument, i, id)
		}
		seen[id] = struct{}{}
		out = append(out, models.Employee{
			ID:         id,
			Name:       strings.TrimSpace(string(r.Name)),
			Department: strings.TrimSpace(string(r.Department)),
			ManagerID:  strings.TrimSpace(string(r.ManagerID)),
		})
	}
	return out, nil
}

// ParseDate accepts "dd/mm/yyyy" or "yyyy-mm-dd" and rejects dates that do
// not exist in the calendar.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	d, m, y, err := daywise.ParseDate(s)
	if err != nil {
		return time.Time{}, err
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d || int(t.Month()) != m || t.Year() != y {
		return time.Time{}, fmt.Errorf("date %q does not exist", s)
	}
	return t, nil
}

func amount(s scalar) (decimal.Decimal, error) {
	v := strings.TrimSpace(string(s))
	if v == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(v)
}

// scalar captures any JSON or YAML scalar as its literal text; null decodes
// to the empty string.
type scalar string

func (s *scalar) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.Equal(trimmed, []byte("null")):
		*s = ""
	case len(trimmed) > 0 && trimmed[0] == '"':
		var str string
		if err := json.Unmarshal(trimmed, &str); err != nil {
			return err
		}
		*s = scalar(str)
	case len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '['):
		return fmt.Errorf("expected scalar, got %s", trimmed)
	default:
		*s = scalar(trimmed)
	}
	return nil
}

func (s *scalar) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected scalar", node.Line)
	}
	if node.Tag == "!!null" {
		*s = ""
		return nil
	}
	*s = scalar(node.Value)
	return nil
}
