// Package models defines the domain types shared by spendscope's storage,
// import and dashboard layers.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a single dated credit/debit movement.
type Transaction struct {
	ID          string          `json:"id"`
	Date        time.Time       `json:"date"`
	Category    string          `json:"category"`
	Description string          `json:"description,omitempty"`
	Credit      decimal.Decimal `json:"credit"`
	Debit       decimal.Decimal `json:"debit"`
}

// Employee is a person in the organisation chart. ManagerID is empty for
// employees reporting directly to their department.
type Employee struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department"`
	ManagerID  string `json:"manager_id,omitempty"`
}

// CategoryMonthAmount is the debit total of one category in one calendar month.
type CategoryMonthAmount struct {
	Year     int             `json:"year"`
	Month    int             `json:"month"` // 1-12
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// ImportMetadata is a lightweight representation of an inbox file.
type ImportMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
