package api

import (
	"github.com/starford/spendscope/internal/dashservice"
	"github.com/starford/spendscope/internal/daywise"
	"github.com/starford/spendscope/internal/importer"
	"github.com/starford/spendscope/internal/models"
	"github.com/starford/spendscope/internal/tree"
)

// FlatNode is a tree input record (aliased from the domain layer).
type FlatNode = tree.FlatNode

// TreeNode is a node of a built forest (aliased from the domain layer).
type TreeNode = tree.TreeNode

// MoneyRecord is a dated credit/debit record (aliased from the domain layer).
type MoneyRecord = daywise.MoneyRecord

// BalanceResponse is a day-wise balance series (aliased from the service layer).
type BalanceResponse = dashservice.Balance

// ImportFile is an inbox file listing entry (aliased from the domain layer).
type ImportFile = models.ImportMetadata

// ImportEvent describes an applied import (aliased from the importer).
type ImportEvent = importer.Event

// SyncResponse counts the outcome of an inbox rescan (aliased from the importer).
type SyncResponse = importer.Summary

// IngestResponse reports how many rows an ingest request stored.
type IngestResponse struct {
	Rows int `json:"rows" example:"12" validate:"required"`
}

// YearsResponse lists the years with stored transactions.
type YearsResponse struct {
	Years []int `json:"years" validate:"required"`
}

// ImportListResponse wraps the inbox listing.
type ImportListResponse struct {
	Files []ImportFile `json:"files" validate:"required"`
}

// UploadResponse is returned after an inbox upload.
type UploadResponse struct {
	Path   string `json:"path" example:"2025-01.yaml" validate:"required"`
	Status string `json:"status" example:"imported" validate:"required" enums:"imported,unchanged"`
	Kind   string `json:"kind,omitempty" example:"transactions"`
	Rows   int    `json:"rows" example:"31"`
}
