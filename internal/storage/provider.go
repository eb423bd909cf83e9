// Package storage defines the import inbox file-system abstraction.
package storage

import "github.com/starford/spendscope/internal/models"

// RejectedDir is the inbox subdirectory holding files that failed to import.
// List skips it.
const RejectedDir = "rejected"

// Provider is the interface for inbox file operations.
type Provider interface {
	// List returns metadata for every import file under dir (relative to the inbox root).
	List(dir string) ([]models.ImportMetadata, error)
	// Read returns the raw bytes of the file at path (relative to the inbox root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to the inbox root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to the inbox root).
	Delete(path string) error
	// Reject moves path into RejectedDir and returns its new relative path.
	Reject(path string) (string, error)
}

// IsImportFile reports whether name has an importable extension.
func IsImportFile(name string) bool {
	switch ext(name) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}
