// Package importer loads transaction and employee files from the inbox into
// the store and keeps the two in step.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/starford/spendscope/internal/apperr"
	"github.com/starford/spendscope/internal/checksum"
	"github.com/starford/spendscope/internal/models"
	"github.com/starford/spendscope/internal/parser"
	"github.com/starford/spendscope/internal/storage"
)

// Event operations.
const (
	OpImported = "imported"
	OpRemoved  = "removed"
	OpRejected = "rejected"
)

// Event describes one change applied by the importer.
type Event struct {
	Op   string `json:"op"`
	Kind string `json:"kind,omitempty"` // parser.KindTransactions or parser.KindEmployees
	Path string `json:"path"`
	Rows int    `json:"rows"`
}

// EventCallback is called after every applied change.
type EventCallback func(Event)

// Repository is the subset of the store the importer writes to.
type Repository interface {
	ReplaceSource(ctx context.Context, source string, txs []models.Transaction) (int, error)
	UpsertEmployees(ctx context.Context, emps []models.Employee) (int, error)
	ImportChecksums(ctx context.Context) (map[string]string, error)
	RecordImport(ctx context.Context, path, checksum string, rows int) error
	ForgetImport(ctx context.Context, path string) error
}

// Summary counts the outcome of a Sync pass.
type Summary struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
	Removed  int `json:"removed"`
}

// Importer serialises every inbox import. The watcher, the scheduled rescan
// and API uploads may call it concurrently.
type Importer struct {
	repo          Repository
	inbox         storage.Provider
	logger        *slog.Logger
	onEvent       EventCallback
	rejectInvalid bool

	mu sync.Mutex
}

// Option configures an Importer.
type Option func(*Importer)

// WithCallback registers cb for applied changes.
func WithCallback(cb EventCallback) Option {
	return func(im *Importer) { im.onEvent = cb }
}

// WithRejectInvalid moves files that fail to parse into the rejected folder.
func WithRejectInvalid(reject bool) Option {
	return func(im *Importer) { im.rejectInvalid = reject }
}

// New returns an Importer reading from inbox and writing to repo.
func New(repo Repository, inbox storage.Provider, logger *slog.Logger, opts ...Option) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	im := &Importer{repo: repo, inbox: inbox, logger: logger}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// ImportFile imports a single inbox file. It returns apperr.ErrAlreadyImported
// when the file content matches the last import.
func (im *Importer) ImportFile(ctx context.Context, path string) (Event, error) {
	im.mu.Lock()
	defer im.mu.Unlock()

	known, err := im.repo.ImportChecksums(ctx)
	if err != nil {
		return Event{}, fmt.Errorf("importer: %w", err)
	}
	return im.importFile(ctx, path, known[path])
}

func (im *Importer) importFile(ctx context.Context, path, previous string) (Event, error) {
	data, err := im.inbox.Read(path)
	if err != nil {
		return Event{}, fmt.Errorf("importer: %w", err)
	}
	sum := checksum.Sum(data)
	if sum == previous {
		return Event{}, fmt.Errorf("importer: %s: %w", path, apperr.ErrAlreadyImported)
	}

	doc, err := parser.Parse(path, data)
	if err != nil {
		if im.rejectInvalid {
			im.reject(ctx, path, previous != "")
		}
		return Event{}, fmt.Errorf("importer: %s: %w", path, err)
	}

	var rows int
	switch doc.Kind {
	case parser.KindEmployees:
		rows, err = im.repo.UpsertEmployees(ctx, doc.Employees)
	default:
		rows, err = im.repo.ReplaceSource(ctx, path, doc.Transactions)
	}
	if err != nil {
		return Event{}, fmt.Errorf("importer: store %s: %w", path, err)
	}
	if err := im.repo.RecordImport(ctx, path, sum, rows); err != nil {
		return Event{}, fmt.Errorf("importer: %w", err)
	}

	ev := Event{Op: OpImported, Kind: doc.Kind, Path: path, Rows: rows}
	im.logger.Info("importer: imported",
		slog.String("path", path),
		slog.String("kind", doc.Kind),
		slog.Int("rows", rows))
	im.emit(ev)
	return ev, nil
}

func (im *Importer) reject(ctx context.Context, path string, wasImported bool) {
	moved, err := im.inbox.Reject(path)
	if err != nil {
		im.logger.Warn("importer: reject failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	if wasImported {
		if err := im.repo.ForgetImport(ctx, path); err != nil {
			im.logger.Warn("importer: forget failed", slog.String("path", path), slog.String("error", err.Error()))
		}
	}
	im.logger.Warn("importer: rejected", slog.String("path", path), slog.String("moved_to", moved))
	im.emit(Event{Op: OpRejected, Path: path})
}

// Remove deletes path from the inbox and forgets its imported transactions.
func (im *Importer) Remove(ctx context.Context, path string) error {
	im.mu.Lock()
	defer im.mu.Unlock()

	if err := im.inbox.Delete(path); err != nil {
		return fmt.Errorf("importer: %w", err)
	}
	return im.forget(ctx, path)
}

func (im *Importer) forget(ctx context.Context, path string) error {
	if err := im.repo.ForgetImport(ctx, path); err != nil {
		return fmt.Errorf("importer: %w", err)
	}
	im.logger.Info("importer: removed", slog.String("path", path))
	im.emit(Event{Op: OpRemoved, Path: path})
	return nil
}

// Sync walks the inbox and brings the store up to date:
//   - new and changed files are imported
//   - files gone from the inbox have their transactions removed
func (im *Importer) Sync(ctx context.Context) (Summary, error) {
	im.mu.Lock()
	defer im.mu.Unlock()

	var sum Summary
	metas, err := im.inbox.List("")
	if err != nil {
		return sum, fmt.Errorf("importer: sync: %w", err)
	}
	known, err := im.repo.ImportChecksums(ctx)
	if err != nil {
		return sum, fmt.Errorf("importer: sync: %w", err)
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}
		if known[m.Path] == m.Checksum {
			sum.Skipped++
			continue
		}
		if _, err := im.importFile(ctx, m.Path, known[m.Path]); err != nil {
			if errors.Is(err, apperr.ErrAlreadyImported) {
				sum.Skipped++
				continue
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return sum, ctxErr
			}
			sum.Failed++
			im.logger.Warn("sync: import failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		sum.Imported++
	}

	for p := range known {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := im.forget(ctx, p); err != nil {
			im.logger.Warn("sync: remove failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		sum.Removed++
	}

	im.logger.Debug("sync: done",
		slog.Int("imported", sum.Imported),
		slog.Int("skipped", sum.Skipped),
		slog.Int("failed", sum.Failed),
		slog.Int("removed", sum.Removed))
	return sum, nil
}

func (im *Importer) emit(ev Event) {
	if im.onEvent != nil {
		im.onEvent(ev)
	}
}
