package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/spendscope/internal/apperr"
	"github.com/starford/spendscope/internal/importer"
	"github.com/starford/spendscope/internal/storage"
)

const maxUploadBytes = 20 << 20 // 20 MB

// ImportService is the importer surface used by the import routes.
type ImportService interface {
	ImportFile(ctx context.Context, path string) (importer.Event, error)
	Remove(ctx context.Context, path string) error
	Sync(ctx context.Context) (importer.Summary, error)
}

// ImportHandler accepts import files into the inbox and manages them.
type ImportHandler struct {
	imp   ImportService
	inbox storage.Provider
}

// NewImportHandler creates a handler for the inbox behind imp.
func NewImportHandler(imp ImportService, inbox storage.Provider) *ImportHandler {
	return &ImportHandler{imp: imp, inbox: inbox}
}

// safeName validates that the filename is a plain import file name
// (no path separators, no traversal).
func safeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") || strings.HasPrefix(cleaned, ".") {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	if !storage.IsImportFile(cleaned) {
		return "", fmt.Errorf("unsupported file type: %s", name)
	}
	return cleaned, nil
}

// importPath extracts the inbox path from the URL (everything after /api/imports/).
// Supports encoded slashes from OpenAPI clients (e.g. 2025%2Fjan.yaml).
func importPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// List handles GET /api/imports.
//
//	@Summary		List inbox import files
//	@Tags			imports
//	@Produce		json
//	@Success		200	{object}	ImportListResponse
//	@Security		BearerAuth
//	@Router			/imports [get]
func (h *ImportHandler) List(w http.ResponseWriter, r *http.Request) {
	files, err := h.inbox.List("")
	if err != nil {
		writeError(w, "list imports", err)
		return
	}
	writeJSON(w, http.StatusOK, ImportListResponse{Files: files})
}

// Upload handles POST /api/imports (multipart/form-data, field "file").
//
//	@Summary		Upload and import a JSON or YAML file
//	@Tags			imports
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"Import document"
//	@Success		201		{object}	UploadResponse
//	@Success		200		{object}	UploadResponse	"Content unchanged"
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/imports [post]
func (h *ImportHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	name, err := safeName(header.Filename)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}
	if err := h.inbox.Write(name, data); err != nil {
		writeError(w, "write import", err)
		return
	}

	// The watcher may pick the file up first; the content is then already imported.
	ev, err := h.imp.ImportFile(r.Context(), name)
	switch {
	case errors.Is(err, apperr.ErrAlreadyImported):
		writeJSON(w, http.StatusOK, UploadResponse{Path: name, Status: "unchanged"})
	case err != nil:
		writeError(w, "import upload", err)
	default:
		writeJSON(w, http.StatusCreated, UploadResponse{Path: ev.Path, Status: "imported", Kind: ev.Kind, Rows: ev.Rows})
	}
}

// Sync handles POST /api/imports/sync.
//
//	@Summary		Rescan the inbox
//	@Tags			imports
//	@Produce		json
//	@Success		200	{object}	SyncResponse
//	@Security		BearerAuth
//	@Router			/imports/sync [post]
func (h *ImportHandler) Sync(w http.ResponseWriter, r *http.Request) {
	sum, err := h.imp.Sync(r.Context())
	if err != nil {
		writeError(w, "sync imports", err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// Delete handles DELETE /api/imports/*.
//
//	@Summary		Remove an inbox file and the rows it imported
//	@Tags			imports
//	@Param			path	path	string	true	"Inbox path"
//	@Success		204
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/imports/{path} [delete]
func (h *ImportHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p := importPath(r)
	if p == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.imp.Remove(r.Context(), p); err != nil {
		writeError(w, "remove import", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
