package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/spendscope/internal/apperr"
	"github.com/starford/spendscope/internal/daywise"
	"github.com/starford/spendscope/internal/parser"
	"github.com/starford/spendscope/internal/tree"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// structureResponse is the 422 body for a tree that cannot be built.
type structureResponse struct {
	Error string   `json:"error" validate:"required"`
	Kind  string   `json:"kind" example:"cycle" validate:"required"`
	ID    string   `json:"id,omitempty" example:"a"`
	Index *int     `json:"index,omitempty"`
	Path  []string `json:"path,omitempty"`
}

// writeError maps domain errors to status codes. Anything unrecognised is
// logged and reported as an internal error.
func writeError(w http.ResponseWriter, op string, err error) {
	var se *tree.StructureError
	switch {
	case errors.As(err, &se):
		body := structureResponse{Error: se.Error(), Kind: string(se.Kind), ID: se.ID, Path: se.Path}
		if se.Kind != tree.KindCycle {
			body.Index = &se.Index
		}
		writeJSON(w, http.StatusUnprocessableEntity, body)
	case errors.Is(err, apperr.ErrInvalidInput),
		errors.Is(err, parser.ErrInvalidDocument),
		errors.Is(err, daywise.ErrMalformedDate):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrAlreadyImported):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
