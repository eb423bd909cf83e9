// Package apperr holds sentinel errors shared across layers and mapped to
// HTTP status codes by the api package.
package apperr

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrAlreadyImported = errors.New("already imported")
)
