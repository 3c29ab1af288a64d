// Package apperr holds the sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidPath   = errors.New("invalid path")
	// ErrRender means the Markdown engine failed on the whole document.
	// Callers are expected to fall back to showing the raw text.
	ErrRender = errors.New("render failed")
)
