// Package storage is the vault file-system layer: Markdown notes and the
// assets (images, GPX/KML tracks) they link to.
package storage

import "github.com/starford/vaultview/internal/models"

// Provider is the interface for vault file operations. Paths are relative to
// the vault root unless stated otherwise.
type Provider interface {
	// List returns metadata for every .md note under dir.
	List(dir string) ([]models.NoteMetadata, error)
	// Files returns every non-hidden vault file, notes and assets alike, as
	// vault paths with a leading "/".
	Files() ([]string, error)
	Read(path string) ([]byte, error)
	// Write replaces path atomically.
	Write(path string, content []byte) error
	Delete(path string) error
	Move(oldPath, newPath string) error
	// Root is the absolute vault directory.
	Root() string
}
