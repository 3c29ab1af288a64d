// Package noteservice is the application layer shared by the REST API and
// the MCP server: vault storage, the index and the render pipeline behind
// one set of note operations.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/starford/vaultview/internal/apperr"
	"github.com/starford/vaultview/internal/index"
	"github.com/starford/vaultview/internal/models"
	"github.com/starford/vaultview/internal/parser"
	"github.com/starford/vaultview/internal/storage"
)

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	Path        string         `json:"path"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	Checksum    string         `json:"checksum"`
	Tags        []string       `json:"tags"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	Backlinks   []string       `json:"backlinks"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// NoteListItem is a lightweight item in a list response.
type NoteListItem struct {
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Checksum  string    `json:"checksum"`
	Tags      []string  `json:"tags"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RenderedNote is a note as the viewer displays it. Raw is set when the
// Markdown engine failed and HTML is only the escaped source.
type RenderedNote struct {
	Path      string   `json:"path"`
	Checksum  string   `json:"checksum"`
	Raw       bool     `json:"raw,omitempty"`
	Backlinks []string `json:"backlinks"`
	models.Rendered
}

// Service coordinates storage, index and rendering.
type Service struct {
	store  storage.Provider
	ix     *index.Indexer
	db     index.NoteIndex
	logger *slog.Logger
}

// NewService creates a new note service.
func NewService(store storage.Provider, ix *index.Indexer, logger *slog.Logger) *Service {
	return &Service{store: store, ix: ix, db: ix.DB(), logger: logger}
}

// notePath normalises a client-supplied note path to the vault-relative form
// used by the index.
func notePath(p string) (string, error) {
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return "", fmt.Errorf("%w: empty path", apperr.ErrInvalidPath)
	}
	if !strings.EqualFold(path.Ext(p), ".md") {
		return "", fmt.Errorf("%w: %s is not a note", apperr.ErrInvalidPath, p)
	}
	return p, nil
}

// read maps a missing file to apperr.ErrNotFound.
func (s *Service) read(p string) ([]byte, error) {
	data, err := s.store.Read(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, apperr.ErrNotFound
	}
	return data, err
}

// GetNote reads a note from storage and enriches it with backlinks.
func (s *Service) GetNote(_ context.Context, p string) (*NoteDetail, error) {
	p, err := notePath(p)
	if err != nil {
		return nil, err
	}
	data, err := s.read(p)
	if err != nil {
		return nil, err
	}
	return s.buildNoteDetail(p, data)
}

// RenderNote renders a note against the current vault. If the Markdown
// engine fails the escaped source is returned with Raw set instead of an
// error.
func (s *Service) RenderNote(ctx context.Context, p string) (*RenderedNote, error) {
	p, err := notePath(p)
	if err != nil {
		return nil, err
	}
	data, err := s.read(p)
	if err != nil {
		return nil, err
	}
	bl, err := s.db.Backlinks(p)
	if err != nil {
		return nil, err
	}
	out := &RenderedNote{Path: p, Checksum: storage.Checksum(data), Backlinks: nonNilSlice(bl)}

	r, err := s.ix.Render(ctx, p, data)
	switch {
	case errors.Is(err, apperr.ErrRender):
		s.logger.Warn("render failed, serving raw text", slog.String("path", p), slog.String("error", err.Error()))
		res, _ := parser.Parse(data)
		out.Raw = true
		out.Rendered = models.Rendered{
			HTML:         "<pre>" + html.EscapeString(string(data)) + "</pre>\n",
			Title:        res.Title,
			Frontmatter:  res.Frontmatter,
			Metadata:     models.Metadata{Headings: []models.Heading{}, Links: []models.Link{}, Tags: nonNilSlice(res.Tags)},
			Placeholders: []models.Placeholder{},
		}
		return out, nil
	case err != nil:
		return nil, err
	}
	out.Rendered = *r
	return out, nil
}

// Outline returns the indexed headings of a note.
func (s *Service) Outline(_ context.Context, p string) ([]models.Heading, error) {
	p, err := notePath(p)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.GetNote(p); err != nil {
		return nil, err
	}
	return s.db.Headings(p)
}

// ReadFile returns any vault file, note or asset.
func (s *Service) ReadFile(_ context.Context, p string) ([]byte, error) {
	return s.read(p)
}

// WriteAsset stores a new non-note file so that embeds can resolve it.
func (s *Service) WriteAsset(ctx context.Context, p string, data []byte) error {
	p = strings.TrimPrefix(p, "/")
	if _, err := s.store.Read(p); err == nil {
		return fmt.Errorf("%w: %s", apperr.ErrAlreadyExists, p)
	}
	if err := s.store.Write(p, data); err != nil {
		return err
	}
	s.ix.Files().Invalidate()
	s.ix.Relink(ctx, p)
	return nil
}

// CreateNote writes a new note and indexes it.
func (s *Service) CreateNote(ctx context.Context, p string, content []byte) (*NoteDetail, error) {
	p, err := notePath(p)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Read(p); err == nil {
		return nil, apperr.ErrAlreadyExists
	}
	if err := s.store.Write(p, content); err != nil {
		return nil, err
	}
	s.ix.Files().Invalidate()
	if err := s.ix.IndexFile(ctx, p, content); err != nil {
		return nil, err
	}
	s.ix.Relink(ctx, p)
	return s.buildNoteDetail(p, content)
}

// UpdateNote writes updated content. A non-empty ifMatch must equal the
// checksum of the current file.
func (s *Service) UpdateNote(ctx context.Context, p string, content []byte, ifMatch string) (*NoteDetail, error) {
	p, err := notePath(p)
	if err != nil {
		return nil, err
	}
	existing, err := s.read(p)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && ifMatch != storage.Checksum(existing) {
		return nil, apperr.ErrConflict
	}
	if err := s.store.Write(p, content); err != nil {
		return nil, err
	}
	if err := s.ix.IndexFile(ctx, p, content); err != nil {
		return nil, err
	}
	return s.buildNoteDetail(p, content)
}

// DeleteNote removes a note from storage and index.
func (s *Service) DeleteNote(ctx context.Context, p string) error {
	p, err := notePath(p)
	if err != nil {
		return err
	}
	if err := s.store.Delete(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return err
	}
	s.ix.Files().Invalidate()
	if err := s.ix.Remove(p); err != nil {
		return err
	}
	s.ix.Relink(ctx, p)
	return nil
}

// ListNotes returns paginated notes with optional tag filter.
func (s *Service) ListNotes(_ context.Context, limit, offset int, tag, sort string) ([]NoteListItem, int, error) {
	rows, total, err := s.db.ListNotes(limit, offset, tag, sort)
	if err != nil {
		return nil, 0, err
	}
	items := make([]NoteListItem, len(rows))
	for i, r := range rows {
		items[i] = NoteListItem{
			Path:      r.Path,
			Title:     r.Title,
			Checksum:  r.Checksum,
			Tags:      nonNilSlice(r.Tags),
			UpdatedAt: r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	res, err := s.db.Search(query, limit)
	return nonNilSlice(res), err
}

// Graph returns all notes and the links between them.
func (s *Service) Graph(_ context.Context) ([]index.GraphNode, []models.Edge, error) {
	return s.db.Graph()
}

// Backlinks returns the notes linking to target.
func (s *Service) Backlinks(_ context.Context, target string) ([]string, error) {
	target, err := notePath(target)
	if err != nil {
		return nil, err
	}
	bl, err := s.db.Backlinks(target)
	return nonNilSlice(bl), err
}

// buildNoteDetail constructs a NoteDetail from raw data without re-reading the file.
func (s *Service) buildNoteDetail(p string, data []byte) (*NoteDetail, error) {
	res, _ := parser.Parse(data)
	bl, err := s.db.Backlinks(p)
	if err != nil {
		return nil, err
	}
	d := &NoteDetail{
		Path:        p,
		Title:       res.Title,
		Content:     string(data),
		Checksum:    storage.Checksum(data),
		Tags:        nonNilSlice(res.Tags),
		Frontmatter: res.Frontmatter,
		Backlinks:   nonNilSlice(bl),
		UpdatedAt:   time.Now(),
	}
	// The index holds tags found in the body too.
	if row, err := s.db.GetNote(p); err == nil {
		d.Title = row.Title
		d.Tags = nonNilSlice(row.Tags)
		d.UpdatedAt = row.UpdatedAt
	}
	return d, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
