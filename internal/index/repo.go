package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/vaultview/internal/apperr"
	"github.com/starford/vaultview/internal/models"
)

// NoteRow represents a row in the notes table.
type NoteRow struct {
	Path      string
	Title     string
	Checksum  string
	Tags      []string
	UpdatedAt time.Time
	// Pending are render.PendingKey values of links that did not resolve.
	// Written by UpsertNote, not read back.
	Pending []string
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string `json:"path"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// GraphNode is one note in the link graph.
type GraphNode struct {
	ID    string   `json:"id"`
	Title string   `json:"title,omitempty"`
	Tags  []string `json:"tags"`
}

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

var sortColumns = map[string]string{
	"":           "path ASC",
	"path":       "path ASC",
	"title":      "title COLLATE NOCASE ASC, path ASC",
	"updated_at": "updated_at DESC, path ASC",
}

// UpsertNote replaces a note together with its FTS entry, outgoing links and
// outline in one transaction.
func (db *DB) UpsertNote(n NoteRow, body string, links []models.Link, headings []models.Heading) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, _ := json.Marshal(tags)

	_, err = tx.Exec(`
		INSERT INTO notes (path, title, checksum, tags, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title      = excluded.title,
			checksum   = excluded.checksum,
			tags       = excluded.tags,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, n.Path, n.Title, n.Checksum, string(tagsJSON), body, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	if err := ftsUpsert(tx, n.Path, n.Title, body, tags, headingText(headings)); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM links WHERE source = ?`, n.Path); err != nil {
		return fmt.Errorf("index: clear links: %w", err)
	}
	if len(links) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (source, target, type) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, l := range links {
			if _, err := stmt.Exec(n.Path, l.Target, l.Type); err != nil {
				return fmt.Errorf("index: insert link: %w", err)
			}
		}
	}

	if _, err := tx.Exec(`DELETE FROM pending_links WHERE source = ?`, n.Path); err != nil {
		return fmt.Errorf("index: clear pending links: %w", err)
	}
	for _, key := range n.Pending {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO pending_links (source, key) VALUES (?, ?)`, n.Path, key); err != nil {
			return fmt.Errorf("index: insert pending link: %w", err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM headings WHERE path = ?`, n.Path); err != nil {
		return fmt.Errorf("index: clear headings: %w", err)
	}
	if len(headings) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO headings (path, ord, level, text, anchor) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare heading insert: %w", err)
		}
		defer stmt.Close()
		for i, h := range headings {
			if _, err := stmt.Exec(n.Path, i, h.Level, h.Text, h.ID); err != nil {
				return fmt.Errorf("index: insert heading: %w", err)
			}
		}
	}

	return tx.Commit()
}

// PendingSources maps each pending key to the notes waiting on it.
func (db *DB) PendingSources() (map[string][]string, error) {
	rows, err := db.conn.Query(`SELECT key, source FROM pending_links ORDER BY source`)
	if err != nil {
		return nil, fmt.Errorf("index: pending links: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var key, source string
		if err := rows.Scan(&key, &source); err != nil {
			return nil, err
		}
		out[key] = append(out[key], source)
	}
	return out, rows.Err()
}

// DeleteNote removes a note and everything hanging off it.
func (db *DB) DeleteNote(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := ftsDelete(tx, path); err != nil {
		return err
	}
	for _, q := range []string{
		`DELETE FROM links WHERE source = ?`,
		`DELETE FROM pending_links WHERE source = ?`,
		`DELETE FROM headings WHERE path = ?`,
		`DELETE FROM notes WHERE path = ?`,
	} {
		if _, err := tx.Exec(q, path); err != nil {
			return fmt.Errorf("index: delete note: %w", err)
		}
	}
	return tx.Commit()
}

// GetChecksum returns the stored checksum for a note, or "" if it is not
// indexed.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM notes WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: checksum: %w", err)
	}
	return cs, nil
}

// GetNote returns one indexed note or apperr.ErrNotFound.
func (db *DB) GetNote(path string) (*NoteRow, error) {
	row := db.conn.QueryRow(`SELECT path, title, checksum, tags, updated_at FROM notes WHERE path = ?`, path)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get note: %w", err)
	}
	return n, nil
}

// ListNotes pages through notes, optionally only those carrying tag. sort is
// one of "path" (default), "title" or "updated_at" (newest first).
func (db *DB) ListNotes(limit, offset int, tag, sort string) ([]NoteRow, int, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	limit = min(limit, maxPageSize)
	offset = max(offset, 0)
	order, ok := sortColumns[sort]
	if !ok {
		return nil, 0, fmt.Errorf("index: unknown sort %q", sort)
	}

	where := ""
	args := []any{}
	if tag != "" {
		where = `WHERE EXISTS (SELECT 1 FROM json_each(notes.tags) WHERE json_each.value = ?)`
		args = append(args, tag)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count notes: %w", err)
	}

	rows, err := db.conn.Query(
		`SELECT path, title, checksum, tags, updated_at FROM notes `+where+` ORDER BY `+order+` LIMIT ? OFFSET ?`,
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list notes: %w", err)
	}
	defer rows.Close()

	out := []NoteRow{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *n)
	}
	return out, total, rows.Err()
}

// Graph returns every note and the links between notes. Links to assets and
// to paths that are not indexed are left out.
func (db *DB) Graph() ([]GraphNode, []models.Edge, error) {
	rows, err := db.conn.Query(`SELECT path, title, tags FROM notes ORDER BY path`)
	if err != nil {
		return nil, nil, fmt.Errorf("index: graph nodes: %w", err)
	}
	nodes := []GraphNode{}
	for rows.Next() {
		var n GraphNode
		var tags string
		if err := rows.Scan(&n.ID, &n.Title, &tags); err != nil {
			rows.Close()
			return nil, nil, err
		}
		n.Tags = decodeTags(tags)
		nodes = append(nodes, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	rows, err = db.conn.Query(`
		SELECT l.source, l.target, l.type
		FROM links l JOIN notes n ON n.path = l.target
		ORDER BY l.source, l.target
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("index: graph links: %w", err)
	}
	defer rows.Close()
	edges := []models.Edge{}
	for rows.Next() {
		var e models.Edge
		if err := rows.Scan(&e.Source, &e.Target, &e.Type); err != nil {
			return nil, nil, err
		}
		edges = append(edges, e)
	}
	return nodes, edges, rows.Err()
}

// Backlinks returns the notes that link to target, each once.
func (db *DB) Backlinks(target string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT DISTINCT source FROM links WHERE target = ? ORDER BY source`, target)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Headings returns the stored outline of a note in document order.
func (db *DB) Headings(path string) ([]models.Heading, error) {
	rows, err := db.conn.Query(`SELECT level, text, anchor FROM headings WHERE path = ? ORDER BY ord`, path)
	if err != nil {
		return nil, fmt.Errorf("index: headings: %w", err)
	}
	defer rows.Close()

	out := []models.Heading{}
	for rows.Next() {
		var h models.Heading
		if err := rows.Scan(&h.Level, &h.Text, &h.ID); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// AllChecksums maps every indexed path to its checksum.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(s scanner) (*NoteRow, error) {
	var n NoteRow
	var tags string
	if err := s.Scan(&n.Path, &n.Title, &n.Checksum, &tags, &n.UpdatedAt); err != nil {
		return nil, err
	}
	n.Tags = decodeTags(tags)
	return &n, nil
}

func decodeTags(s string) []string {
	tags := []string{}
	_ = json.Unmarshal([]byte(s), &tags)
	return tags
}

// headingText joins heading texts for the search index.
func headingText(hs []models.Heading) string {
	parts := make([]string, len(hs))
	for i, h := range hs {
		parts[i] = h.Text
	}
	return strings.Join(parts, "\n")
}
