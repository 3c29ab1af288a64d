package index

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/vaultview/internal/apperr"
	"github.com/starford/vaultview/internal/models"
	"github.com/starford/vaultview/internal/parser"
	"github.com/starford/vaultview/internal/render"
	"github.com/starford/vaultview/internal/storage"
)

// Indexer keeps the index in step with the vault. Notes are run through the
// render pipeline so that links, tags and headings in the index are exactly
// what a reader sees.
type Indexer struct {
	db      *DB
	store   storage.Provider
	files   *storage.FileIndex
	pipe    *render.Pipeline
	logger  *slog.Logger
	workers int
}

// NewIndexer wires the index to a vault and a pipeline. workers bounds the
// number of notes rendered at once during Sync; 0 means one per CPU.
func NewIndexer(db *DB, store storage.Provider, pipe *render.Pipeline, logger *slog.Logger, workers int) *Indexer {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Indexer{
		db:      db,
		store:   store,
		files:   storage.NewFileIndex(store),
		pipe:    pipe,
		logger:  logger,
		workers: workers,
	}
}

// DB returns the underlying index.
func (ix *Indexer) DB() *DB { return ix.db }

// Files returns the cached vault listing used for link resolution.
func (ix *Indexer) Files() *storage.FileIndex { return ix.files }

// Render runs the note at path (relative to the vault root) through the
// pipeline with the vault's file index.
func (ix *Indexer) Render(ctx context.Context, path string, data []byte) (*models.Rendered, error) {
	return ix.pipe.Render(ctx, models.Document{Text: string(data), Path: "/" + path}, ix.files)
}

// IndexFile renders data and stores the result under path.
func (ix *Indexer) IndexFile(ctx context.Context, path string, data []byte) error {
	e, err := ix.entry(ctx, path, data)
	if err != nil {
		return err
	}
	return ix.db.UpsertNote(e.row, e.body, e.links, e.headings)
}

// Remove drops path from the index.
func (ix *Indexer) Remove(path string) error {
	return ix.db.DeleteNote(path)
}

type entry struct {
	row      NoteRow
	body     string
	links    []models.Link
	headings []models.Heading
}

// entry builds the index record for one note. A note the Markdown engine
// chokes on is still indexed by title and frontmatter tags.
func (ix *Indexer) entry(ctx context.Context, path string, data []byte) (entry, error) {
	res, _ := parser.Parse(data)
	e := entry{
		row: NoteRow{
			Path:      path,
			Title:     res.Title,
			Checksum:  storage.Checksum(data),
			Tags:      res.Tags,
			UpdatedAt: time.Now(),
		},
		body: res.Body,
	}

	out, err := ix.Render(ctx, path, data)
	switch {
	case errors.Is(err, apperr.ErrRender):
		ix.logger.Warn("index: render failed, indexing raw text",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return e, nil
	case err != nil:
		return entry{}, err
	}

	if out.Title != "" {
		e.row.Title = out.Title
	}
	e.row.Tags = out.Metadata.Tags
	e.links = noteLinks(path, out.Metadata.Links)
	e.headings = out.Metadata.Headings
	for _, raw := range out.Unresolved {
		if key := render.PendingKey(raw); key != "" {
			e.row.Pending = append(e.row.Pending, key)
		}
	}
	return e, nil
}

// Relink re-indexes the notes whose links depend on the vault files at
// paths: notes with an unresolved link that a file of that name could
// satisfy, and notes linking to a path that no longer exists. Call it after
// files are created or removed and the file listing was invalidated. It
// returns the notes it re-indexed.
func (ix *Indexer) Relink(ctx context.Context, paths ...string) []string {
	var appeared, gone []string
	for _, p := range paths {
		p = strings.TrimPrefix(p, "/")
		if _, err := os.Stat(filepath.Join(ix.store.Root(), filepath.FromSlash(p))); err == nil {
			appeared = append(appeared, p)
		} else {
			gone = append(gone, p)
		}
	}
	return ix.relink(ctx, appeared, gone, nil)
}

func (ix *Indexer) relink(ctx context.Context, appeared, gone []string, skip map[string]struct{}) []string {
	if len(appeared) == 0 && len(gone) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	var sources []string
	add := func(src string) {
		if _, dup := seen[src]; dup {
			return
		}
		if _, ok := skip[src]; ok {
			return
		}
		seen[src] = struct{}{}
		sources = append(sources, src)
	}

	if len(appeared) > 0 {
		pending, err := ix.db.PendingSources()
		if err != nil {
			ix.logger.Warn("relink: pending links failed", slog.String("error", err.Error()))
		}
		for _, p := range appeared {
			for _, src := range pending[render.PendingKey(p)] {
				add(src)
			}
		}
	}
	for _, p := range gone {
		backlinks, err := ix.db.Backlinks(strings.TrimPrefix(p, "/"))
		if err != nil {
			ix.logger.Warn("relink: backlinks failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		for _, src := range backlinks {
			add(src)
		}
	}
	sort.Strings(sources)

	var done []string
	for _, src := range sources {
		if ctx.Err() != nil {
			break
		}
		data, err := ix.store.Read(src)
		if err != nil {
			continue
		}
		if err := ix.IndexFile(ctx, src, data); err != nil {
			ix.logger.Warn("relink: index failed", slog.String("path", src), slog.String("error", err.Error()))
			continue
		}
		done = append(done, src)
	}
	if len(done) > 0 {
		ix.logger.Debug("relink: done", slog.Int("notes", len(done)))
	}
	return done
}

// noteLinks turns rendered links into index edges between vault paths.
// External URLs and same-page anchors are not edges.
func noteLinks(path string, links []models.Link) []models.Link {
	out := make([]models.Link, 0, len(links))
	for _, l := range links {
		switch l.Type {
		case render.LinkTypeWiki, render.LinkTypeEmbed:
			out = append(out, models.Link{Target: strings.TrimPrefix(l.Target, "/"), Text: l.Text, Type: l.Type})
		case render.LinkTypeMarkdown:
			u, err := url.Parse(l.Target)
			if err != nil || u.Scheme != "" || u.Host != "" || u.Path == "" {
				continue
			}
			target := render.ResolvePath("/"+path, u.Path)
			out = append(out, models.Link{Target: strings.TrimPrefix(target, "/"), Text: l.Text, Type: l.Type})
		}
	}
	return out
}

// Sync brings the index up to date with the vault: changed notes are
// rendered concurrently and upserted, notes gone from disk are removed, and
// notes whose links were waiting on a file that now exists are re-indexed.
// Per-note failures are logged and skipped.
func (ix *Indexer) Sync(ctx context.Context) error {
	start := time.Now()
	ix.files.Invalidate()

	metas, err := ix.store.List("")
	if err != nil {
		return err
	}
	checksums, err := ix.db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	var changed []string
	for _, m := range metas {
		disk[m.Path] = struct{}{}
		if checksums[m.Path] != m.Checksum {
			changed = append(changed, m.Path)
		}
	}

	entries := make([]*entry, len(changed))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.workers)
	for i, p := range changed {
		g.Go(func() error {
			data, err := ix.store.Read(p)
			if err != nil {
				ix.logger.Warn("sync: read failed", slog.String("path", p), slog.String("error", err.Error()))
				return nil
			}
			e, err := ix.entry(gctx, p, data)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				ix.logger.Warn("sync: render failed", slog.String("path", p), slog.String("error", err.Error()))
				return nil
			}
			entries[i] = &e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// SQLite takes one writer at a time, so the upserts stay sequential.
	freshly := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e == nil {
			continue
		}
		if err := ix.db.UpsertNote(e.row, e.body, e.links, e.headings); err != nil {
			ix.logger.Warn("sync: index failed", slog.String("path", e.row.Path), slog.String("error", err.Error()))
			continue
		}
		freshly[e.row.Path] = struct{}{}
	}

	var removed []string
	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := ix.db.DeleteNote(p); err != nil {
			ix.logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		removed = append(removed, p)
	}

	// Files may have appeared while nobody was watching, so every file is a
	// candidate. Notes rendered above already saw the current listing.
	files, err := ix.store.Files()
	if err != nil {
		return err
	}
	relinked := ix.relink(ctx, files, removed, freshly)

	ix.logger.Info("sync: done",
		slog.Int("notes", len(metas)),
		slog.Int("indexed", len(freshly)),
		slog.Int("removed", len(removed)),
		slog.Int("relinked", len(relinked)),
		slog.Duration("took", time.Since(start)),
	)
	return nil
}
