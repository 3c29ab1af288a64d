package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/vaultview/internal/storage"
)

// Change kinds reported to an EventCallback.
const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
)

// EventCallback is called after a watcher-driven index change. path is
// relative to the vault root.
type EventCallback func(kind, path string)

const reconcileDelay = 200 * time.Millisecond

// Watch follows the vault with fsnotify until ctx is cancelled, re-rendering
// notes as they change. Any file appearing or disappearing, asset or note,
// invalidates the file listing used for link resolution.
//
// fsnotify reports a rename on the old path only, so renames schedule a
// debounced reconciliation against the disk.
func (ix *Indexer) Watch(ctx context.Context, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := ix.store.Root()
	if err := addDirsRecursive(w, root); err != nil {
		return err
	}
	ix.logger.Info("watcher: started", slog.String("root", root))

	notify := func(kind, path string) {
		if cb != nil {
			cb(kind, path)
		}
	}

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time
	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			ix.logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			ix.reconcile(ctx, notify)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			rel, ok := vaultRel(root, ev.Name)
			if !ok {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				ix.files.Invalidate()
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						ix.logger.Warn("watcher: add new dir failed",
							slog.String("path", rel),
							slog.String("error", addErr.Error()))
					}
					ix.indexNewDir(ctx, ev.Name, notify)
					continue
				}
			}
			if !isNote(rel) {
				if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					ix.relinkNotify(ctx, notify, rel)
				}
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, readErr := ix.store.Read(rel)
				if readErr != nil {
					ix.logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", readErr.Error()))
					continue
				}
				if idxErr := ix.IndexFile(ctx, rel, data); idxErr != nil {
					ix.logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", idxErr.Error()))
					continue
				}
				kind := ChangeUpdated
				if ev.Op&fsnotify.Create != 0 {
					kind = ChangeCreated
				}
				ix.logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind))
				notify(kind, rel)
				if kind == ChangeCreated {
					ix.relinkNotify(ctx, notify, rel)
				}

			case ev.Op&fsnotify.Remove != 0:
				if delErr := ix.Remove(rel); delErr != nil {
					ix.logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
					continue
				}
				ix.logger.Debug("watcher: deleted", slog.String("path", rel))
				notify(ChangeDeleted, rel)
				ix.relinkNotify(ctx, notify, rel)

			case ev.Op&fsnotify.Rename != 0:
				if delErr := ix.Remove(rel); delErr != nil {
					ix.logger.Warn("watcher: rename delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
				} else {
					notify(ChangeDeleted, rel)
				}
				ix.relinkNotify(ctx, notify, rel)
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			ix.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile removes index entries whose file is gone and indexes files the
// index has not seen at their current checksum.
func (ix *Indexer) reconcile(ctx context.Context, notify EventCallback) {
	ix.files.Invalidate()
	checksums, err := ix.db.AllChecksums()
	if err != nil {
		ix.logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}
	metas, err := ix.store.List("")
	if err != nil {
		ix.logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Path] = m.Checksum
	}
	var touched []string
	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if ix.Remove(p) == nil {
			notify(ChangeDeleted, p)
			touched = append(touched, p)
		}
	}
	for p, cs := range disk {
		old, known := checksums[p]
		if old == cs {
			continue
		}
		data, readErr := ix.store.Read(p)
		if readErr != nil {
			continue
		}
		if ix.IndexFile(ctx, p, data) != nil {
			continue
		}
		if known {
			notify(ChangeUpdated, p)
		} else {
			notify(ChangeCreated, p)
			touched = append(touched, p)
		}
	}
	ix.relinkNotify(ctx, notify, touched...)
}

// relinkNotify re-indexes the notes depending on paths and reports them as
// updated.
func (ix *Indexer) relinkNotify(ctx context.Context, notify EventCallback, paths ...string) {
	for _, p := range ix.Relink(ctx, paths...) {
		notify(ChangeUpdated, p)
	}
}

// indexNewDir indexes the notes already present in a directory that was just
// created, e.g. one moved into the vault, and relinks notes waiting on any
// of its files.
func (ix *Indexer) indexNewDir(ctx context.Context, dir string, notify EventCallback) {
	root := ix.store.Root()
	var added []string
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, ok := vaultRel(root, p)
		if !ok {
			return nil
		}
		added = append(added, rel)
		if !isNote(rel) {
			return nil
		}
		data, readErr := ix.store.Read(rel)
		if readErr != nil {
			return nil
		}
		if ix.IndexFile(ctx, rel, data) == nil {
			notify(ChangeCreated, rel)
		}
		return nil
	})
	ix.relinkNotify(ctx, notify, added...)
}

// vaultRel maps an absolute event path to a slash-separated vault path. ok is
// false for paths outside the vault or inside hidden directories.
func vaultRel(root, abs string) (string, bool) {
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	for _, seg := range strings.Split(rel, "/") {
		if storage.Hidden(seg) {
			return "", false
		}
	}
	return rel, true
}

func isNote(rel string) bool {
	return strings.EqualFold(filepath.Ext(rel), ".md")
}

// addDirsRecursive watches root and every non-hidden directory below it.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && storage.Hidden(d.Name()) {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
}
