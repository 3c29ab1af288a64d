package storage

import (
	"context"
	"sync"
)

// FileIndex serves the set of vault paths to the link resolver. The listing
// is cached until Invalidate is called; the watcher does that whenever a file
// appears, disappears or is renamed.
type FileIndex struct {
	store Provider

	mu    sync.Mutex
	files map[string]string
}

// NewFileIndex returns an index over store. Nothing is read until the first
// Snapshot.
func NewFileIndex(store Provider) *FileIndex {
	return &FileIndex{store: store}
}

// Snapshot returns every vault file keyed by its own vault path. The map is
// shared between callers and must not be modified.
func (x *FileIndex) Snapshot(ctx context.Context) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.files != nil {
		return x.files, nil
	}
	paths, err := x.store.Files()
	if err != nil {
		return nil, err
	}
	files := make(map[string]string, len(paths))
	for _, p := range paths {
		files[p] = p
	}
	x.files = files
	return files, nil
}

// Invalidate drops the cached listing.
func (x *FileIndex) Invalidate() {
	x.mu.Lock()
	x.files = nil
	x.mu.Unlock()
}
