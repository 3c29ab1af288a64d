package render

import (
	"context"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/starford/vaultview/internal/models"
)

// FileIndex is the vault lookup consulted by the link pass. Snapshot returns
// every known vault path mapped to its canonical spelling; it is called once
// per document.
type FileIndex interface {
	Snapshot(ctx context.Context) (map[string]string, error)
}

// MapIndex is an in-memory FileIndex. Keys and values are vault paths; a
// missing leading slash is tolerated.
type MapIndex map[string]string

func (m MapIndex) Snapshot(context.Context) (map[string]string, error) {
	return m, nil
}

// imageExts are embedded as <img> rather than as generic embeds.
var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true,
	".svg": true, ".webp": true, ".avif": true,
}

// trackExts map to the FileKind of a track embed.
var trackExts = map[string]models.FileKind{
	".gpx": models.FileKindGPX,
	".kml": models.FileKindKML,
}

// ParseTarget parses the inside of [[...]] (embed false) or ![[...]] (embed
// true). The display text follows the first '|' (or '\|'); a '#' in the
// target starts a heading or block fragment.
func ParseTarget(body string, embed bool) models.LinkTarget {
	target, display, hasDisplay := strings.Cut(body, "|")
	if hasDisplay {
		// Inside a table the alias pipe is written \|.
		target = strings.TrimSuffix(target, `\`)
	}
	raw, fragment, _ := strings.Cut(target, "#")
	raw = strings.TrimSpace(raw)
	fragment = strings.TrimSpace(fragment)

	t := models.LinkTarget{Raw: raw, Fragment: fragment, Kind: models.LinkFile}
	if embed {
		t.Kind = models.LinkEmbed
		if imageExts[strings.ToLower(path.Ext(raw))] {
			t.Kind = models.LinkImage
		}
	}

	switch {
	case hasDisplay && strings.TrimSpace(display) != "":
		t.Display = strings.TrimSpace(display)
	case raw != "":
		t.Display = strings.TrimSuffix(path.Base(raw), ".md")
	default:
		t.Display = fragment
	}
	return t
}

// ResolvePath joins a raw link target with the directory of the current file.
// A leading '/' is vault-absolute; "./" and "../" and bare targets are
// relative to the current directory. Targets without an extension are
// taken to be notes and get ".md".
func ResolvePath(current, raw string) string {
	if !hasExtension(raw) {
		raw += ".md"
	}
	if strings.HasPrefix(raw, "/") {
		return path.Clean(raw)
	}
	dir := path.Dir("/" + strings.TrimPrefix(current, "/"))
	return path.Join(dir, raw)
}

// hasExtension treats a short alphanumeric suffix after the last dot as a
// file extension, so "v1.2 release notes" is still a note name.
func hasExtension(p string) bool {
	ext := path.Ext(p)
	if len(ext) < 2 || len(ext) > 6 {
		return false
	}
	for _, r := range ext[1:] {
		if !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9') {
			return false
		}
	}
	return true
}

// PendingKey reduces a link target or a vault path to the case-folded file
// name, without ".md", that decides whether the link can resolve. A target
// and a file with equal keys may match; different keys never do.
func PendingKey(p string) string {
	base := path.Base("/" + strings.TrimPrefix(p, "/"))
	if base == "/" {
		return ""
	}
	return strings.TrimSuffix(cases.Fold().String(base), ".md")
}

// resolver answers path lookups against one index snapshot.
type resolver struct {
	indexed bool
	exact   map[string]string
	folded  map[string]string
	byName  map[string][]string
	fold    cases.Caser
}

func newResolver(files map[string]string) *resolver {
	r := &resolver{fold: cases.Fold()}
	if files == nil {
		return r
	}
	r.indexed = true
	r.exact = make(map[string]string, len(files))
	r.folded = make(map[string]string, len(files))
	r.byName = make(map[string][]string)
	for k, v := range files {
		key := "/" + strings.TrimPrefix(k, "/")
		canonical := "/" + strings.TrimPrefix(v, "/")
		r.exact[key] = canonical
		fk := r.fold.String(key)
		if _, ok := r.folded[fk]; !ok {
			r.folded[fk] = canonical
		}
		name := path.Base(fk)
		r.byName[name] = append(r.byName[name], canonical)
	}
	for _, paths := range r.byName {
		sort.Slice(paths, func(i, j int) bool {
			if len(paths[i]) != len(paths[j]) {
				return len(paths[i]) < len(paths[j])
			}
			return paths[i] < paths[j]
		})
	}
	return r
}

// resolve returns the vault path for raw as seen from current. ok is false
// when an index is present and nothing in it matches. Without an index the
// syntactic path is returned.
func (r *resolver) resolve(current, raw string) (string, bool) {
	if raw == "" {
		if current == "" {
			return "", false
		}
		return "/" + strings.TrimPrefix(current, "/"), true
	}
	p := ResolvePath(current, raw)
	if !r.indexed {
		return p, true
	}
	if v, ok := r.exact[p]; ok {
		return v, true
	}
	if v, ok := r.folded[r.fold.String(p)]; ok {
		return v, true
	}

	// Obsidian's shortest-path form: [[Note]] or [[dir/Note]] may name a file
	// anywhere in the vault as long as the trailing segments match.
	want := r.fold.String(strings.TrimPrefix(path.Clean("/"+strings.TrimPrefix(withExt(raw), "./")), "/"))
	for _, candidate := range r.byName[path.Base(want)] {
		fc := r.fold.String(candidate)
		if fc == "/"+want || strings.HasSuffix(fc, "/"+want) {
			return candidate, true
		}
	}

	// A dotted note name such as "Daily 2024.01.15" looks like it has an
	// extension; try it as a note before giving up.
	if hasExtension(raw) && !strings.EqualFold(path.Ext(raw), ".md") {
		return r.resolve(current, raw+".md")
	}
	return "", false
}

func withExt(raw string) string {
	if hasExtension(raw) {
		return raw
	}
	return raw + ".md"
}
