package render

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"

	"github.com/starford/vaultview/internal/models"
)

var wikiLinkRe = regexp.MustCompile(`(!?)\[\[([^\[\]\n\x{FFFC}]+?)\]\]`)

var imageSizeRe = regexp.MustCompile(`^(\d+)(?:x(\d+))?$`)

// linkTransformer rewrites [[...]] and ![[...]] into resolved nodes.
type linkTransformer struct {
	baseURL string
}

func (t *linkTransformer) Transform(doc *ast.Document, reader text.Reader, pc parser.Context) {
	st := stateFrom(pc)
	source := reader.Source()

	for _, run := range collectRuns(doc, source) {
		locs := wikiLinkRe.FindAllStringSubmatchIndex(run.value, -1)
		if locs == nil {
			continue
		}
		matches := make([][2]int, len(locs))
		for i, loc := range locs {
			matches[i] = [2]int{loc[0], loc[1]}
		}
		run.splice(matches, func(i int) []ast.Node {
			loc := locs[i]
			isEmbed := loc[3] > loc[2]
			target := ParseTarget(run.value[loc[4]:loc[5]], isEmbed)
			return []ast.Node{t.linkNode(st, target)}
		})
	}
}

func (t *linkTransformer) linkNode(st *callState, target models.LinkTarget) ast.Node {
	switch target.Kind {
	case models.LinkImage:
		return t.imageNode(st, target)
	case models.LinkEmbed:
		return t.embedNode(st, target)
	}

	resolved, ok := st.resolver.resolve(st.path, target.Raw)
	if !ok {
		original := target.Raw
		if target.Fragment != "" {
			original += "#" + target.Fragment
		}
		return withChildren(NewInvalidLink(original), ast.NewString([]byte(target.Display)))
	}
	return withChildren(NewWikiLink(resolved, target.Fragment), ast.NewString([]byte(target.Display)))
}

func (t *linkTransformer) imageNode(st *callState, target models.LinkTarget) ast.Node {
	link := ast.NewLink()
	link.Destination = []byte(t.assetURL(st, target.Raw))
	img := ast.NewImage(link)

	alt := target.Display
	// ![[photo.png|300]] and ![[photo.png|300x200]] size the image.
	if m := imageSizeRe.FindStringSubmatch(alt); m != nil {
		img.SetAttributeString("width", []byte(m[1]))
		if m[2] != "" {
			img.SetAttributeString("height", []byte(m[2]))
		}
		alt = strings.TrimSuffix(path.Base(target.Raw), path.Ext(target.Raw))
	}
	img.AppendChild(img, ast.NewString([]byte(alt)))
	return img
}

func (t *linkTransformer) embedNode(st *callState, target models.LinkTarget) ast.Node {
	if kind, ok := trackExts[strings.ToLower(path.Ext(target.Raw))]; ok {
		id := fmt.Sprintf("embed-%d", st.embedSeq)
		st.embedSeq++
		return NewTrackEmbed(string(kind), t.assetURL(st, target.Raw), id)
	}

	resolved, ok := st.resolver.resolve(st.path, target.Raw)
	if !ok {
		return withChildren(NewEmbed(target.Raw, target.Fragment, true), ast.NewString([]byte(target.Display)))
	}
	return withChildren(NewEmbed(resolved, target.Fragment, false), ast.NewString([]byte(target.Display)))
}

// assetURL is the browser URL of a vault file: absolute URLs pass through,
// everything else is resolved and prefixed with the base URL. A miss in the
// index still yields the syntactic path so the browser shows a broken asset
// rather than nothing.
func (t *linkTransformer) assetURL(st *callState, raw string) string {
	if isAbsoluteURL(raw) {
		return raw
	}
	p, ok := st.resolver.resolve(st.path, raw)
	if !ok {
		p = ResolvePath(st.path, raw)
	}
	return strings.TrimSuffix(t.baseURL, "/") + p
}

func isAbsoluteURL(s string) bool {
	i := strings.Index(s, "://")
	if i <= 0 {
		return strings.HasPrefix(s, "data:")
	}
	for _, r := range s[:i] {
		if !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9' || r == '+' || r == '-' || r == '.') {
			return false
		}
	}
	return true
}
