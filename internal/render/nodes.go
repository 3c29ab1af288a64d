package render

import (
	"github.com/yuin/goldmark/ast"
)

// Node kinds produced by the vault passes. Every construct the passes emit is
// one of these or a stock goldmark node (Image, String, Text, Paragraph).
var (
	KindWikiLink       = ast.NewNodeKind("WikiLink")
	KindInvalidLink    = ast.NewNodeKind("InvalidLink")
	KindEmbed          = ast.NewNodeKind("Embed")
	KindTrackEmbed     = ast.NewNodeKind("TrackEmbed")
	KindTagLink        = ast.NewNodeKind("TagLink")
	KindHighlight      = ast.NewNodeKind("Highlight")
	KindCallout        = ast.NewNodeKind("Callout")
	KindCalloutTitle   = ast.NewNodeKind("CalloutTitle")
	KindCalloutContent = ast.NewNodeKind("CalloutContent")
)

// WikiLink is a resolved [[target]] link. Its children are the display text.
type WikiLink struct {
	ast.BaseInline

	// Path is the resolved vault path, e.g. "/Trips/Plans/Hokkaido.md".
	Path string
	// Fragment is the heading or block reference, without '#'.
	Fragment string
}

func NewWikiLink(path, fragment string) *WikiLink {
	return &WikiLink{Path: path, Fragment: fragment}
}

func (n *WikiLink) Kind() ast.NodeKind { return KindWikiLink }

func (n *WikiLink) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{
		"Path":     n.Path,
		"Fragment": n.Fragment,
	}, nil)
}

// InvalidLink is a [[target]] that did not resolve. It renders as inert text
// and keeps the original target for diagnostics.
type InvalidLink struct {
	ast.BaseInline
	Target string
}

func NewInvalidLink(target string) *InvalidLink {
	return &InvalidLink{Target: target}
}

func (n *InvalidLink) Kind() ast.NodeKind { return KindInvalidLink }

func (n *InvalidLink) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"Target": n.Target}, nil)
}

// Embed is a ![[target]] transclusion of a non-image, non-track file.
type Embed struct {
	ast.BaseInline
	Path       string
	Fragment   string
	Unresolved bool
}

func NewEmbed(path, fragment string, unresolved bool) *Embed {
	return &Embed{Path: path, Fragment: fragment, Unresolved: unresolved}
}

func (n *Embed) Kind() ast.NodeKind { return KindEmbed }

func (n *Embed) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"Path": n.Path}, nil)
}

// TrackEmbed marks a ![[file.gpx]] or ![[file.kml]] embed. It serializes to a
// marker element that the embed reconciler later swaps for a placeholder.
type TrackEmbed struct {
	ast.BaseInline
	FileType string
	URL      string
	EmbedID  string
}

func NewTrackEmbed(fileType, url, embedID string) *TrackEmbed {
	return &TrackEmbed{FileType: fileType, URL: url, EmbedID: embedID}
}

func (n *TrackEmbed) Kind() ast.NodeKind { return KindTrackEmbed }

func (n *TrackEmbed) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{
		"FileType": n.FileType,
		"URL":      n.URL,
	}, nil)
}

// TagLink is an inline #tag. Name has no leading '#'.
type TagLink struct {
	ast.BaseInline
	Name string
}

func NewTagLink(name string) *TagLink {
	return &TagLink{Name: name}
}

func (n *TagLink) Kind() ast.NodeKind { return KindTagLink }

func (n *TagLink) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"Name": n.Name}, nil)
}

// Highlight is ==marked== text.
type Highlight struct {
	ast.BaseInline
}

func NewHighlight() *Highlight { return &Highlight{} }

func (n *Highlight) Kind() ast.NodeKind { return KindHighlight }

func (n *Highlight) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, nil, nil)
}

// Callout is an admonition block. It always has exactly two children: a
// CalloutTitle followed by a CalloutContent.
type Callout struct {
	ast.BaseBlock
	CalloutType string
	// Fold is "", "+" (foldable, open) or "-" (foldable, collapsed).
	Fold string
}

func NewCallout(typ, fold string) *Callout {
	return &Callout{CalloutType: typ, Fold: fold}
}

func (n *Callout) Kind() ast.NodeKind { return KindCallout }

// Foldable reports whether the callout can be collapsed by the reader.
func (n *Callout) Foldable() bool { return n.Fold != "" }

func (n *Callout) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{
		"Type": n.CalloutType,
		"Fold": n.Fold,
	}, nil)
}

// CalloutTitle holds the inline title of a callout.
type CalloutTitle struct {
	ast.BaseBlock
}

func (n *CalloutTitle) Kind() ast.NodeKind { return KindCalloutTitle }

func (n *CalloutTitle) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, nil, nil)
}

// CalloutContent holds the block children of a callout.
type CalloutContent struct {
	ast.BaseBlock
}

func (n *CalloutContent) Kind() ast.NodeKind { return KindCalloutContent }

func (n *CalloutContent) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, nil, nil)
}
