package render

import (
	"strings"

	"github.com/yuin/goldmark/ast"
)

// objectMark stands in for a non-text inline sibling inside a run's value.
// U+FFFC is not a letter, digit, space or punctuation, so no pattern that
// looks for words or brackets matches across it.
const objectMark = "\uFFFC"

type lineBreak int

const (
	softBreak lineBreak = iota + 1
	hardBreak
)

// textRun is the flattened inline content of one parent node. goldmark splits
// literal text at every bracket or delimiter it tried and failed to parse, so
// "[[note]]" arrives as several Text siblings. A run glues them back into one
// string the passes can match against, and rebuilds the children afterwards.
type textRun struct {
	parent ast.Node
	value  string

	breaks  map[int]lineBreak // offset of '\n' in value
	objects map[int]ast.Node  // offset of objectMark in value
}

// skipSubtree reports whether text below n must not be touched.
func skipSubtree(n ast.Node) bool {
	switch n.Kind() {
	case ast.KindCodeSpan, ast.KindLink, ast.KindImage, ast.KindAutoLink, ast.KindRawHTML,
		ast.KindFencedCodeBlock, ast.KindCodeBlock, ast.KindHTMLBlock,
		KindWikiLink, KindInvalidLink, KindEmbed, KindTrackEmbed, KindTagLink:
		return true
	}
	return false
}

// collectRuns returns the runs of every inline container below root that
// holds at least one plain text child. Runs are built before any edit so a
// pass can rewrite them in any order.
func collectRuns(root ast.Node, source []byte) []*textRun {
	var runs []*textRun
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if skipSubtree(n) {
			return ast.WalkSkipChildren, nil
		}
		if first := n.FirstChild(); first != nil && first.Type() == ast.TypeInline {
			if r := newTextRun(n, source); r != nil {
				runs = append(runs, r)
			}
		}
		return ast.WalkContinue, nil
	})
	return runs
}

func newTextRun(parent ast.Node, source []byte) *textRun {
	r := &textRun{
		parent:  parent,
		breaks:  map[int]lineBreak{},
		objects: map[int]ast.Node{},
	}
	var b strings.Builder
	hasText := false
	for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			if t.IsRaw() {
				r.objects[b.Len()] = c
				b.WriteString(objectMark)
				continue
			}
			b.Write(t.Segment.Value(source))
			hasText = true
			switch {
			case t.HardLineBreak():
				r.breaks[b.Len()] = hardBreak
				b.WriteByte('\n')
			case t.SoftLineBreak():
				r.breaks[b.Len()] = softBreak
				b.WriteByte('\n')
			}
		case *ast.String:
			if t.IsCode() || t.IsRaw() {
				r.objects[b.Len()] = c
				b.WriteString(objectMark)
				continue
			}
			b.Write(t.Value)
			hasText = true
		default:
			r.objects[b.Len()] = c
			b.WriteString(objectMark)
		}
	}
	if !hasText {
		return nil
	}
	r.value = b.String()
	return r
}

// span returns nodes reproducing value[from:to]: plain text as String nodes,
// line breaks as empty Text nodes carrying the break flag, and the original
// sibling for every object mark.
func (r *textRun) span(from, to int) []ast.Node {
	var (
		out   []ast.Node
		start = from
	)
	flush := func(end int) {
		if end > start {
			out = append(out, ast.NewString([]byte(r.value[start:end])))
		}
	}
	for i := from; i < to; {
		if kind, ok := r.breaks[i]; ok {
			flush(i)
			br := ast.NewText()
			if kind == hardBreak {
				br.SetHardLineBreak(true)
			} else {
				br.SetSoftLineBreak(true)
			}
			out = append(out, br)
			i++
			start = i
			continue
		}
		if obj, ok := r.objects[i]; ok {
			flush(i)
			out = append(out, obj)
			i += len(objectMark)
			start = i
			continue
		}
		i++
	}
	flush(to)
	return out
}

// replace swaps the parent's children for nodes. Object siblings that appear
// in nodes are moved, the rest of the old children are dropped.
func (r *textRun) replace(nodes []ast.Node) {
	r.parent.RemoveChildren(r.parent)
	for _, n := range nodes {
		r.parent.AppendChild(r.parent, n)
	}
}

// splice rewrites the run given the byte ranges that matched and a builder
// for the node replacing each match. Ranges must be sorted and disjoint.
func (r *textRun) splice(matches [][2]int, build func(m int) []ast.Node) {
	if len(matches) == 0 {
		return
	}
	var out []ast.Node
	last := 0
	for i, m := range matches {
		out = append(out, r.span(last, m[0])...)
		out = append(out, build(i)...)
		last = m[1]
	}
	out = append(out, r.span(last, len(r.value))...)
	r.replace(out)
}

// withChildren appends children to n and returns it.
func withChildren(n ast.Node, children ...ast.Node) ast.Node {
	for _, c := range children {
		n.AppendChild(n, c)
	}
	return n
}

// plainText returns the visible text below n.
func plainText(n ast.Node, source []byte) string {
	var b strings.Builder
	writePlainText(&b, n, source)
	return b.String()
}

func writePlainText(b *strings.Builder, n ast.Node, source []byte) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		case *ast.AutoLink:
			b.Write(t.Label(source))
		default:
			writePlainText(b, c, source)
		}
	}
}
