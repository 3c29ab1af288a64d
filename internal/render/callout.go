package render

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var calloutRe = regexp.MustCompile(`^\[!([\w-]+)\]([+-]?)[ \t]*`)

type calloutTransformer struct{}

func (t *calloutTransformer) Transform(doc *ast.Document, reader text.Reader, _ parser.Context) {
	source := reader.Source()

	var quotes []*ast.Blockquote
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			if bq, ok := n.(*ast.Blockquote); ok {
				quotes = append(quotes, bq)
			}
		}
		return ast.WalkContinue, nil
	})

	title := cases.Title(language.Und)
	for _, bq := range quotes {
		if c := toCallout(bq, source, title); c != nil {
			parent := bq.Parent()
			parent.ReplaceChild(parent, bq, c)
		}
	}
}

// toCallout builds the callout for bq, or returns nil when bq is a plain
// block quote. The children of bq are moved into the result.
func toCallout(bq *ast.Blockquote, source []byte, title cases.Caser) *Callout {
	para, ok := bq.FirstChild().(*ast.Paragraph)
	if !ok {
		return nil
	}
	run := newTextRun(para, source)
	if run == nil {
		return nil
	}
	m := calloutRe.FindStringSubmatchIndex(run.value)
	if m == nil {
		return nil
	}

	typ := strings.ToLower(run.value[m[2]:m[3]])
	c := NewCallout(typ, run.value[m[4]:m[5]])

	lineEnd := len(run.value)
	for i := m[1]; i < len(run.value); i++ {
		if _, ok := run.breaks[i]; ok {
			lineEnd = i
			break
		}
	}

	heading := &CalloutTitle{}
	titleNodes := run.span(m[1], lineEnd)
	if strings.TrimSpace(run.value[m[1]:lineEnd]) == "" {
		titleNodes = []ast.Node{ast.NewString([]byte(title.String(typ)))}
	}
	withChildren(heading, titleNodes...)

	content := &CalloutContent{}
	if lineEnd+1 < len(run.value) {
		first := ast.NewParagraph()
		withChildren(first, run.span(lineEnd+1, len(run.value))...)
		content.AppendChild(content, first)
	}
	for n := para.NextSibling(); n != nil; {
		next := n.NextSibling()
		content.AppendChild(content, n)
		n = next
	}

	c.AppendChild(c, heading)
	c.AppendChild(c, content)
	return c
}
