package render

import (
	"regexp"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// Inline markup inside the markers, such as ==**bold**==, shows up as an
// object mark in the run and is carried into the highlight.
var highlightRe = regexp.MustCompile(`==([^=\n]+?)==`)

type highlightTransformer struct{}

func (t *highlightTransformer) Transform(doc *ast.Document, reader text.Reader, _ parser.Context) {
	for _, run := range collectRuns(doc, reader.Source()) {
		locs := highlightRe.FindAllStringSubmatchIndex(run.value, -1)
		if locs == nil {
			continue
		}
		matches := make([][2]int, len(locs))
		for i, loc := range locs {
			matches[i] = [2]int{loc[0], loc[1]}
		}
		run.splice(matches, func(i int) []ast.Node {
			return []ast.Node{withChildren(NewHighlight(), run.span(locs[i][2], locs[i][3])...)}
		})
	}
}
