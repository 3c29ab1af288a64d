package render

import (
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// externalLinkTransformer marks links that leave the vault so they open in a
// new tab.
type externalLinkTransformer struct{}

func (t *externalLinkTransformer) Transform(doc *ast.Document, reader text.Reader, _ parser.Context) {
	source := reader.Source()
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch l := n.(type) {
		case *ast.Link:
			if isExternal(string(l.Destination)) {
				markExternal(l)
			}
		case *ast.AutoLink:
			if l.AutoLinkType == ast.AutoLinkURL && isExternal(string(l.URL(source))) {
				markExternal(l)
			}
		}
		return ast.WalkContinue, nil
	})
}

func isExternal(dest string) bool {
	lower := strings.ToLower(dest)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "www.")
}

func markExternal(n ast.Node) {
	n.SetAttributeString("class", []byte("external-link"))
	n.SetAttributeString("target", []byte("_blank"))
	n.SetAttributeString("rel", []byte("noopener noreferrer"))
}
