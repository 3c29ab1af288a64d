package render

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// headingIDTransformer gives every heading a unique id attribute. It must run
// after every pass that edits inline text.
type headingIDTransformer struct{}

func (t *headingIDTransformer) Transform(doc *ast.Document, reader text.Reader, _ parser.Context) {
	source := reader.Source()

	var headings []*ast.Heading
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			if h, ok := n.(*ast.Heading); ok {
				headings = append(headings, h)
			}
		}
		return ast.WalkContinue, nil
	})

	ids := newIDSet()
	lower := cases.Lower(language.Und)
	for i, h := range headings {
		slug := slugify(lower, plainText(h, source))
		if slug == "" {
			slug = "heading-" + strconv.Itoa(i)
		}
		h.SetAttributeString("id", []byte(ids.claim(slug)))
	}
}

// idSet hands out ids that are unique within one document.
type idSet map[string]struct{}

func newIDSet() idSet { return idSet{} }

// claim returns base if unused, otherwise the first free base-1, base-2, ...
func (s idSet) claim(base string) string {
	id := base
	for n := 1; ; n++ {
		if _, taken := s[id]; !taken {
			break
		}
		id = base + "-" + strconv.Itoa(n)
	}
	s[id] = struct{}{}
	return id
}

// Slugify turns heading text into an anchor: lower case, whitespace runs
// become '-', and only ASCII word characters, CJK ideographs and '-' are kept.
func Slugify(s string) string {
	return slugify(cases.Lower(language.Und), s)
}

func slugify(lower cases.Caser, s string) string {
	s = lower.String(s)
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space {
			b.WriteByte('-')
			space = false
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		case r >= 0x4E00 && r <= 0x9FFF:
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "-")
}
