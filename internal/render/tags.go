package render

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

var tagRe = regexp.MustCompile(`#([\p{L}\p{N}_/-]+)`)

type tagTransformer struct{}

func (t *tagTransformer) Transform(doc *ast.Document, reader text.Reader, _ parser.Context) {
	for _, run := range collectRuns(doc, reader.Source()) {
		var (
			matches [][2]int
			names   []string
		)
		for _, loc := range tagRe.FindAllStringSubmatchIndex(run.value, -1) {
			if !tagBoundary(run.value, loc[0]) {
				continue
			}
			name := strings.TrimRight(run.value[loc[2]:loc[3]], "/")
			if !validTag(name) {
				continue
			}
			matches = append(matches, [2]int{loc[0], loc[2] + len(name)})
			names = append(names, name)
		}
		run.splice(matches, func(i int) []ast.Node {
			return []ast.Node{withChildren(NewTagLink(names[i]), ast.NewString([]byte("#"+names[i])))}
		})
	}
}

// tagBoundary reports whether a '#' at offset i may start a tag: it must open
// the run or follow whitespace or punctuation. '#', '/', '&' and '\' are
// excluded so that "##x", URLs, entities and escapes are left alone.
// Full-width CJK punctuation counts as punctuation.
func tagBoundary(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	switch r {
	case '#', '/', '&', '\\':
		return false
	}
	return unicode.IsSpace(r) || unicode.IsPunct(r)
}

// validTag rejects empty and purely numeric names, which are issue numbers
// and the like rather than tags.
func validTag(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if !unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
