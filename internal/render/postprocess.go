package render

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// WrapTables puts every <table> in a scrollable <div class="table-wrapper">.
// The rest of the markup is copied unchanged.
func WrapTables(src string) string {
	if !strings.Contains(src, "<table") {
		return src
	}
	var out bytes.Buffer
	out.Grow(len(src) + 64)

	z := html.NewTokenizer(strings.NewReader(src))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if !errors.Is(z.Err(), io.EOF) {
				out.Write(z.Raw())
			}
			return out.String()
		}
		raw := append([]byte(nil), z.Raw()...)
		switch tt {
		case html.StartTagToken:
			if name, _ := z.TagName(); string(name) == "table" {
				out.WriteString(`<div class="table-wrapper">`)
			}
			out.Write(raw)
		case html.EndTagToken:
			out.Write(raw)
			if name, _ := z.TagName(); string(name) == "table" {
				out.WriteString(`</div>`)
			}
		default:
			out.Write(raw)
		}
	}
}

// TagBar renders frontmatter tags the same way inline tags are rendered, for
// display above the document body.
func TagBar(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(`<div class="frontmatter-tags">`)
	for _, tag := range tags {
		esc := attrValue(tag)
		b.WriteString(`<a class="tag" href="#tag/`)
		b.Write(urlValue(tag))
		b.WriteString(`" data-tag="`)
		b.Write(esc)
		b.WriteString(`">#`)
		b.Write(esc)
		b.WriteString(`</a>`)
	}
	b.WriteString("</div>\n")
	return b.String()
}
