package render

import (
	"strings"

	"github.com/yuin/goldmark/ast"

	"github.com/starford/vaultview/internal/models"
)

// Link kinds recorded in metadata and carried into the index as edge types.
const (
	LinkTypeWiki     = "wikilink"
	LinkTypeEmbed    = "embed"
	LinkTypeMarkdown = "markdown"
)

// collectMetadata walks the tree that is about to be rendered. Heading ids are
// read back from the attributes the heading pass set, so they always match
// the HTML. Unresolved wikilinks are not links; their raw targets are
// returned separately. frontTags come first in the tag list.
func collectMetadata(doc ast.Node, source []byte, frontTags []string) (models.Metadata, []string) {
	var unresolved []string
	meta := models.Metadata{
		Headings: []models.Heading{},
		Links:    []models.Link{},
		Tags:     []string{},
	}
	seenTag := make(map[string]struct{})
	addTag := func(tag string) {
		if _, dup := seenTag[tag]; dup {
			return
		}
		seenTag[tag] = struct{}{}
		meta.Tags = append(meta.Tags, tag)
	}
	for _, tag := range frontTags {
		addTag(tag)
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Heading:
			h := models.Heading{Level: v.Level, Text: plainText(v, source)}
			if id, ok := v.AttributeString("id"); ok {
				if b, ok := id.([]byte); ok {
					h.ID = string(b)
				}
			}
			meta.Headings = append(meta.Headings, h)
		case *InvalidLink:
			raw, _, _ := strings.Cut(v.Target, "#")
			unresolved = append(unresolved, raw)
			return ast.WalkSkipChildren, nil
		case *WikiLink:
			meta.Links = append(meta.Links, models.Link{Target: v.Path, Text: plainText(v, source), Type: LinkTypeWiki})
			return ast.WalkSkipChildren, nil
		case *Embed:
			if v.Unresolved {
				unresolved = append(unresolved, v.Path)
			} else {
				meta.Links = append(meta.Links, models.Link{Target: v.Path, Text: plainText(v, source), Type: LinkTypeEmbed})
			}
			return ast.WalkSkipChildren, nil
		case *ast.Link:
			meta.Links = append(meta.Links, models.Link{Target: string(v.Destination), Text: plainText(v, source), Type: LinkTypeMarkdown})
		case *ast.AutoLink:
			meta.Links = append(meta.Links, models.Link{Target: string(v.URL(source)), Text: string(v.Label(source)), Type: LinkTypeMarkdown})
		case *TagLink:
			addTag(v.Name)
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return meta, unresolved
}
