package render

import (
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"

	"github.com/starford/vaultview/internal/embed"
)

// nodeRenderer writes HTML for the vault node kinds. Stock nodes are left to
// goldmark's html renderer.
type nodeRenderer struct{}

func (r *nodeRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindWikiLink, r.renderWikiLink)
	reg.Register(KindInvalidLink, r.renderInvalidLink)
	reg.Register(KindEmbed, r.renderEmbed)
	reg.Register(KindTrackEmbed, r.renderTrackEmbed)
	reg.Register(KindTagLink, r.renderTagLink)
	reg.Register(KindHighlight, r.renderHighlight)
	reg.Register(KindCallout, r.renderCallout)
	reg.Register(KindCalloutTitle, r.renderCalloutTitle)
	reg.Register(KindCalloutContent, r.renderCalloutContent)
}

func (r *nodeRenderer) renderWikiLink(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	n := node.(*WikiLink)
	if !entering {
		_, _ = w.WriteString("</a>")
		return ast.WalkContinue, nil
	}
	href := n.Path
	if n.Fragment != "" {
		href += "#" + fragmentAnchor(n.Fragment)
	}
	_, _ = w.WriteString(`<a class="internal-link" href="`)
	writeURL(w, href)
	_, _ = w.WriteString(`" data-href="`)
	writeAttr(w, n.Path)
	_, _ = w.WriteString(`">`)
	return ast.WalkContinue, nil
}

func (r *nodeRenderer) renderInvalidLink(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	n := node.(*InvalidLink)
	if !entering {
		_, _ = w.WriteString("</span>")
		return ast.WalkContinue, nil
	}
	_, _ = w.WriteString(`<span class="internal-link is-unresolved" data-target="`)
	writeAttr(w, n.Target)
	_, _ = w.WriteString(`">`)
	return ast.WalkContinue, nil
}

func (r *nodeRenderer) renderEmbed(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	n := node.(*Embed)
	if !entering {
		_, _ = w.WriteString("</span>")
		return ast.WalkContinue, nil
	}
	class := "internal-embed"
	if n.Unresolved {
		class += " is-unresolved"
	}
	src := n.Path
	if n.Fragment != "" {
		src += "#" + n.Fragment
	}
	_, _ = w.WriteString(`<span class="` + class + `" data-src="`)
	writeAttr(w, src)
	_, _ = w.WriteString(`">`)
	return ast.WalkContinue, nil
}

func (r *nodeRenderer) renderTrackEmbed(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*TrackEmbed)
	_, _ = w.WriteString(`<span ` + embed.AttrTrackType + `="`)
	writeAttr(w, n.FileType)
	_, _ = w.WriteString(`" ` + embed.AttrTrackURL + `="`)
	writeAttr(w, n.URL)
	_, _ = w.WriteString(`" ` + embed.AttrEmbedID + `="`)
	writeAttr(w, n.EmbedID)
	_, _ = w.WriteString(`"/>`)
	return ast.WalkSkipChildren, nil
}

func (r *nodeRenderer) renderTagLink(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	n := node.(*TagLink)
	if !entering {
		_, _ = w.WriteString("</a>")
		return ast.WalkContinue, nil
	}
	_, _ = w.WriteString(`<a class="tag" href="#tag/`)
	writeURL(w, n.Name)
	_, _ = w.WriteString(`" data-tag="`)
	writeAttr(w, n.Name)
	_, _ = w.WriteString(`">`)
	return ast.WalkContinue, nil
}

func (r *nodeRenderer) renderHighlight(w util.BufWriter, _ []byte, _ ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		_, _ = w.WriteString("<mark>")
	} else {
		_, _ = w.WriteString("</mark>")
	}
	return ast.WalkContinue, nil
}

func (r *nodeRenderer) renderCallout(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	n := node.(*Callout)
	if !entering {
		_, _ = w.WriteString("</div>\n")
		return ast.WalkContinue, nil
	}
	_, _ = w.WriteString(`<div class="callout" data-callout="`)
	writeAttr(w, n.CalloutType)
	if n.Foldable() {
		_, _ = w.WriteString(`" data-callout-fold="`)
		writeAttr(w, n.Fold)
	}
	_, _ = w.WriteString("\">\n")
	return ast.WalkContinue, nil
}

func (r *nodeRenderer) renderCalloutTitle(w util.BufWriter, _ []byte, _ ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		_, _ = w.WriteString(`<div class="callout-title"><div class="callout-title-inner">`)
	} else {
		_, _ = w.WriteString("</div></div>\n")
	}
	return ast.WalkContinue, nil
}

func (r *nodeRenderer) renderCalloutContent(w util.BufWriter, _ []byte, _ ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		_, _ = w.WriteString("<div class=\"callout-content\">\n")
	} else {
		_, _ = w.WriteString("</div>\n")
	}
	return ast.WalkContinue, nil
}

func writeAttr(w util.BufWriter, s string) {
	_, _ = w.Write(attrValue(s))
}

func writeURL(w util.BufWriter, s string) {
	_, _ = w.Write(urlValue(s))
}

func attrValue(s string) []byte { return util.EscapeHTML([]byte(s)) }

// urlValue percent-encodes s for an href or src attribute.
func urlValue(s string) []byte { return util.EscapeHTML(util.URLEscape([]byte(s), false)) }

// fragmentAnchor maps a [[note#Heading]] fragment onto the id the heading
// pass assigns. Block references (^id) are kept as written.
func fragmentAnchor(fragment string) string {
	if strings.HasPrefix(fragment, "^") {
		return fragment
	}
	if s := Slugify(fragment); s != "" {
		return s
	}
	return fragment
}
