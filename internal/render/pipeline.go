// Package render turns Obsidian-flavoured Markdown into HTML, a metadata
// outline and a list of placeholders for widgets the browser renders itself.
//
// goldmark does the CommonMark work. The vault syntax is handled by AST
// transformers that run in a fixed order: wikilinks, tags, highlights,
// callouts, external link marking, heading ids.
package render

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/starford/vaultview/internal/apperr"
	"github.com/starford/vaultview/internal/embed"
	"github.com/starford/vaultview/internal/models"
	vparser "github.com/starford/vaultview/internal/parser"
)

// Transformer priorities. goldmark runs lower values first.
const (
	prioLinks         = 100
	prioTags          = 200
	prioHighlights    = 300
	prioCallouts      = 400
	prioExternalLinks = 800
	prioHeadingIDs    = 900
)

// Passes switches individual AST passes on or off.
type Passes struct {
	Links      bool
	Tags       bool
	Highlights bool
	Callouts   bool
	HeadingIDs bool
}

// HighlightOptions configures fenced code highlighting.
type HighlightOptions struct {
	Enabled bool
	Style   string
}

// Options configures a Pipeline.
type Options struct {
	// BaseURL prefixes vault paths of images and track files, e.g. "/files".
	BaseURL         string
	Unsafe          bool
	WrapTables      bool
	ExternalLinks   bool
	FrontmatterTags bool
	Highlight       HighlightOptions
	Passes          Passes
	// Extensions are added to the goldmark engine, e.g. a math renderer.
	Extensions []goldmark.Extender
	Logger     *slog.Logger
}

// DefaultOptions enables every pass.
func DefaultOptions() Options {
	return Options{
		Unsafe:          true,
		WrapTables:      true,
		ExternalLinks:   true,
		FrontmatterTags: true,
		Passes:          Passes{Links: true, Tags: true, Highlights: true, Callouts: true, HeadingIDs: true},
	}
}

// Pipeline renders documents. It holds no per-document state and is safe for
// concurrent use.
type Pipeline struct {
	opts   Options
	md     goldmark.Markdown
	logger *slog.Logger
}

// New builds the goldmark engine for opts.
func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var transformers []util.PrioritizedValue
	if opts.Passes.Links {
		transformers = append(transformers, util.Prioritized(&linkTransformer{baseURL: opts.BaseURL}, prioLinks))
	}
	if opts.Passes.Tags {
		transformers = append(transformers, util.Prioritized(&tagTransformer{}, prioTags))
	}
	if opts.Passes.Highlights {
		transformers = append(transformers, util.Prioritized(&highlightTransformer{}, prioHighlights))
	}
	if opts.Passes.Callouts {
		transformers = append(transformers, util.Prioritized(&calloutTransformer{}, prioCallouts))
	}
	if opts.ExternalLinks {
		transformers = append(transformers, util.Prioritized(&externalLinkTransformer{}, prioExternalLinks))
	}
	if opts.Passes.HeadingIDs {
		transformers = append(transformers, util.Prioritized(&headingIDTransformer{}, prioHeadingIDs))
	}

	exts := []goldmark.Extender{extension.GFM}
	if opts.Highlight.Enabled {
		style := opts.Highlight.Style
		if style == "" {
			style = "github"
		}
		exts = append(exts, highlighting.NewHighlighting(
			highlighting.WithStyle(style),
			highlighting.WithFormatOptions(chromahtml.WithClasses(true)),
		))
	}
	exts = append(exts, opts.Extensions...)

	rendererOpts := []renderer.Option{
		renderer.WithNodeRenderers(util.Prioritized(&nodeRenderer{}, 500)),
	}
	if opts.Unsafe {
		rendererOpts = append(rendererOpts, html.WithUnsafe())
	}

	md := goldmark.New(
		goldmark.WithExtensions(exts...),
		goldmark.WithParserOptions(parser.WithASTTransformers(transformers...)),
		goldmark.WithRendererOptions(rendererOpts...),
	)
	return &Pipeline{opts: opts, md: md, logger: logger}
}

// Render runs doc through the pipeline. index may be nil, in which case links
// resolve purely by path. A panic inside the Markdown engine is returned as
// apperr.ErrRender; callers should then show the raw text.
func (p *Pipeline) Render(ctx context.Context, doc models.Document, index FileIndex) (out *models.Rendered, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("render panic", slog.String("path", doc.Path), slog.Any("panic", r))
			out, err = nil, fmt.Errorf("%w: %s: %v", apperr.ErrRender, doc.Path, r)
		}
	}()
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fm, body := vparser.SplitFrontmatter([]byte(doc.Text))
	frontTags := vparser.FrontmatterTags(fm)

	var ids embed.IDs
	body, fenced := embed.Extract(body, &ids)

	st := &callState{path: doc.Path, resolver: newResolver(p.snapshot(ctx, index, doc.Path))}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src := []byte(body)
	pc := parser.NewContext()
	pc.Set(stateKey, st)
	root := p.md.Parser().Parse(text.NewReader(src), parser.WithContext(pc))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	meta, unresolved := collectMetadata(root, src, frontTags)

	var buf bytes.Buffer
	if err := p.md.Renderer().Render(&buf, src, root); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperr.ErrRender, doc.Path, err)
	}
	htmlOut := buf.String()
	if p.opts.WrapTables {
		htmlOut = WrapTables(htmlOut)
	}
	if p.opts.FrontmatterTags {
		htmlOut = TagBar(frontTags) + htmlOut
	}
	htmlOut, embedded := embed.Reconcile(htmlOut, p.opts.BaseURL, &ids)

	placeholders := make([]models.Placeholder, 0, len(fenced)+len(embedded))
	placeholders = append(placeholders, fenced...)
	placeholders = append(placeholders, embedded...)

	p.logger.Debug("rendered",
		slog.String("path", doc.Path),
		slog.Int("headings", len(meta.Headings)),
		slog.Int("placeholders", len(placeholders)),
		slog.Duration("took", time.Since(start)),
	)

	return &models.Rendered{
		HTML:         htmlOut,
		Title:        title(fm, meta),
		Frontmatter:  fm,
		Metadata:     meta,
		Placeholders: placeholders,
		Unresolved:   unresolved,
	}, nil
}

// snapshot fetches the file index once for the whole document. A failing
// index degrades to path-only resolution.
func (p *Pipeline) snapshot(ctx context.Context, index FileIndex, path string) map[string]string {
	if index == nil {
		return nil
	}
	files, err := index.Snapshot(ctx)
	if err != nil {
		p.logger.Warn("file index unavailable, resolving links by path",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if files == nil {
		files = map[string]string{}
	}
	return files
}

func title(fm map[string]any, meta models.Metadata) string {
	if s, ok := fm["title"].(string); ok && s != "" {
		return s
	}
	for _, h := range meta.Headings {
		if h.Level == 1 {
			return h.Text
		}
	}
	return ""
}
