// Package mcpserver exposes the vault to LLM clients as MCP tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/vaultview/internal/apperr"
	"github.com/starford/vaultview/internal/noteservice"
	"github.com/starford/vaultview/internal/storage"
)

const contractURI = "vaultview://note-format"

// Server wraps the MCP server with the vault tools.
type Server struct {
	mcp      *server.MCPServer
	svc      *noteservice.Service
	store    storage.Provider
	assetDir string
}

// New registers every tool. Uploaded assets go to assetDir inside the vault.
func New(svc *noteservice.Service, store storage.Provider, assetDir, version string) *Server {
	if assetDir == "" {
		assetDir = "attachments"
	}
	s := &Server{svc: svc, store: store, assetDir: strings.Trim(assetDir, "/")}

	s.mcp = server.NewMCPServer(
		"vaultview",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through note titles, bodies and tags."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of hits (default 20)")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the Markdown source of a note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault path of the note, e.g. Trips/Visited-Places.md")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("render_note",
		mcp.WithDescription("Render a note to HTML with resolved [[wikilinks]], tags, callouts and heading ids. "+
			"The result also lists headings, outgoing links, tags and the Mermaid/GPX/KML placeholders "+
			"that appear verbatim in the HTML."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault path of the note")),
		mcp.WithBoolean("include_html", mcp.Description("Include the HTML (default true); false returns metadata only")),
	), s.renderNote)

	s.mcp.AddTool(mcp.NewTool("note_outline",
		mcp.WithDescription("Return the heading outline of a note with the anchor id of every heading, "+
			"usable as [[note#Heading]] link targets."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault path of the note")),
	), s.noteOutline)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a new Markdown note. Content must follow the note format contract "+
			"(get_note_contract tool or the "+contractURI+" resource)."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault path for the new note (must end with .md)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown content")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the note format contract. Call this before creating notes."),
	), s.getNoteContract)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List notes, optionally under a folder or carrying a tag."),
		mcp.WithString("folder", mcp.Description("Folder to list (empty for the whole vault)")),
		mcp.WithString("tag", mcp.Description("Only notes with this tag, inline or frontmatter")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all notes that link to or embed the specified note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault path of the note, .md may be omitted")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("upload_asset",
		mcp.WithDescription("Store an image, PDF or GPX/KML track in the vault from an http(s) or base64 data URL. "+
			"Returns the ![[...]] embed to paste into a note."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s):// or data: URL of the file")),
		mcp.WithString("filename", mcp.Description("File name to store under (derived from the URL if empty)")),
	), s.uploadAsset)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Note Format Contract",
			mcp.WithResourceDescription("Obsidian-flavoured Markdown accepted by the vault renderer."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// toolError turns a service error into a tool result the model can read.
func toolError(path string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path))
	case errors.Is(err, apperr.ErrAlreadyExists):
		return mcp.NewToolResultError(fmt.Sprintf("note already exists: %s", path))
	case errors.Is(err, apperr.ErrInvalidPath):
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

// withExt lets callers name notes the way wikilinks do.
func withExt(p string) string {
	if strings.HasSuffix(strings.ToLower(p), ".md") {
		return p
	}
	return p + ".md"
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.GetNote(ctx, withExt(path))
	if err != nil {
		return toolError(path, err), nil
	}
	return mcp.NewToolResultText(note.Content), nil
}

func (s *Server) renderNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := s.svc.RenderNote(ctx, withExt(path))
	if err != nil {
		return toolError(path, err), nil
	}
	if !req.GetBool("include_html", true) {
		out.HTML = ""
	}
	return jsonResult(out), nil
}

func (s *Server) noteOutline(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	headings, err := s.svc.Outline(ctx, withExt(path))
	if err != nil {
		return toolError(path, err), nil
	}
	if len(headings) == 0 {
		return mcp.NewToolResultText("no headings"), nil
	}
	var b strings.Builder
	for _, h := range headings {
		fmt.Fprintf(&b, "%s%s #%s\n", strings.Repeat("  ", h.Level-1), h.Text, h.ID)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.svc.CreateNote(ctx, path, []byte(content)); err != nil {
		return toolError(path, err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", strings.TrimPrefix(path, "/"))), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folder := strings.Trim(req.GetString("folder", ""), "/")
	tag := strings.TrimPrefix(req.GetString("tag", ""), "#")

	var paths []string
	if tag != "" {
		items, _, err := s.svc.ListNotes(ctx, 500, 0, tag, "path")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		for _, it := range items {
			if folder == "" || strings.HasPrefix(it.Path, folder+"/") {
				paths = append(paths, it.Path)
			}
		}
	} else {
		metas, err := s.store.List(folder)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		for _, m := range metas {
			paths = append(paths, m.Path)
		}
	}
	if len(paths) == 0 {
		return mcp.NewToolResultText("no notes found"), nil
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) getNoteContract(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.svc.Backlinks(ctx, withExt(path))
	if err != nil {
		return toolError(path, err), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(strings.Join(bl, "\n")), nil
}
