package api

import (
	"github.com/starford/vaultview/internal/index"
	"github.com/starford/vaultview/internal/models"
	"github.com/starford/vaultview/internal/noteservice"
)

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Path    string `json:"path" example:"Trips/Hokkaido.md" validate:"required"`
	Content string `json:"content" example:"# Hokkaido\nSee [[Plans]]" validate:"required"`
}

// UpdateNoteRequest is the request body for updating a note.
type UpdateNoteRequest struct {
	Content string `json:"content" example:"# Updated\nContent" validate:"required"`
}

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// NoteListItem is a lightweight item in a list response (aliased from the domain layer).
type NoteListItem = noteservice.NoteListItem

// RenderedNote is the render response: HTML plus headings, links, tags and
// placeholders.
type RenderedNote = noteservice.RenderedNote

// NoteListResponse wraps paginated note listings.
type NoteListResponse struct {
	Notes []NoteListItem `json:"notes" validate:"required"`
	Total int            `json:"total" example:"42" validate:"required"`
}

// SearchResult is a single search hit.
type SearchResult = index.SearchResult

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// GraphNode is a node in the knowledge graph.
type GraphNode = index.GraphNode

// GraphLink is an edge in the knowledge graph; Type is wikilink, markdown or embed.
type GraphLink = models.Edge

// GraphResponse wraps the knowledge graph.
type GraphResponse struct {
	Nodes []GraphNode `json:"nodes" validate:"required"`
	Links []GraphLink `json:"links" validate:"required"`
}

// OutlineResponse lists the headings of a note in document order.
type OutlineResponse struct {
	Headings []models.Heading `json:"headings" validate:"required"`
}

// BacklinksResponse lists the notes linking to a note.
type BacklinksResponse struct {
	Backlinks []string `json:"backlinks" validate:"required"`
}

// AttachmentUploadResponse is returned after a successful attachment upload.
type AttachmentUploadResponse struct {
	Path  string `json:"path" example:"attachments/image.png" validate:"required"`
	Size  int64  `json:"size" example:"12345" validate:"required"`
	URL   string `json:"url" example:"/api/files/attachments/image.png" validate:"required"`
	Embed string `json:"embed" example:"![[/attachments/image.png]]" validate:"required"`
}
