package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/vaultview/internal/noteservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// assetDir is the vault folder uploads are written to.
//
// GET /files/* stays outside the auth group because <img> and track loaders
// in rendered HTML cannot send an Authorization header; it never serves notes.
func NewRouter(svc *noteservice.Service, authEnabled bool, token string, sseHandler http.Handler, assetDir string) chi.Router {
	h := NewHandler(svc)
	ah := NewAttachmentHandler(svc, assetDir)

	r := chi.NewRouter()
	r.Get("/files/*", h.ServeFile)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(authEnabled, token))

		// Notes CRUD.
		r.Get("/notes", h.ListNotes)
		r.Post("/notes", h.CreateNote)
		r.Get("/notes/*", h.GetNote)
		r.Put("/notes/*", h.UpdateNote)
		r.Delete("/notes/*", h.DeleteNote)

		// Rendering.
		r.Get("/render/*", h.RenderNote)
		r.Get("/outline/*", h.Outline)

		r.Get("/search", h.Search)
		r.Get("/graph", h.Graph)
		r.Get("/backlinks/*", h.Backlinks)

		r.Post("/attachments", ah.Upload)

		if sseHandler != nil {
			r.Get("/events", sseHandler.ServeHTTP)
		}
	})

	return r
}
