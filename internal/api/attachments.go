package api

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/starford/vaultview/internal/noteservice"
	"github.com/starford/vaultview/internal/storage"
)

const maxUploadBytes = 50 << 20 // 50 MB

// AttachmentHandler accepts uploads into the vault's attachment folder.
type AttachmentHandler struct {
	svc      *noteservice.Service
	assetDir string
}

// NewAttachmentHandler stores uploads under assetDir (vault-relative).
func NewAttachmentHandler(svc *noteservice.Service, assetDir string) *AttachmentHandler {
	if assetDir = strings.Trim(assetDir, "/"); assetDir == "" {
		assetDir = "attachments"
	}
	return &AttachmentHandler{svc: svc, assetDir: assetDir}
}

// safeName validates that the filename is a plain name (no path separators,
// no traversal, not hidden) and returns its vault path.
func (h *AttachmentHandler) safeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	if strings.ContainsAny(name, `/\`) || name == ".." || storage.Hidden(name) {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	if strings.EqualFold(path.Ext(name), ".md") {
		return "", fmt.Errorf("notes cannot be uploaded as attachments")
	}
	return path.Join(h.assetDir, name), nil
}

// Upload handles POST /api/attachments (multipart/form-data, field "file").
//
//	@Summary		Upload an attachment
//	@Tags			attachments
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"File to upload"
//	@Success		201		{object}	AttachmentUploadResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/attachments [post]
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	p, err := h.safeName(header.Filename)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}
	if err := h.svc.WriteAsset(r.Context(), p, data); err != nil {
		writeError(w, "upload attachment", p, err)
		return
	}

	writeJSON(w, http.StatusCreated, AttachmentUploadResponse{
		Path:  p,
		Size:  int64(len(data)),
		URL:   "/api/files/" + (&url.URL{Path: p}).EscapedPath(),
		Embed: "![[/" + p + "]]",
	})
}
