package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/vaultview/internal/noteservice"
	"github.com/starford/vaultview/internal/storage"
	"github.com/starford/vaultview/internal/testutil"
)

// testEnv sets up a temp vault, index, service, and router for testing.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (*noteservice.Service, http.Handler) {
	t.Helper()
	svc, router, _ := testEnvWithVault(t, authToken != "", authToken)
	return svc, router
}

func testEnvWithVault(t *testing.T, authEnabled bool, authToken string) (*noteservice.Service, http.Handler, storage.Provider) {
	t.Helper()
	svc, _, store := testutil.TestService(t)
	return svc, NewRouter(svc, authEnabled, authToken, nil, "attachments"), store
}

func do(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, rd)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createNote(t *testing.T, router http.Handler, path, content string) {
	t.Helper()
	w := do(t, router, http.MethodPost, "/notes", map[string]string{"path": path, "content": content})
	if w.Code != http.StatusCreated {
		t.Fatalf("create %s = %d, body = %s", path, w.Code, w.Body.String())
	}
}

func TestCreateAndGetNote(t *testing.T) {
	_, router := testEnv(t, "")
	createNote(t, router, "hello.md", "# Hello\nWorld #greeting")

	w := do(t, router, http.MethodGet, "/notes/hello.md", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var note NoteDetail
	_ = json.Unmarshal(w.Body.Bytes(), &note)
	if note.Path != "hello.md" {
		t.Errorf("path = %q", note.Path)
	}
	if note.Title != "Hello" {
		t.Errorf("title = %q, want Hello", note.Title)
	}
	if len(note.Tags) != 1 || note.Tags[0] != "greeting" {
		t.Errorf("tags = %v", note.Tags)
	}
	if etag := w.Header().Get("ETag"); etag != `"`+note.Checksum+`"` {
		t.Errorf("etag = %q", etag)
	}
}

func TestCreateDuplicate(t *testing.T) {
	_, router := testEnv(t, "")
	createNote(t, router, "dup.md", "a")

	w := do(t, router, http.MethodPost, "/notes", map[string]string{"path": "dup.md", "content": "a"})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate create = %d, want 409", w.Code)
	}
}

func TestCreateInvalidPath(t *testing.T) {
	_, router := testEnv(t, "")
	for _, p := range []string{"notes.txt", "../escape.md", ".obsidian/x.md"} {
		w := do(t, router, http.MethodPost, "/notes", map[string]string{"path": p, "content": "x"})
		if w.Code != http.StatusBadRequest {
			t.Errorf("create %q = %d, want 400", p, w.Code)
		}
	}
}

func TestUpdateWithOptimisticLocking(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/notes", map[string]string{"path": "lock.md", "content": "v1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d", w.Code)
	}
	var created NoteDetail
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	updateBody, _ := json.Marshal(map[string]string{"content": "v2"})
	req := httptest.NewRequest(http.MethodPut, "/notes/lock.md", bytes.NewReader(updateBody))
	req.Header.Set("If-Match", `"`+created.Checksum+`"`)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("update with correct checksum = %d, body = %s", w.Code, w.Body.String())
	}

	// The checksum is stale now.
	req = httptest.NewRequest(http.MethodPut, "/notes/lock.md", bytes.NewReader(updateBody))
	req.Header.Set("If-Match", created.Checksum)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("update with stale checksum = %d, want 409", w.Code)
	}
}

func TestUpdateWithoutIfMatch(t *testing.T) {
	_, router := testEnv(t, "")
	createNote(t, router, "nolock.md", "v1")

	w := do(t, router, http.MethodPut, "/notes/nolock.md", map[string]string{"content": "v2"})
	if w.Code != http.StatusOK {
		t.Errorf("update without If-Match = %d, want 200", w.Code)
	}
}

func TestDeleteNote(t *testing.T) {
	_, router := testEnv(t, "")
	createNote(t, router, "bye.md", "gone")

	if w := do(t, router, http.MethodDelete, "/notes/bye.md", nil); w.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/notes/bye.md", nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodDelete, "/notes/bye.md", nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestListNotes(t *testing.T) {
	_, router := testEnv(t, "")
	createNote(t, router, "a.md", "# A\n#work")
	createNote(t, router, "b.md", "# B")

	w := do(t, router, http.MethodGet, "/notes?limit=10", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	var resp NoteListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Notes) != 2 || resp.Total != 2 {
		t.Errorf("notes = %d total = %d, want 2", len(resp.Notes), resp.Total)
	}

	w = do(t, router, http.MethodGet, "/notes?tag=%23work", nil)
	resp = NoteListResponse{}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Notes) != 1 || resp.Notes[0].Path != "a.md" {
		t.Errorf("tag filter = %+v", resp.Notes)
	}

	if w := do(t, router, http.MethodGet, "/notes?sort=size", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad sort = %d, want 400", w.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	createNote(t, router, "find.md", "uniquetoken here")

	w := do(t, router, http.MethodGet, "/search?q=uniquetoken", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d, body = %s", w.Code, w.Body.String())
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 1 {
		t.Errorf("search results = %d, want 1", len(resp.Results))
	}
}

func TestSearchMissingQuery(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/search", nil); w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

func TestGraphEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	createNote(t, router, "b.md", "# B")
	createNote(t, router, "a.md", "links to [[b]]")
	if w := do(t, router, http.MethodPut, "/notes/b.md", map[string]string{"content": "links to ![[a]]"}); w.Code != http.StatusOK {
		t.Fatalf("update = %d", w.Code)
	}

	w := do(t, router, http.MethodGet, "/graph", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("graph = %d", w.Code)
	}
	var resp GraphResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Nodes) != 2 {
		t.Errorf("nodes = %d, want 2", len(resp.Nodes))
	}
	want := []GraphLink{
		{Source: "a.md", Target: "b.md", Type: "wikilink"},
		{Source: "b.md", Target: "a.md", Type: "embed"},
	}
	if len(resp.Links) != len(want) {
		t.Fatalf("links = %+v", resp.Links)
	}
	for i := range want {
		if resp.Links[i] != want[i] {
			t.Errorf("link %d = %+v, want %+v", i, resp.Links[i], want[i])
		}
	}
}

func TestRenderEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	createNote(t, router, "Trips/Plans/夏之北海道.md", "# 夏之北海道\n")
	createNote(t, router, "Trips/Visited-Places.md",
		"# Visited\n\nNext: [[Plans/夏之北海道]] and [[Nowhere]]\n\n> [!tip] Pack\n> Bring a coat\n\n```gpx:Tracks/day1.gpx\n```\n")

	w := do(t, router, http.MethodGet, "/render/Trips/Visited-Places.md", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("render = %d, body = %s", w.Code, w.Body.String())
	}
	var out RenderedNote
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Raw {
		t.Error("unexpected raw fallback")
	}
	for _, want := range []string{
		`data-href="/Trips/Plans/夏之北海道.md"`,
		`is-unresolved`,
		`data-callout="tip"`,
	} {
		if !strings.Contains(out.HTML, want) {
			t.Errorf("html missing %q:\n%s", want, out.HTML)
		}
	}
	if len(out.Placeholders) != 1 || !out.Placeholders[0].IsFileReference || out.Placeholders[0].Code != "Tracks/day1.gpx" {
		t.Errorf("placeholders = %+v", out.Placeholders)
	}
	if len(out.Metadata.Headings) != 1 || out.Metadata.Headings[0].ID != "visited" {
		t.Errorf("headings = %+v", out.Metadata.Headings)
	}

	// Encoded slashes work the same way.
	if w := do(t, router, http.MethodGet, "/render/Trips%2FVisited-Places.md", nil); w.Code != http.StatusOK {
		t.Errorf("encoded render = %d", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/render/nope.md", nil); w.Code != http.StatusNotFound {
		t.Errorf("render missing = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/render/image.png", nil); w.Code != http.StatusBadRequest {
		t.Errorf("render non-note = %d, want 400", w.Code)
	}
}

func TestOutlineAndBacklinks(t *testing.T) {
	_, router := testEnv(t, "")
	createNote(t, router, "target.md", "# Target\n\n## Part\n")
	createNote(t, router, "src.md", "See [[target#Part]]")

	w := do(t, router, http.MethodGet, "/outline/target.md", nil)
	var outline OutlineResponse
	_ = json.Unmarshal(w.Body.Bytes(), &outline)
	if len(outline.Headings) != 2 || outline.Headings[1].ID != "part" || outline.Headings[1].Level != 2 {
		t.Errorf("outline = %+v", outline.Headings)
	}

	w = do(t, router, http.MethodGet, "/backlinks/target.md", nil)
	var bl BacklinksResponse
	_ = json.Unmarshal(w.Body.Bytes(), &bl)
	if len(bl.Backlinks) != 1 || bl.Backlinks[0] != "src.md" {
		t.Errorf("backlinks = %v", bl.Backlinks)
	}
}

func TestGetNote_NotFound(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/notes/nope.md", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing note = %d, want 404", w.Code)
	}
}

func TestUpdateNote_NotFound(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodPut, "/notes/ghost.md", map[string]string{"content": "x"}); w.Code != http.StatusNotFound {
		t.Errorf("update missing = %d, want 404", w.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	_, router := testEnv(t, "secret123")

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"valid header", "Bearer secret123", "", http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong", "Bearer wrong", "", http.StatusUnauthorized},
		{"query token", "", "?access_token=secret123", http.StatusOK},
		{"wrong query token", "", "?access_token=nope", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/notes"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/notes", nil); w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

// testEnvWithSSE creates a router with a stub SSE handler to test auth on /events.
func testEnvWithSSE(t *testing.T, authEnabled bool, token string) http.Handler {
	t.Helper()
	svc, _, _ := testutil.TestService(t)

	// Writes headers and blocks until the request is cancelled.
	sseHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
	return NewRouter(svc, authEnabled, token, sseHandler, "attachments")
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	router := testEnvWithSSE(t, true, "secret")
	if w := do(t, router, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_AuthDisabled(t *testing.T) {
	router := testEnvWithSSE(t, false, "")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE should not require auth when disabled")
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	router := testEnvWithSSE(t, true, "tok")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events?access_token=tok", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

// Attachment tests.

func uploadFile(t *testing.T, router http.Handler, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.Copy(part, bytes.NewReader(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/attachments", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUploadAndServeAttachment(t *testing.T) {
	_, router, store := testEnvWithVault(t, false, "")

	w := uploadFile(t, router, "test.png", []byte("fake-png-data"))
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	var resp AttachmentUploadResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Path != "attachments/test.png" || resp.URL != "/api/files/attachments/test.png" || resp.Embed != "![[/attachments/test.png]]" {
		t.Errorf("response = %+v", resp)
	}

	data, err := os.ReadFile(filepath.Join(store.Root(), "attachments", "test.png"))
	if err != nil {
		t.Fatalf("file not on disk: %v", err)
	}
	if string(data) != "fake-png-data" {
		t.Errorf("content mismatch")
	}

	w = do(t, router, http.MethodGet, "/files/attachments/test.png", nil)
	if w.Code != http.StatusOK || w.Body.String() != "fake-png-data" {
		t.Errorf("serve = %d %q", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}

	if w := uploadFile(t, router, "test.png", []byte("again")); w.Code != http.StatusConflict {
		t.Errorf("duplicate upload = %d, want 409", w.Code)
	}
}

func TestUploadedImageResolvesInRender(t *testing.T) {
	_, router := testEnv(t, "")
	if w := uploadFile(t, router, "map.png", []byte("png")); w.Code != http.StatusCreated {
		t.Fatalf("upload = %d", w.Code)
	}
	createNote(t, router, "trip.md", "![[map.png|300]]")

	w := do(t, router, http.MethodGet, "/render/trip.md", nil)
	var out RenderedNote
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if !strings.Contains(out.HTML, `src="/api/files/attachments/map.png"`) {
		t.Errorf("image not resolved: %s", out.HTML)
	}
}

func TestServeFile(t *testing.T) {
	_, router, store := testEnvWithVault(t, true, "secret")
	testutil.WriteVault(t, store, map[string]string{
		"Tracks/day1.gpx": "<gpx></gpx>",
		"private.md":      "# secret",
	})

	// Public even with auth enabled.
	w := do(t, router, http.MethodGet, "/files/Tracks/day1.gpx", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("serve gpx = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/gpx+xml" {
		t.Errorf("content type = %q", ct)
	}

	for _, target := range []string{"/files/private.md", "/files/missing.png", "/files/"} {
		if w := do(t, router, http.MethodGet, target, nil); w.Code != http.StatusNotFound {
			t.Errorf("%s = %d, want 404", target, w.Code)
		}
	}
	if w := do(t, router, http.MethodGet, "/files/.git/config", nil); w.Code != http.StatusBadRequest {
		t.Errorf("hidden file = %d, want 400", w.Code)
	}
}

func TestUploadAttachment_InvalidFilename(t *testing.T) {
	_, router, store := testEnvWithVault(t, false, "")
	// multipart strips directories from the file name, so "../" must land
	// inside the attachment folder.
	w := uploadFile(t, router, "../escape.txt", []byte("bad"))
	if w.Code == http.StatusCreated {
		if _, err := os.Stat(filepath.Join(store.Root(), "..", "escape.txt")); err == nil {
			t.Error("file escaped vault directory")
		}
	}

	for _, name := range []string{".hidden.png", "note.md"} {
		if w := uploadFile(t, router, name, []byte("x")); w.Code != http.StatusBadRequest {
			t.Errorf("upload %q = %d, want 400", name, w.Code)
		}
	}
}

func TestUploadAttachment_AuthProtected(t *testing.T) {
	_, router, _ := testEnvWithVault(t, true, "secret")
	if w := uploadFile(t, router, "x.png", []byte("data")); w.Code != http.StatusUnauthorized {
		t.Errorf("upload no auth = %d, want 401", w.Code)
	}
}

func TestUploadAttachment_MissingFileField(t *testing.T) {
	_, router, _ := testEnvWithVault(t, false, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("wrong", "data")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/attachments", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing field = %d, want 400", w.Code)
	}
}
