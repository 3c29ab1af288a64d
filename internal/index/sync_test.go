package index

import (
	"cmp"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/starford/vaultview/internal/models"
	"github.com/starford/vaultview/internal/render"
	"github.com/starford/vaultview/internal/storage"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testIndexer returns an indexer over an empty temp vault.
func testIndexer(t *testing.T) (string, *Indexer) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	opts := render.DefaultOptions()
	opts.BaseURL = "/files"
	opts.Logger = quietLogger()
	return vaultDir, NewIndexer(testDB(t), store, render.New(opts), quietLogger(), 2)
}

func writeVault(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSync_IndexesRenderedMetadata(t *testing.T) {
	vaultDir, ix := testIndexer(t)
	writeVault(t, vaultDir, map[string]string{
		"Trips/Visited-Places.md": "# Visited\n\nSee [[Plans/夏之北海道]], [[Home]] and [back](../Home.md) or https://example.com #travel\n\n## Places\n",
		"Trips/Plans/夏之北海道.md":    "---\ntags: [plan]\n---\n# 夏之北海道\n",
		"Home.md":                 "# Home\n\n![[Trips/Visited-Places]]\n\n[[Missing note]]\n",
		".obsidian/ignored.md":    "# hidden",
	})

	if err := ix.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	db := ix.DB()

	n, err := db.GetNote("Trips/Visited-Places.md")
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if n.Title != "Visited" || !slices.Equal(n.Tags, []string{"travel"}) {
		t.Errorf("note = %+v", n)
	}
	if n, _ := db.GetNote("Trips/Plans/夏之北海道.md"); n == nil || !slices.Equal(n.Tags, []string{"plan"}) {
		t.Errorf("frontmatter tags not indexed: %+v", n)
	}

	hs, _ := db.Headings("Trips/Visited-Places.md")
	want := []models.Heading{{Level: 1, Text: "Visited", ID: "visited"}, {Level: 2, Text: "Places", ID: "places"}}
	if !slices.Equal(hs, want) {
		t.Errorf("headings = %+v", hs)
	}

	bl, _ := db.Backlinks("Trips/Plans/夏之北海道.md")
	if !slices.Equal(bl, []string{"Trips/Visited-Places.md"}) {
		t.Errorf("backlinks = %v", bl)
	}

	_, edges, err := db.Graph()
	if err != nil {
		t.Fatal(err)
	}
	wantEdges := []models.Edge{
		{Source: "Home.md", Target: "Trips/Visited-Places.md", Type: "embed"},
		{Source: "Trips/Visited-Places.md", Target: "Home.md", Type: "markdown"},
		{Source: "Trips/Visited-Places.md", Target: "Home.md", Type: "wikilink"},
		{Source: "Trips/Visited-Places.md", Target: "Trips/Plans/夏之北海道.md", Type: "wikilink"},
	}
	slices.SortFunc(edges, func(a, b models.Edge) int {
		return cmp.Or(cmp.Compare(a.Source, b.Source), cmp.Compare(a.Target, b.Target), cmp.Compare(a.Type, b.Type))
	})
	if !slices.Equal(edges, wantEdges) {
		t.Errorf("edges = %+v", edges)
	}

	if cs, _ := db.GetChecksum(".obsidian/ignored.md"); cs != "" {
		t.Error("hidden note indexed")
	}
}

func TestSync_UpdatesAndRemoves(t *testing.T) {
	vaultDir, ix := testIndexer(t)
	writeVault(t, vaultDir, map[string]string{"a.md": "# One", "b.md": "# Bee"})
	ctx := context.Background()
	if err := ix.Sync(ctx); err != nil {
		t.Fatal(err)
	}

	writeVault(t, vaultDir, map[string]string{"a.md": "# Two"})
	_ = os.Remove(filepath.Join(vaultDir, "b.md"))
	if err := ix.Sync(ctx); err != nil {
		t.Fatal(err)
	}

	n, err := ix.DB().GetNote("a.md")
	if err != nil || n.Title != "Two" {
		t.Errorf("a.md = %+v, %v", n, err)
	}
	if n.Checksum != storage.Checksum([]byte("# Two")) {
		t.Errorf("checksum = %s", n.Checksum)
	}
	if cs, _ := ix.DB().GetChecksum("b.md"); cs != "" {
		t.Error("b.md should be removed")
	}
}

func TestSync_NewTargetResolvesAfterResync(t *testing.T) {
	vaultDir, ix := testIndexer(t)
	writeVault(t, vaultDir, map[string]string{"a.md": "[[Later]] and ![[Daily 2024.01.15]]"})
	ctx := context.Background()
	_ = ix.Sync(ctx)
	if bl, _ := ix.DB().Backlinks("Later.md"); len(bl) != 0 {
		t.Fatalf("unresolved link indexed: %v", bl)
	}

	// a.md is unchanged; the new files alone must bring its links in, as
	// they would after a restart.
	writeVault(t, vaultDir, map[string]string{
		"notes/Later.md":      "# Later",
		"Daily 2024.01.15.md": "# Day",
	})
	if err := ix.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	if bl, _ := ix.DB().Backlinks("notes/Later.md"); !slices.Equal(bl, []string{"a.md"}) {
		t.Errorf("backlinks = %v", bl)
	}
	if bl, _ := ix.DB().Backlinks("Daily 2024.01.15.md"); !slices.Equal(bl, []string{"a.md"}) {
		t.Errorf("dotted note backlinks = %v", bl)
	}
}

func TestRelink_CreatedTarget(t *testing.T) {
	vaultDir, ix := testIndexer(t)
	ctx := context.Background()
	writeVault(t, vaultDir, map[string]string{"a.md": "see [[b]]", "c.md": "see [[other]]"})
	_ = ix.Sync(ctx)

	writeVault(t, vaultDir, map[string]string{"b.md": "# B"})
	ix.Files().Invalidate()
	data, _ := os.ReadFile(filepath.Join(vaultDir, "b.md"))
	if err := ix.IndexFile(ctx, "b.md", data); err != nil {
		t.Fatal(err)
	}

	got := ix.Relink(ctx, "b.md")
	if !slices.Equal(got, []string{"a.md"}) {
		t.Errorf("relinked = %v, want [a.md]", got)
	}
	if bl, _ := ix.DB().Backlinks("b.md"); !slices.Equal(bl, []string{"a.md"}) {
		t.Errorf("backlinks = %v", bl)
	}
	// Nothing is waiting on b any more.
	if got := ix.Relink(ctx, "b.md"); len(got) != 0 {
		t.Errorf("second relink = %v", got)
	}
}

func TestRelink_RemovedTarget(t *testing.T) {
	vaultDir, ix := testIndexer(t)
	ctx := context.Background()
	writeVault(t, vaultDir, map[string]string{"a.md": "see [[b]]", "b.md": "# B"})
	_ = ix.Sync(ctx)
	if bl, _ := ix.DB().Backlinks("b.md"); len(bl) != 1 {
		t.Fatalf("backlinks before delete = %v", bl)
	}

	_ = os.Remove(filepath.Join(vaultDir, "b.md"))
	ix.Files().Invalidate()
	_ = ix.Remove("b.md")
	if got := ix.Relink(ctx, "b.md"); !slices.Equal(got, []string{"a.md"}) {
		t.Errorf("relinked = %v", got)
	}
	if bl, _ := ix.DB().Backlinks("b.md"); len(bl) != 0 {
		t.Errorf("stale backlinks = %v", bl)
	}

	// Bringing the file back restores the edge.
	writeVault(t, vaultDir, map[string]string{"b.md": "# B"})
	_ = ix.Sync(ctx)
	if bl, _ := ix.DB().Backlinks("b.md"); !slices.Equal(bl, []string{"a.md"}) {
		t.Errorf("backlinks after restore = %v", bl)
	}
}

func TestRelink_Asset(t *testing.T) {
	vaultDir, ix := testIndexer(t)
	ctx := context.Background()
	writeVault(t, vaultDir, map[string]string{"trip.md": "![[route.gpx]] ![[notes.pdf]]"})
	_ = ix.Sync(ctx)

	writeVault(t, vaultDir, map[string]string{"docs/notes.pdf": "%PDF"})
	ix.Files().Invalidate()
	if got := ix.Relink(ctx, "/docs/notes.pdf"); !slices.Equal(got, []string{"trip.md"}) {
		t.Errorf("relinked = %v", got)
	}
	if bl, _ := ix.DB().Backlinks("docs/notes.pdf"); !slices.Equal(bl, []string{"trip.md"}) {
		t.Errorf("embed backlinks = %v", bl)
	}
}

func TestSync_Cancelled(t *testing.T) {
	vaultDir, ix := testIndexer(t)
	writeVault(t, vaultDir, map[string]string{"a.md": "x", "b.md": "y"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := ix.Sync(ctx); err == nil {
		t.Error("Sync with cancelled context should fail")
	}
}

func TestNoteLinks(t *testing.T) {
	got := noteLinks("Trips/a.md", []models.Link{
		{Target: "/Trips/b.md", Type: render.LinkTypeWiki},
		{Target: "/maps/t.gpx", Type: render.LinkTypeEmbed},
		{Target: "c.md#part", Type: render.LinkTypeMarkdown},
		{Target: "../My%20Note.md", Type: render.LinkTypeMarkdown},
		{Target: "https://example.com/x.md", Type: render.LinkTypeMarkdown},
		{Target: "#local", Type: render.LinkTypeMarkdown},
		{Target: "mailto:a@b.c", Type: render.LinkTypeMarkdown},
	})
	want := []string{"Trips/b.md", "maps/t.gpx", "Trips/c.md", "My Note.md"}
	var targets []string
	for _, l := range got {
		targets = append(targets, l.Target)
	}
	if !slices.Equal(targets, want) {
		t.Errorf("targets = %v, want %v", targets, want)
	}
}
