package embed

import (
	"strings"
	"testing"

	"github.com/starford/vaultview/internal/models"
)

func TestExtract_MermaidAndTrackReference(t *testing.T) {
	in := "Intro\n\n```mermaid\ngraph TD\n  A-->B\n```\n\nMiddle\n\n```gpx:tracks/hike.gpx\n```\n\nEnd\n"
	var ids IDs
	out, ps := Extract(in, &ids)

	if len(ps) != 2 {
		t.Fatalf("placeholders = %d, want 2: %+v", len(ps), ps)
	}
	if ps[0].Kind != models.PlaceholderMermaid || ps[0].IsFileReference {
		t.Errorf("first = %+v, want literal mermaid", ps[0])
	}
	if ps[0].Code != "graph TD\n  A-->B" {
		t.Errorf("mermaid code = %q", ps[0].Code)
	}
	if ps[1].Kind != models.PlaceholderTrack || !ps[1].IsFileReference || ps[1].FileKind != models.FileKindGPX {
		t.Errorf("second = %+v, want gpx file reference", ps[1])
	}
	if ps[1].Code != "tracks/hike.gpx" {
		t.Errorf("track path = %q", ps[1].Code)
	}
	for _, p := range ps {
		if strings.Count(out, p.ID) != 1 {
			t.Errorf("token %s appears %d times in %q", p.ID, strings.Count(out, p.ID), out)
		}
	}
	if strings.Contains(out, "```") {
		t.Errorf("fences left in output: %q", out)
	}
	if !strings.Contains(out, "Middle") || !strings.Contains(out, "End") {
		t.Errorf("surrounding text lost: %q", out)
	}
}

func TestExtract_TokenIsOwnParagraph(t *testing.T) {
	var ids IDs
	out, ps := Extract("before\n```mermaid\nx\n```\nafter\n", &ids)
	if len(ps) != 1 {
		t.Fatalf("placeholders = %d, want 1", len(ps))
	}
	if !strings.Contains(out, "\n\n"+ps[0].ID+"\n\n") {
		t.Errorf("token not separated by blank lines: %q", out)
	}
}

func TestExtract_IndentedFenceKeepsIndent(t *testing.T) {
	var ids IDs
	out, ps := Extract("- item\n\n  ```gpx:t.gpx```\n- next\n", &ids)
	if len(ps) != 1 {
		t.Fatalf("placeholders = %d, want 1", len(ps))
	}
	if !strings.Contains(out, "\n  "+ps[0].ID+"\n") {
		t.Errorf("token lost the fence indentation: %q", out)
	}
}

func TestExtract_SingleLineReference(t *testing.T) {
	var ids IDs
	_, ps := Extract("```kml:maps/route.kml```\n", &ids)
	if len(ps) != 1 {
		t.Fatalf("placeholders = %d, want 1", len(ps))
	}
	if ps[0].FileKind != models.FileKindKML || ps[0].Code != "maps/route.kml" || !ps[0].IsFileReference {
		t.Errorf("got %+v", ps[0])
	}
}

func TestExtract_LiteralTrack(t *testing.T) {
	var ids IDs
	_, ps := Extract("~~~gpx\n<gpx><trk/></gpx>\n~~~\n", &ids)
	if len(ps) != 1 {
		t.Fatalf("placeholders = %d, want 1", len(ps))
	}
	if ps[0].IsFileReference || ps[0].Code != "<gpx><trk/></gpx>" || ps[0].FileKind != models.FileKindGPX {
		t.Errorf("got %+v", ps[0])
	}
	if ps[0].ID != "TRACK_PLACEHOLDER_0" {
		t.Errorf("id = %q", ps[0].ID)
	}
}

func TestExtract_OtherFencesUntouched(t *testing.T) {
	in := "````markdown\n```mermaid\ngraph\n```\n````\n"
	var ids IDs
	out, ps := Extract(in, &ids)
	if len(ps) != 0 {
		t.Fatalf("placeholders = %+v, want none", ps)
	}
	if out != in {
		t.Errorf("output changed:\n%q\nwant\n%q", out, in)
	}
}

func TestExtract_UnterminatedFence(t *testing.T) {
	in := "text\n```mermaid\ngraph TD\n"
	var ids IDs
	out, ps := Extract(in, &ids)
	if len(ps) != 0 {
		t.Fatalf("placeholders = %+v, want none", ps)
	}
	if out != in {
		t.Errorf("output = %q, want input unchanged", out)
	}
}

func TestExtract_EmptyTrackBodyIgnored(t *testing.T) {
	in := "```gpx\n```\n"
	var ids IDs
	out, ps := Extract(in, &ids)
	if len(ps) != 0 || out != in {
		t.Errorf("got %q %+v, want input unchanged", out, ps)
	}
}

func TestExtract_CountersPerKind(t *testing.T) {
	in := "```mermaid\na\n```\n\n```mermaid\nb\n```\n\n```gpx\nc\n```\n"
	var ids IDs
	_, ps := Extract(in, &ids)
	want := []string{"MERMAID_PLACEHOLDER_0", "MERMAID_PLACEHOLDER_1", "TRACK_PLACEHOLDER_0"}
	if len(ps) != len(want) {
		t.Fatalf("placeholders = %d, want %d", len(ps), len(want))
	}
	for i, w := range want {
		if ps[i].ID != w {
			t.Errorf("ps[%d].ID = %q, want %q", i, ps[i].ID, w)
		}
	}
}

func TestExtract_FreshIDsPerCall(t *testing.T) {
	in := "```mermaid\na\n```\n"
	var a, b IDs
	_, first := Extract(in, &a)
	_, second := Extract(in, &b)
	if first[0].ID != second[0].ID {
		t.Errorf("ids differ across independent calls: %q vs %q", first[0].ID, second[0].ID)
	}
}
