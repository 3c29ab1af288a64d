package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/vaultview/internal/models"
)

func TestRenderFile(t *testing.T) {
	vault := t.TempDir()
	files := map[string]string{
		"Trips/Visited-Places.md": "# Visited\n\nNext: [[Plans/夏之北海道]] #travel\n\n```mermaid\ngraph TD; A-->B\n```\n",
		"Trips/Plans/夏之北海道.md":    "# Plan\n",
	}
	for rel, content := range files {
		p := filepath.Join(vault, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	cfg := NewDefaultConfig()
	cfg.Vault.Path = vault

	var out, logs bytes.Buffer
	err := RenderFile(context.Background(), "/Trips/Visited-Places.md", &out, WithConfig(cfg), WithLogOutput(&logs))
	if err != nil {
		t.Fatalf("RenderFile: %v", err)
	}

	var got models.Rendered
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if got.Title != "Visited" {
		t.Errorf("title = %q", got.Title)
	}
	if !strings.Contains(got.HTML, `data-href="/Trips/Plans/夏之北海道.md"`) {
		t.Errorf("link not resolved: %s", got.HTML)
	}
	if len(got.Placeholders) != 1 || got.Placeholders[0].Kind != models.PlaceholderMermaid {
		t.Errorf("placeholders = %+v", got.Placeholders)
	}
	if strings.Contains(out.String(), `\u003c`) {
		t.Error("HTML should not be escaped in the JSON output")
	}
}

func TestRenderFile_Missing(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Vault.Path = t.TempDir()
	var out bytes.Buffer
	if err := RenderFile(context.Background(), "nope.md", &out, WithConfig(cfg), WithLogOutput(&out)); err == nil {
		t.Fatal("expected error for missing note")
	}
}

func TestRun_RequiresConfig(t *testing.T) {
	if err := Run(context.Background()); err == nil {
		t.Fatal("Run without config should fail")
	}
}
