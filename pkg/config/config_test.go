package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Port  int    `yaml:"port"`
	Debug bool   `yaml:"debug"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_ExpandsEnvAndKeepsDefaults(t *testing.T) {
	t.Setenv("SAMPLE_PORT", "9090")
	p := writeFile(t, "port: ${SAMPLE_PORT}\n")

	cfg := sample{Name: "default", Port: 1}
	if err := Load(p, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9090 || cfg.Name != "default" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_Validates(t *testing.T) {
	p := writeFile(t, "port: 0\n")
	cfg := sample{Port: 1}
	err := Load(p, &cfg)
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	p := writeFile(t, "port: [\n")
	if err := Load(p, &sample{}); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadWithDefaults_MissingFile(t *testing.T) {
	cfg := sample{Port: 8080}
	if err := LoadWithDefaults(filepath.Join(t.TempDir(), "nope.yaml"), &cfg); err != nil {
		t.Fatalf("missing file should keep defaults: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("port = %d", cfg.Port)
	}

	if err := LoadWithDefaults(filepath.Join(t.TempDir(), "nope.yaml"), &sample{}); err == nil {
		t.Error("invalid defaults should still fail validation")
	}
}

func TestLoadWithDefaults_ExistingFile(t *testing.T) {
	p := writeFile(t, "debug: true\nport: 7\n")
	cfg := sample{Port: 8080}
	if err := LoadWithDefaults(p, &cfg); err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug || cfg.Port != 7 {
		t.Errorf("cfg = %+v", cfg)
	}
}
