package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("PSB_WORKERS", "")
	t.Setenv("PSB_THEME", "")
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Encoding != "mac-roman" {
		t.Errorf("Encoding = %q, want mac-roman", cfg.Encoding)
	}
	if cfg.Timeout.Duration != 2*time.Minute {
		t.Errorf("Timeout = %v, want 2m", cfg.Timeout.Duration)
	}
	nx, ny := cfg.GridSize()
	if nx != 50 || ny != 50 {
		t.Errorf("GridSize = %d,%d want 50,50", nx, ny)
	}
	if cfg.Workers() < 1 {
		t.Errorf("Workers = %d, want >= 1", cfg.Workers())
	}
}

func TestLoadWorkdirOverride(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	content := `
encoding = "utf-8"
timeout = "30s"

[grid]
nx = 80
workers = 3
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Encoding != "utf-8" {
		t.Errorf("Encoding = %q", cfg.Encoding)
	}
	if cfg.Timeout.Duration != 30*time.Second {
		t.Errorf("Timeout = %v", cfg.Timeout.Duration)
	}
	nx, ny := cfg.GridSize()
	if nx != 80 || ny != 50 {
		t.Errorf("GridSize = %d,%d want 80,50", nx, ny)
	}
	if cfg.Workers() != 3 {
		t.Errorf("Workers = %d, want 3", cfg.Workers())
	}
	if len(cfg.Source) != 1 {
		t.Errorf("Source = %v", cfg.Source)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	isolate(t)
	t.Setenv("PSB_WORKERS", "7")
	t.Setenv("PSB_THEME", "dark")

	cfg, err := Load(t.TempDir(), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Workers() != 7 {
		t.Errorf("Workers = %d, want 7", cfg.Workers())
	}
	if cfg.Theme != "dark" {
		t.Errorf("Theme = %q, want dark", cfg.Theme)
	}
}

func TestLoadExplicitMissing(t *testing.T) {
	isolate(t)
	_, err := Load("", filepath.Join(t.TempDir(), "nope.toml"))
	if err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestLoadMalformed(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("timeout = \"soon\""), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(dir, "")
	if err == nil {
		t.Fatal("expected error for bad duration")
	}
	if !strings.Contains(err.Error(), FileName) {
		t.Errorf("error should name the file: %v", err)
	}
}
