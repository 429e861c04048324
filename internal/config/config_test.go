package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadMissingDefaultFileYieldsDefaults(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CacheTTLHours != 24 || cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.CacheDir == "" {
		t.Fatalf("cache dir must always resolve")
	}
	if cfg.CacheTTL() != 24*time.Hour {
		t.Fatalf("unexpected TTL: %v", cfg.CacheTTL())
	}
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("explicit path must fail when the file is absent")
	}
}

func TestLoadOverridesAndBackfills(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edk2nav.yaml")
	content := strings.Join([]string{
		"workspace_root: /fw/edk2",
		"cache_ttl_hours: 2",
		"log:",
		"  level: debug",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WorkspaceRoot != "/fw/edk2" || cfg.CacheTTL() != 2*time.Hour {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("unexpected log level: %+v", cfg.Log)
	}
	// Unset fields keep their defaults.
	if cfg.Log.Format != "text" || cfg.CacheDir == "" {
		t.Fatalf("expected backfilled defaults: %+v", cfg)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("workspace_root: [unclosed"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("malformed yaml must fail")
	}
}
