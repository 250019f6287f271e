package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.User.Name != "Quarry User" || cfg.Core.DefaultBranch != "main" {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.User.Name = "Ada"
	cfg.User.Email = "ada@example.com"

	if err := Save(dir, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.User.Name != "Ada" || loaded.User.Email != "ada@example.com" {
		t.Errorf("loaded = %+v", loaded)
	}
	if loaded.Ident() != "Ada <ada@example.com>" {
		t.Errorf("Ident = %q", loaded.Ident())
	}
}

func TestLoadMergesPartialConfig(t *testing.T) {
	dir := t.TempDir()
	partial := []byte(`{"user": {"name": "Only Name"}}`)
	if err := os.WriteFile(filepath.Join(dir, "config.json"), partial, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.User.Name != "Only Name" {
		t.Errorf("Name = %q", cfg.User.Name)
	}
	// Unspecified fields keep their defaults.
	if cfg.User.Email != "user@quarry.local" || cfg.Core.DefaultBranch != "main" {
		t.Errorf("merged = %+v", cfg)
	}
}

func TestLoadRejectsMalformedConfig(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte("{nope"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(dir); err == nil {
		t.Error("malformed JSON should fail loudly, not silently default")
	}
}
