package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.WorkspaceRoot != "." {
		t.Errorf("expected default workspace root, got %q", cfg.WorkspaceRoot)
	}
	if cfg.AutoApprove {
		t.Error("auto approve should default to false")
	}
	if !cfg.ForceNonInteractive {
		t.Error("force non-interactive should default to true")
	}
	if cfg.ReactCompiler != "no" {
		t.Errorf("react compiler should default to no, got %q", cfg.ReactCompiler)
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"workspace_root": "/tmp/project", "shell_timeout_seconds": 45}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.WorkspaceRoot != "/tmp/project" {
		t.Errorf("workspace root not applied, got %q", cfg.WorkspaceRoot)
	}
	if cfg.ShellTimeoutSeconds != 45 {
		t.Errorf("shell timeout not applied, got %d", cfg.ShellTimeoutSeconds)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("unset fields should keep defaults, got log level %q", cfg.LogLevel)
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WERKBANK_AUTO_APPROVE", "1")
	t.Setenv("WERKBANK_SHELL_TIMEOUT_SECONDS", "120")
	t.Setenv("WERKBANK_SHELL_BACKGROUND_ON_TIMEOUT", "true")
	t.Setenv("WERKBANK_SHELL_REACT_COMPILER", "use")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.AutoApprove {
		t.Error("WERKBANK_AUTO_APPROVE=1 should enable auto approve")
	}
	if cfg.ShellTimeoutSeconds != 120 {
		t.Errorf("expected timeout 120, got %d", cfg.ShellTimeoutSeconds)
	}
	if !cfg.BackgroundOnTimeout {
		t.Error("background on timeout should be enabled")
	}
	if cfg.ReactCompiler != "use" {
		t.Errorf("react compiler should be use, got %q", cfg.ReactCompiler)
	}
}

func TestEnvOverridesIgnoreGarbage(t *testing.T) {
	t.Setenv("WERKBANK_SHELL_TIMEOUT_SECONDS", "soon")
	t.Setenv("WERKBANK_SHELL_REACT_COMPILER", "maybe")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ShellTimeoutSeconds != 0 {
		t.Errorf("unparsable timeout should keep default, got %d", cfg.ShellTimeoutSeconds)
	}
	if cfg.ReactCompiler != "no" {
		t.Errorf("invalid react compiler value should keep default, got %q", cfg.ReactCompiler)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := DefaultConfig()
	cfg.WorkspaceRoot = "/srv/work"
	cfg.AutoApprove = true
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.WorkspaceRoot != "/srv/work" {
		t.Errorf("workspace root lost in round trip, got %q", loaded.WorkspaceRoot)
	}
	if !loaded.AutoApprove {
		t.Error("auto approve lost in round trip")
	}
}
