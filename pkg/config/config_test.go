package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("log defaults wrong: %+v", cfg.Log)
	}
	if cfg.Analysis.Mode != "auto" {
		t.Errorf("analysis.mode = %q, want auto", cfg.Analysis.Mode)
	}
	if cfg.Analysis.MinUsableLength != 50 {
		t.Errorf("analysis.min_usable_length = %d, want 50", cfg.Analysis.MinUsableLength)
	}
	if cfg.Local.BaseURL != "http://localhost:11434" {
		t.Errorf("local.base_url = %q", cfg.Local.BaseURL)
	}
	if cfg.Hosted.Token != "" {
		t.Errorf("hosted tier must be unconfigured by default, got token %q", cfg.Hosted.Token)
	}
	if cfg.Rules.CPU.High != 70 || cfg.Rules.CPU.Critical != 90 {
		t.Errorf("cpu band defaults wrong: %+v", cfg.Rules.CPU)
	}
	if cfg.Rules.Disk.Critical != 95 {
		t.Errorf("disk band defaults wrong: %+v", cfg.Rules.Disk)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
log:
  level: debug
  format: json
analysis:
  mode: rules
rules:
  cpu:
    low: 10
    high: 60
    critical: 85
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("file values not applied: %+v", cfg.Log)
	}
	if cfg.Analysis.Mode != "rules" {
		t.Errorf("analysis.mode = %q, want rules", cfg.Analysis.Mode)
	}
	if cfg.Rules.CPU.High != 60 {
		t.Errorf("rules.cpu.high = %v, want 60", cfg.Rules.CPU.High)
	}
	// Untouched sections keep their defaults.
	if cfg.Rules.Memory.Critical != 90 {
		t.Errorf("rules.memory.critical = %v, want default 90", cfg.Rules.Memory.Critical)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FLEETSENSE_HOSTED_TOKEN", "hf_test_token")
	t.Setenv("FLEETSENSE_LOG_LEVEL", "warn")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Hosted.Token != "hf_test_token" {
		t.Errorf("hosted.token = %q, want env value", cfg.Hosted.Token)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log.level = %q, want warn", cfg.Log.Level)
	}
}

func TestLoadEnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FLEETSENSE_LOG_LEVEL", "error")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("log.level = %q, env must win over file", cfg.Log.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}
