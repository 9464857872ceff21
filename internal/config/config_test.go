package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GFXSYNC_REMOTE_URL", "https://example.supabase.co")
	t.Setenv("GFXSYNC_REMOTE_KEY", "test-key")

	s, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if s.RemoteURL != "https://example.supabase.co" {
		t.Errorf("RemoteURL = %q", s.RemoteURL)
	}
	if s.DebounceSeconds != 2.0 {
		t.Errorf("DebounceSeconds = %v, want 2.0", s.DebounceSeconds)
	}
	if s.MaxRetries != 5 {
		t.Errorf("MaxRetries = %v, want 5", s.MaxRetries)
	}
	if s.QueueProcessInterval != 60 {
		t.Errorf("QueueProcessInterval = %v, want 60", s.QueueProcessInterval)
	}
	if s.HealthIntervalSeconds != 60 {
		t.Errorf("HealthIntervalSeconds = %v, want 60", s.HealthIntervalSeconds)
	}
}

func TestLoadMissingRequiredFields(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatal("expected error when remote_url/remote_key are unset")
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	content := "remote_url: https://file.example.co\nremote_key: filekey\nmax_retries: 3\nwatch_path: C:\\gfx\\output\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.RemoteURL != "https://file.example.co" {
		t.Errorf("RemoteURL = %q", s.RemoteURL)
	}
	if s.MaxRetries != 3 {
		t.Errorf("MaxRetries = %v, want 3", s.MaxRetries)
	}
	if s.WatchPath != "C:/gfx/output" {
		t.Errorf("WatchPath = %q, want forward-slash form", s.WatchPath)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	content := "remote_url: https://file.example.co\nremote_key: filekey\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("GFXSYNC_REMOTE_URL", "https://env.example.co")

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.RemoteURL != "https://env.example.co" {
		t.Errorf("RemoteURL = %q, want env var to win", s.RemoteURL)
	}
}
