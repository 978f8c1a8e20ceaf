package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Homeserver != DefaultHomeserver {
		t.Errorf("Homeserver = %q, want %q", cfg.Homeserver, DefaultHomeserver)
	}
	if cfg.HasSession() {
		t.Error("HasSession() = true for fresh config")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	in := &Config{
		Homeserver:      "https://chat.example.org",
		UserID:          "alice",
		SessionToken:    "tok-123",
		DeviceID:        "dev-1",
		MentionKeywords: []string{"alice", "ops"},
		LastRead:        map[string]string{"general": "m42"},
	}
	if err := in.Save(path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	out, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if out.Homeserver != in.Homeserver || out.UserID != in.UserID || out.SessionToken != in.SessionToken {
		t.Errorf("Load() = %+v, want %+v", out, in)
	}
	if len(out.MentionKeywords) != 2 || out.MentionKeywords[1] != "ops" {
		t.Errorf("MentionKeywords = %v, want %v", out.MentionKeywords, in.MentionKeywords)
	}
	if out.LastRead["general"] != "m42" {
		t.Errorf("LastRead = %v, want %v", out.LastRead, in.LastRead)
	}
}

func TestSaveSetsOwnerOnlyPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := &Config{Homeserver: "https://chat.example.org", SessionToken: "secret"}
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("file mode = %o, want 600", perm)
	}
}

func TestClearSession(t *testing.T) {
	cfg := &Config{Homeserver: "https://chat.example.org", UserID: "alice", SessionToken: "tok"}
	if !cfg.HasSession() {
		t.Fatal("HasSession() = false before clear")
	}

	cfg.ClearSession()
	if cfg.HasSession() {
		t.Error("HasSession() = true after clear")
	}
	if cfg.Homeserver != "https://chat.example.org" {
		t.Errorf("Homeserver = %q, want preserved", cfg.Homeserver)
	}
}

func TestEnsureDeviceIDStable(t *testing.T) {
	cfg := &Config{}
	first := cfg.EnsureDeviceID()
	if first == "" {
		t.Fatal("EnsureDeviceID() returned empty id")
	}
	if second := cfg.EnsureDeviceID(); second != first {
		t.Errorf("EnsureDeviceID() = %q on second call, want %q", second, first)
	}
}
