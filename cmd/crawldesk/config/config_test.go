package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BackendURL == "" || cfg.Theme != "auto" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.BackendURL = "https://crawler.example.com/api/v1"
	cfg.Theme = "dark"
	cfg.Logging.DebugMode = true
	if err := cfg.Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.BackendURL != cfg.BackendURL {
		t.Errorf("backend = %q", loaded.BackendURL)
	}
	if loaded.Theme != "dark" || !loaded.Logging.DebugMode {
		t.Errorf("round trip lost fields: %+v", loaded)
	}
}

func TestInvalidConfigRejected(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BackendURL = "not a url"
	if err := cfg.Validate(); err == nil {
		t.Error("invalid backend url passed validation")
	}

	cfg = DefaultConfig()
	cfg.Theme = "neon"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown theme passed validation")
	}
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(Path(dir), []byte(`{"backend_url": "nope"`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Error("malformed config file should be an error, not a silent fallback")
	}
}

func TestResolveHistoryPath(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()

	if got := cfg.ResolveHistoryPath(dir); got != filepath.Join(dir, "history.db") {
		t.Errorf("relative path = %q", got)
	}

	cfg.HistoryPath = "/var/lib/crawldesk/history.db"
	if got := cfg.ResolveHistoryPath(dir); got != "/var/lib/crawldesk/history.db" {
		t.Errorf("absolute path = %q", got)
	}
}
