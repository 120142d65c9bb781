package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Player != "mpv" {
		t.Errorf("default player = %q, want mpv", cfg.Player)
	}
	if cfg.MaxDepth != 6 {
		t.Errorf("default max depth = %d, want 6", cfg.MaxDepth)
	}
	if cfg.BatchSize != 3 {
		t.Errorf("default batch size = %d, want 3", cfg.BatchSize)
	}
	if cfg.ProbeTimeout() != 5*time.Second {
		t.Errorf("default probe timeout = %v, want 5s", cfg.ProbeTimeout())
	}
	if len(cfg.InvidiousInstances) != 3 || cfg.InvidiousInstances[0] != "https://inv.nadeko.net" {
		t.Errorf("unexpected default instances: %v", cfg.InvidiousInstances)
	}
	if !cfg.History {
		t.Error("default history should be true")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"invalid player", func(c *Config) { c.Player = "notepad" }, true},
		{"empty provider", func(c *Config) { c.Provider = "" }, true},
		{"invalid log format", func(c *Config) { c.LogFormat = "xml" }, true},
		{"invalid store", func(c *Config) { c.StoreDriver = "mongo" }, true},
		{"redis without addr", func(c *Config) { c.StoreDriver = "redis"; c.RedisAddr = "" }, true},
		{"zero depth", func(c *Config) { c.MaxDepth = 0 }, true},
		{"huge batch", func(c *Config) { c.BatchSize = 100 }, true},
		{"negative rate", func(c *Config) { c.RatePerSecond = -1 }, true},
		{"no instances", func(c *Config) { c.InvidiousInstances = nil }, true},
		{"bad instance", func(c *Config) { c.InvidiousInstances = []string{"ftp://x"} }, true},
		{"valid vlc", func(c *Config) { c.Player = "vlc" }, false},
		{"valid redis", func(c *Config) { c.StoreDriver = "redis" }, false},
		{"valid json logs", func(c *Config) { c.LogFormat = "json" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromTOML(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	appDir := filepath.Join(tmpDir, "scrapecast")
	if err := os.MkdirAll(appDir, 0755); err != nil {
		t.Fatal(err)
	}

	content := `
provider = "sololatino"
player = "vlc"
max_depth = 4
history = false
invidious_instances = ["https://yt.example.org"]
`
	if err := os.WriteFile(filepath.Join(appDir, "config.toml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Provider != "sololatino" {
		t.Errorf("provider = %q, want sololatino", cfg.Provider)
	}
	if cfg.Player != "vlc" {
		t.Errorf("player = %q, want vlc", cfg.Player)
	}
	if cfg.MaxDepth != 4 {
		t.Errorf("max_depth = %d, want 4", cfg.MaxDepth)
	}
	if cfg.History {
		t.Error("history should be false")
	}
	if len(cfg.InvidiousInstances) != 1 || cfg.InvidiousInstances[0] != "https://yt.example.org" {
		t.Errorf("instances = %v", cfg.InvidiousInstances)
	}
	// Keys absent from the file keep their defaults.
	if cfg.BatchSize != 3 {
		t.Errorf("batch_size = %d, want default 3", cfg.BatchSize)
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)
	appDir := filepath.Join(tmpDir, "scrapecast")
	os.MkdirAll(appDir, 0755)
	os.WriteFile(filepath.Join(appDir, "config.toml"), []byte(`max_depth = 99`), 0644)

	if _, err := Load(); err == nil {
		t.Fatal("expected validation error for max_depth = 99")
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() should not error on missing file: %v", err)
	}
	if cfg.Player != "mpv" {
		t.Errorf("missing file should return defaults, got player = %q", cfg.Player)
	}
}

func TestExpandDownloadDir(t *testing.T) {
	cfg := Default()
	cfg.DownloadDir = "/tmp/test-downloads"

	dir, err := cfg.ExpandDownloadDir()
	if err != nil {
		t.Fatalf("ExpandDownloadDir() error: %v", err)
	}
	if dir != "/tmp/test-downloads" {
		t.Errorf("got %q, want /tmp/test-downloads", dir)
	}
}

func TestResolveStorePath(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmpDir)

	cfg := Default()
	path, err := cfg.ResolveStorePath()
	if err != nil {
		t.Fatalf("ResolveStorePath() error: %v", err)
	}
	want := filepath.Join(tmpDir, "scrapecast", "store.db")
	if path != want {
		t.Errorf("got %q, want %q", path, want)
	}

	cfg.StorePath = "/tmp/custom.db"
	path, _ = cfg.ResolveStorePath()
	if path != "/tmp/custom.db" {
		t.Errorf("explicit store path = %q, want /tmp/custom.db", path)
	}
}
