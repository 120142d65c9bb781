// Package config handles TOML-based configuration loading and validation.
// TOML is parsed as data only, no code execution is possible.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const appName = "scrapecast"

// DefaultUserAgent is sent when a provider does not set its own.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36"

// Config holds all application configuration.
type Config struct {
	Provider     string `toml:"provider"`
	Player       string `toml:"player"`
	SubsLanguage string `toml:"subs_language"`
	History      bool   `toml:"history"`
	DownloadDir  string `toml:"download_dir"`
	Debug        bool   `toml:"debug"`
	LogFormat    string `toml:"log_format"`

	UserAgent           string  `toml:"user_agent"`
	TimeoutSeconds      int     `toml:"timeout_seconds"`
	ProbeTimeoutSeconds int     `toml:"probe_timeout_seconds"`
	MaxDepth            int     `toml:"max_depth"`
	BatchSize           int     `toml:"batch_size"`
	RatePerSecond       float64 `toml:"rate_per_second"`
	RespectRobots       bool    `toml:"respect_robots"`

	StoreDriver   string `toml:"store_driver"`
	StorePath     string `toml:"store_path"`
	RedisAddr     string `toml:"redis_addr"`
	HostRulesFile string `toml:"host_rules_file"`

	InvidiousInstances []string `toml:"invidious_instances"`
	Listen             string   `toml:"listen"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Provider:            "invidious",
		Player:              "mpv",
		SubsLanguage:        "spanish",
		History:             true,
		DownloadDir:         "~/Videos/scrapecast",
		Debug:               false,
		LogFormat:           "console",
		UserAgent:           DefaultUserAgent,
		TimeoutSeconds:      30,
		ProbeTimeoutSeconds: 5,
		MaxDepth:            6,
		BatchSize:           3,
		RatePerSecond:       4,
		RespectRobots:       false,
		StoreDriver:         "sqlite",
		RedisAddr:           "localhost:6379",
		InvidiousInstances: []string{
			"https://inv.nadeko.net",
			"https://inv.vern.cc",
			"https://invidious.jing.rocks",
		},
		Listen: "127.0.0.1:8080",
	}
}

// configDir returns the XDG-compliant config directory.
func configDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".config", appName), nil
}

// dataDir returns the XDG-compliant data directory.
func dataDir() (string, error) {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, appName), nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config file and merges with defaults.
// If the config file doesn't exist, defaults are returned.
func Load() (*Config, error) {
	cfg := Default()

	path, err := ConfigPath()
	if err != nil {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks config values are within acceptable bounds.
func (c *Config) Validate() error {
	validPlayers := map[string]bool{
		"mpv": true, "vlc": true, "iina": true, "celluloid": true,
	}
	if !validPlayers[strings.ToLower(c.Player)] {
		return fmt.Errorf("unsupported player %q (valid: mpv, vlc, iina, celluloid)", c.Player)
	}

	if c.Provider == "" {
		return fmt.Errorf("provider cannot be empty")
	}

	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("unsupported log format %q (valid: console, json)", c.LogFormat)
	}

	switch c.StoreDriver {
	case "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("unsupported store driver %q (valid: sqlite, redis, memory)", c.StoreDriver)
	}
	if c.StoreDriver == "redis" && c.RedisAddr == "" {
		return fmt.Errorf("redis store requires redis_addr")
	}

	if c.TimeoutSeconds < 1 || c.TimeoutSeconds > 300 {
		return fmt.Errorf("timeout_seconds must be between 1 and 300, got %d", c.TimeoutSeconds)
	}
	if c.ProbeTimeoutSeconds < 1 || c.ProbeTimeoutSeconds > 60 {
		return fmt.Errorf("probe_timeout_seconds must be between 1 and 60, got %d", c.ProbeTimeoutSeconds)
	}
	if c.MaxDepth < 1 || c.MaxDepth > 16 {
		return fmt.Errorf("max_depth must be between 1 and 16, got %d", c.MaxDepth)
	}
	if c.BatchSize < 1 || c.BatchSize > 16 {
		return fmt.Errorf("batch_size must be between 1 and 16, got %d", c.BatchSize)
	}
	if c.RatePerSecond < 0 {
		return fmt.Errorf("rate_per_second cannot be negative")
	}

	if len(c.InvidiousInstances) == 0 {
		return fmt.Errorf("invidious_instances cannot be empty")
	}
	for _, inst := range c.InvidiousInstances {
		if !strings.HasPrefix(inst, "https://") && !strings.HasPrefix(inst, "http://") {
			return fmt.Errorf("invidious instance %q must be an http(s) URL", inst)
		}
	}

	return nil
}

// Timeout returns the per-request timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ProbeTimeout returns the mirror health probe timeout.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutSeconds) * time.Second
}

// ExpandDownloadDir resolves ~ in the download directory path.
func (c *Config) ExpandDownloadDir() (string, error) {
	return expandHome(c.DownloadDir)
}

// ResolveStorePath returns the SQLite database path, defaulting to the data dir.
func (c *Config) ResolveStorePath() (string, error) {
	if c.StorePath != "" {
		return expandHome(c.StorePath)
	}
	dir, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "store.db"), nil
}

func expandHome(dir string) (string, error) {
	if strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expanding home dir: %w", err)
		}
		dir = filepath.Join(home, dir[2:])
	}
	return filepath.Abs(dir)
}

// HistoryPath returns the path to the history file.
func HistoryPath() (string, error) {
	dir, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.tsv"), nil
}
