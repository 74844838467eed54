// Package config loads and persists the crawldesk configuration. The config
// lives in a project-local .crawldesk/ directory when one exists, otherwise
// in ~/.crawldesk/.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

// Config holds all crawldesk configuration.
type Config struct {
	// Backend connection
	BackendURL     string `json:"backend_url" validate:"required,url"`
	APIKey         string `json:"api_key,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds" validate:"gte=0,lte=600"`

	// Visuals: auto, light, dark
	Theme string `json:"theme" validate:"oneof=auto light dark"`

	// Write-command history database, relative paths resolve against the
	// config directory
	HistoryPath string `json:"history_path"`

	// External speech recognizer
	Speech SpeechConfig `json:"speech"`

	// Logging
	Logging LoggingConfig `json:"logging"`
}

// SpeechConfig configures the external speech-to-text command.
type SpeechConfig struct {
	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`
}

// LoggingConfig configures category file logging. The shape matches what the
// logging package reads directly from config.json.
type LoggingConfig struct {
	DebugMode  bool            `json:"debug_mode"`
	Categories map[string]bool `json:"categories,omitempty"`
	Level      string          `json:"level" validate:"omitempty,oneof=debug info warn error"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BackendURL:     "http://localhost:8000/api/v1",
		TimeoutSeconds: 120,
		Theme:          "auto",
		HistoryPath:    "history.db",
		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Dir returns the config directory: a project-local .crawldesk/ when present,
// ~/.crawldesk/ otherwise.
func Dir() (string, error) {
	if cwd, err := os.Getwd(); err == nil {
		local := filepath.Join(cwd, ".crawldesk")
		if info, err := os.Stat(local); err == nil && info.IsDir() {
			return local, nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".crawldesk"), nil
}

// Path returns the config file path inside dir.
func Path(dir string) string {
	return filepath.Join(dir, "config.json")
}

// Load reads and validates the config from dir. A missing file yields the
// defaults; a present but invalid file is an error, not a silent fallback.
func Load(dir string) (*Config, error) {
	data, err := os.ReadFile(Path(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to dir, creating the directory if needed.
func (c *Config) Save(dir string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(Path(dir), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks the struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ResolveHistoryPath resolves the history database path against dir when the
// configured path is relative.
func (c *Config) ResolveHistoryPath(dir string) string {
	if c.HistoryPath == "" {
		return filepath.Join(dir, "history.db")
	}
	if filepath.IsAbs(c.HistoryPath) {
		return c.HistoryPath
	}
	return filepath.Join(dir, c.HistoryPath)
}
