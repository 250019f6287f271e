// Package config handles repository configuration: committer identity and
// the default branch name, stored as JSON inside the control directory.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents repository configuration.
type Config struct {
	User UserConfig `json:"user"`
	Core CoreConfig `json:"core"`
}

// UserConfig holds committer identity.
type UserConfig struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CoreConfig holds core repository settings.
type CoreConfig struct {
	DefaultBranch string `json:"default_branch"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		User: UserConfig{
			Name:  "Quarry User",
			Email: "user@quarry.local",
		},
		Core: CoreConfig{
			DefaultBranch: "main",
		},
	}
}

// Ident returns the "Name <email>" identity string used in commits.
func (c *Config) Ident() string {
	return fmt.Sprintf("%s <%s>", c.User.Name, c.User.Email)
}

func configPath(controlDir string) string {
	return filepath.Join(controlDir, "config.json")
}

// Load reads the config file from the control directory, falling back to
// defaults for anything missing or unreadable.
func Load(controlDir string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(configPath(controlDir))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	var stored Config
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	merge(cfg, &stored)
	return cfg, nil
}

// Save writes the config file into the control directory.
func Save(controlDir string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(configPath(controlDir), data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// merge overlays non-empty values from src onto dst.
func merge(dst, src *Config) {
	if src.User.Name != "" {
		dst.User.Name = src.User.Name
	}
	if src.User.Email != "" {
		dst.User.Email = src.User.Email
	}
	if src.Core.DefaultBranch != "" {
		dst.Core.DefaultBranch = src.Core.DefaultBranch
	}
}
