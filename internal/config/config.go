package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ConfigVersion is written into new config files.
const ConfigVersion = "1"

// Config represents the flat runvault configuration
type Config struct {
	Version          string   `json:"version"`
	StateRoot        string   `json:"state_root"`                  // run store root
	AllowedRoots     []string `json:"allowed_roots,omitempty"`     // extra roots run dirs may resolve under
	DefaultCandidate string   `json:"default_candidate,omitempty"` // candidate used when none is given
}

// LoadConfig reads .runvault/config.json from the specified directory.
// Resolution order: cwd only (no home fallback).
// Returns error if no config found - caller should handle accordingly.
func LoadConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, ".runvault", "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}

// SaveConfig writes config.json to directory
func SaveConfig(dir string, cfg *Config) error {
	cfgDir := filepath.Join(dir, ".runvault")
	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		return fmt.Errorf("failed to create .runvault dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	path := filepath.Join(cfgDir, "config.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// DefaultStateRoot returns the state root used when no config names one.
func DefaultStateRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".runvault", "state"), nil
}

// Resolve loads the config from dir, falling back to defaults when no config
// file exists. Environment variable RUNVAULT_STATE_ROOT overrides both.
func Resolve(dir string) (*Config, error) {
	cfg, err := LoadConfig(dir)
	if err != nil {
		root, derr := DefaultStateRoot()
		if derr != nil {
			return nil, derr
		}
		cfg = &Config{Version: ConfigVersion, StateRoot: root}
	}
	if env := os.Getenv("RUNVAULT_STATE_ROOT"); env != "" {
		cfg.StateRoot = env
	}
	if cfg.StateRoot == "" {
		return nil, fmt.Errorf("config has no state_root")
	}
	return cfg, nil
}
