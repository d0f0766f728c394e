// Copyright (c) 2025-2026 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/mveldt/parley/internal/purpose"
	"github.com/mveldt/parley/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete parley configuration.
type Config struct {
	// Chat settings
	Chat ChatConfig `toml:"chat" json:"chat"`

	// Storage configuration
	Storage StorageConfig `toml:"storage" json:"storage"`

	// Autosave configuration
	Autosave AutosaveConfig `toml:"autosave" json:"autosave"`

	// Log configuration
	Log LogConfig `toml:"log" json:"log"`
}

// ChatConfig contains conversation defaults.
type ChatConfig struct {
	// Model is the chat model ID used for token accounting.
	// Empty disables token counting until a model is selected.
	Model string `toml:"model" json:"model"`
	// DefaultPurpose is the persona assigned to new conversations.
	DefaultPurpose string `toml:"default_purpose" json:"default_purpose"`
	// MaxConversations caps how many conversations the UI offers to create.
	MaxConversations int `toml:"max_conversations" json:"max_conversations"`
}

// StorageConfig contains persistence configuration.
type StorageConfig struct {
	// Backend selects the key-value store: "file" or "sqlite"
	Backend string `toml:"backend" json:"backend"`
	// DataDir is where snapshots live (empty = ~/.parley/data)
	DataDir string `toml:"data_dir" json:"data_dir"`
	// Key is the snapshot key (empty = app-chats)
	Key string `toml:"key" json:"key"`
}

// AutosaveConfig contains autosave tuning.
type AutosaveConfig struct {
	// Enabled controls whether autosave runs
	Enabled bool `toml:"enabled" json:"enabled"`
	// IntervalSecs is how often the dirty flag is checked
	IntervalSecs int `toml:"interval_secs" json:"interval_secs"`
	// MinGapSecs is the minimum spacing between two consecutive saves
	MinGapSecs int `toml:"min_gap_secs" json:"min_gap_secs"`
}

// LogConfig contains logging configuration.
type LogConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error"
	Level string `toml:"level" json:"level"`
	// Format is the output format: "text" or "json"
	Format string `toml:"format" json:"format"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Chat: ChatConfig{
			Model:            "",
			DefaultPurpose:   purpose.DefaultID,
			MaxConversations: 20,
		},
		Storage: StorageConfig{
			Backend: "file",
			DataDir: "",
			Key:     "app-chats",
		},
		Autosave: AutosaveConfig{
			Enabled:      true,
			IntervalSecs: 2,
			MinGapSecs:   1,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// AutosaveInterval returns the check interval as a duration.
func (c *Config) AutosaveInterval() time.Duration {
	return time.Duration(c.Autosave.IntervalSecs) * time.Second
}

// AutosaveMinGap returns the save spacing as a duration.
func (c *Config) AutosaveMinGap() time.Duration {
	return time.Duration(c.Autosave.MinGapSecs) * time.Second
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the parley configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".parley"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// DefaultDataDir returns the default snapshot directory.
func DefaultDataDir() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "data"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	cfg := Default()

	tomlPath, err := ConfigPathTOML()
	if err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			if err := LoadTOML(cfg, tomlPath); err != nil {
				return nil, fmt.Errorf("failed to load TOML config: %w", err)
			}
			return finish(cfg)
		}
	}

	jsonPath, err := ConfigPathJSON()
	if err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			if err := LoadJSON(cfg, jsonPath); err != nil {
				return nil, fmt.Errorf("failed to load JSON config: %w", err)
			}
			return finish(cfg)
		}
	}

	return finish(cfg)
}

// LoadFromPath loads configuration from a specific file path with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	return finish(cfg)
}

// finish applies env overrides, defaults, and validation in order.
func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML loads configuration from a TOML file.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON loads configuration from a JSON file.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
func SaveTOML(cfg *Config, path string) error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	fmt.Fprintln(file, "# parley configuration file")
	fmt.Fprintln(file, "# Generated by parley - edit with care")
	fmt.Fprintln(file, "")

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}

// SaveJSON saves the configuration to a JSON file.
// RELIABILITY: Atomic write with fsync prevents data loss on crash
func SaveJSON(cfg *Config, path string) error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.Chat.DefaultPurpose != "" && !purpose.IsValid(c.Chat.DefaultPurpose) {
		errs = append(errs, ValidationError{
			Field:   "chat.default_purpose",
			Message: fmt.Sprintf("unknown purpose '%s', must be one of: %s", c.Chat.DefaultPurpose, strings.Join(purpose.IDs(), ", ")),
		})
	}

	if c.Chat.MaxConversations < 1 {
		errs = append(errs, ValidationError{
			Field:   "chat.max_conversations",
			Message: fmt.Sprintf("must be at least 1, got %d", c.Chat.MaxConversations),
		})
	}

	validBackends := map[string]bool{"file": true, "sqlite": true}
	if !validBackends[strings.ToLower(c.Storage.Backend)] {
		errs = append(errs, ValidationError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend '%s', must be one of: file, sqlite", c.Storage.Backend),
		})
	}

	if c.Autosave.IntervalSecs < 1 {
		errs = append(errs, ValidationError{
			Field:   "autosave.interval_secs",
			Message: fmt.Sprintf("must be at least 1, got %d", c.Autosave.IntervalSecs),
		})
	}
	if c.Autosave.MinGapSecs < 1 {
		errs = append(errs, ValidationError{
			Field:   "autosave.min_gap_secs",
			Message: fmt.Sprintf("must be at least 1, got %d", c.Autosave.MinGapSecs),
		})
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level),
		})
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Log.Format)] {
		errs = append(errs, ValidationError{
			Field:   "log.format",
			Message: fmt.Sprintf("invalid format '%s', must be one of: text, json", c.Log.Format),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults sets default values for any missing or zero-value configuration fields.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Chat.DefaultPurpose == "" {
		c.Chat.DefaultPurpose = defaults.Chat.DefaultPurpose
	}
	if c.Chat.MaxConversations == 0 {
		c.Chat.MaxConversations = defaults.Chat.MaxConversations
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = defaults.Storage.Backend
	}
	if c.Storage.Key == "" {
		c.Storage.Key = defaults.Storage.Key
	}

	if c.Autosave.IntervalSecs == 0 {
		c.Autosave.IntervalSecs = defaults.Autosave.IntervalSecs
	}
	if c.Autosave.MinGapSecs == 0 {
		c.Autosave.MinGapSecs = defaults.Autosave.MinGapSecs
	}

	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - PARLEY_MODEL: overrides chat.model
//   - PARLEY_PURPOSE: overrides chat.default_purpose
//   - PARLEY_MAX_CONVERSATIONS: overrides chat.max_conversations
//   - PARLEY_STORAGE_BACKEND: overrides storage.backend
//   - PARLEY_DATA_DIR: overrides storage.data_dir
//   - PARLEY_AUTOSAVE: set to "0" or "false" to disable autosave
//   - PARLEY_LOG_LEVEL: overrides log.level
//   - PARLEY_LOG_FORMAT: overrides log.format
func (c *Config) ApplyEnvOverrides() {
	if model := os.Getenv("PARLEY_MODEL"); model != "" {
		c.Chat.Model = model
	}

	if p := os.Getenv("PARLEY_PURPOSE"); p != "" {
		c.Chat.DefaultPurpose = p
	}

	if max := os.Getenv("PARLEY_MAX_CONVERSATIONS"); max != "" {
		if n, err := strconv.Atoi(max); err == nil {
			c.Chat.MaxConversations = n
		}
	}

	if backend := os.Getenv("PARLEY_STORAGE_BACKEND"); backend != "" {
		c.Storage.Backend = backend
	}

	if dir := os.Getenv("PARLEY_DATA_DIR"); dir != "" {
		c.Storage.DataDir = dir
	}

	if autosave := os.Getenv("PARLEY_AUTOSAVE"); autosave != "" {
		c.Autosave.Enabled = !(autosave == "0" || strings.ToLower(autosave) == "false")
	}

	if level := os.Getenv("PARLEY_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}

	if format := os.Getenv("PARLEY_LOG_FORMAT"); format != "" {
		c.Log.Format = format
	}
}
