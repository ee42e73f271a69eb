// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package vaultconfig loads the vaultctl CLI's own preferences: display
// and storage-location defaults. It never touches the vault's own
// master-key or encryption settings, which are not user-configurable.
package vaultconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the CLI's on-disk preference file, vaultctl.toml under Dir()
// ($XDG_CONFIG_HOME/vaultctl, or ~/.config/vaultctl when that is unset).
type Config struct {
	// Location selects "xdg" or "home" vault storage resolution, mirroring
	// vault.Options.Location. Empty means let the library decide.
	Location string `toml:"location"`
	// Path, if set, is an explicit absolute override for the vault
	// storage directory, taking precedence over Location.
	Path string `toml:"path"`
	// Color controls whether vaultctl emits ANSI color: "auto" (default),
	// "always", or "never".
	Color string `toml:"color"`
	// ConfirmDestroy requires an extra interactive confirmation before
	// vaultctl destroy proceeds.
	ConfirmDestroy bool `toml:"confirm_destroy"`
}

// Default returns the CLI's built-in preferences.
func Default() *Config {
	return &Config{
		Color:          "auto",
		ConfirmDestroy: true,
	}
}

// Dir returns the CLI's own preferences directory, independent of wherever
// the vault itself ends up storing its data.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("vaultconfig: resolving home directory: %w", err)
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "vaultctl"), nil
	}
	return filepath.Join(home, ".config", "vaultctl"), nil
}

// Path returns the path to vaultctl.toml.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "vaultctl.toml"), nil
}

// Load reads the preference file if present, falling back to Default
// when it doesn't exist.
func Load() (*Config, error) {
	cfg := Default()

	path, err := Path()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); statErr != nil {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("vaultconfig: decoding %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to the preference file, creating its directory if
// necessary.
func Save(cfg *Config) error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("vaultconfig: creating %s: %w", dir, err)
	}

	path, err := Path()
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("vaultconfig: creating %s: %w", path, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("vaultconfig: encoding %s: %w", path, err)
	}
	return nil
}
