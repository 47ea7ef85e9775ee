// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// config is hearthd's YAML configuration file.
type config struct {
	// ServerName is this server's name, e.g. "example.org". Events
	// are signed and identifiers validated against it.
	ServerName string `yaml:"server_name"`

	// KeyDir holds the signing key files ("ed25519:<id>", base64
	// seed), as written by hearth-keygen.
	KeyDir string `yaml:"key_dir"`

	// Storage selects the backend.
	Storage storageConfig `yaml:"storage"`

	// LogLevel is debug, info, warn, or error. Default info.
	LogLevel string `yaml:"log_level"`
}

type storageConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `yaml:"backend"`

	// Path is the database file for the sqlite backend.
	Path string `yaml:"path"`
}

func loadConfig(path string) (*config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.ServerName == "" {
		return nil, fmt.Errorf("config %s: server_name is required", path)
	}
	if cfg.KeyDir == "" {
		return nil, fmt.Errorf("config %s: key_dir is required", path)
	}
	switch cfg.Storage.Backend {
	case "", "memory":
		cfg.Storage.Backend = "memory"
	case "sqlite":
		if cfg.Storage.Path == "" {
			return nil, fmt.Errorf("config %s: storage.path is required for sqlite", path)
		}
	default:
		return nil, fmt.Errorf("config %s: unknown storage backend %q", path, cfg.Storage.Backend)
	}
	return &cfg, nil
}

func (c *config) logLevel() (slog.Level, error) {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log_level %q", c.LogLevel)
}
