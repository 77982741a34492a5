// Cuecore - Live-Show Cueing Collaboration and Library Server
// Copyright 2026 Stagelab Cooperative
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stagelab/cuecore

// Package config loads the server configuration with a fixed precedence:
// built-in defaults, then an optional YAML file, then CUECORE_* environment
// variables. The result is immutable after Load and safe for concurrent
// reads.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where a config file is searched, first hit wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/cuecore/config.yaml",
	"/etc/cuecore/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "CUECORE_CONFIG"

// envPrefix namespaces every configuration environment variable.
const envPrefix = "CUECORE_"

// Config is the whole server configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Library  LibraryConfig  `koanf:"library"`
	Engine   EngineConfig   `koanf:"engine"`
	Logging  LoggingConfig  `koanf:"logging"`
	Mappings map[string]any `koanf:"mappings"`
}

// ServerConfig holds the WebSocket/HTTP listener settings.
type ServerConfig struct {
	Host string `koanf:"host" validate:"required"`
	Port int    `koanf:"port" validate:"min=1,max=65535"`
	// MetricsPort exposes /metrics and /healthz separately from the
	// WebSocket listener. 0 disables the endpoint.
	MetricsPort int `koanf:"metrics_port" validate:"min=0,max=65535"`
	// DispatchersPerSession is the number of concurrent action workers
	// per editor connection.
	DispatchersPerSession int `koanf:"dispatchers_per_session" validate:"min=1"`
}

// LibraryConfig holds the on-disk library locations.
type LibraryConfig struct {
	Path string `koanf:"path" validate:"required"`
	// TmpUploadPath receives in-flight upload temp files.
	TmpUploadPath string `koanf:"tmp_upload_path" validate:"required"`
	// DatabasePath defaults to <library>/index.db when empty.
	DatabasePath string `koanf:"database_path"`
}

// EngineConfig tunes the engine RPC bridge.
type EngineConfig struct {
	CallTimeout  time.Duration `koanf:"call_timeout" validate:"min=1ms"`
	PollInterval time.Duration `koanf:"poll_interval" validate:"min=1ms"`
	ResponseTTL  time.Duration `koanf:"response_ttl" validate:"min=1ms"`
}

// LoggingConfig selects log level and output format.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                  "0.0.0.0",
			Port:                  9092,
			MetricsPort:           9093,
			DispatchersPerSession: 3,
		},
		Library: LibraryConfig{
			Path:          "/data/cuecore/library",
			TmpUploadPath: "/data/cuecore/tmp",
			DatabasePath:  "",
		},
		Engine: EngineConfig{
			CallTimeout:  10 * time.Second,
			PollInterval: 250 * time.Millisecond,
			ResponseTTL:  30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Mappings: map[string]any{},
	}
}

// Load builds the configuration: defaults, then the first config file
// found, then environment variables.
func Load() (*Config, error) {
	return load(findConfigFile())
}

// LoadFile builds the configuration from an explicit file path.
func LoadFile(path string) (*Config, error) {
	return load(path)
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configPath, err)
		}
	}

	// CUECORE_SERVER_PORT -> server.port, CUECORE_LIBRARY_TMP_UPLOAD_PATH
	// -> library.tmp_upload_path: the first underscore separates the
	// section from the key.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.Replace(s, "_", ".", 1)
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if cfg.Library.DatabasePath == "" {
		cfg.Library.DatabasePath = filepath.Join(cfg.Library.Path, "index.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration invariants.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
