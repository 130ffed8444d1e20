package lmstudio

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order: an
// explicit path (caller-supplied) is checked first by FindConfig;
// otherwise ./lmstudio.yaml, ~/.config/lmstudio/config.yaml,
// /etc/lmstudio/config.yaml in that order.
func DefaultSearchPaths() []string {
	paths := []string{"lmstudio.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "lmstudio", "config.yaml"))
	}
	paths = append(paths, "/etc/lmstudio/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must
// exist. Otherwise searches DefaultSearchPaths and returns the first
// match, or an error if nothing was found. A missing config file is
// never required: NewClient works from Default() plus Options alone.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}
	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds the client's connection and default settings. Every
// field except LogLevel also has a corresponding functional Option, so
// a config file is a convenience layer, never a requirement (spec.md §6).
type Config struct {
	Host              string `yaml:"host"`
	DefaultTTLSeconds  *int64 `yaml:"default_ttl_seconds"`
	LogLevel          string `yaml:"log_level"`
	ClientIdentifier  string `yaml:"client_identifier"`
	ClientPasskey     string `yaml:"client_passkey"`
}

// DefaultHost is used when neither a config file nor WithHost
// supplies one (spec.md §6).
const DefaultHost = "127.0.0.1:1234"

// DefaultTTLSeconds is the default time-to-live for loaded models
// when the caller does not specify one (spec.md §6).
const DefaultTTLSeconds int64 = 3600

// Default returns a Config with Host and DefaultTTLSeconds set to
// their defaults; the other fields are left empty.
func Default() *Config {
	ttl := DefaultTTLSeconds
	return &Config{
		Host:              DefaultHost,
		DefaultTTLSeconds: &ttl,
	}
}

// LoadConfig reads, defaults, and validates a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.DefaultTTLSeconds == nil {
		ttl := DefaultTTLSeconds
		cfg.DefaultTTLSeconds = &ttl
	}
	if _, err := ParseLogLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}
