package lmstudio

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	if cfg.Host != DefaultHost {
		t.Fatalf("expected default host %q, got %q", DefaultHost, cfg.Host)
	}
	if cfg.DefaultTTLSeconds == nil || *cfg.DefaultTTLSeconds != DefaultTTLSeconds {
		t.Fatalf("expected default ttl %d, got %v", DefaultTTLSeconds, cfg.DefaultTTLSeconds)
	}
}

func TestLoadConfigAppliesDefaultsForMissingFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lmstudio.yaml")
	if err := os.WriteFile(path, []byte("log_level: debug\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Host != DefaultHost {
		t.Fatalf("expected default host to fill in, got %q", cfg.Host)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected log_level to round-trip, got %q", cfg.LogLevel)
	}
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("LMSTUDIO_TEST_PASSKEY", "super-secret")
	dir := t.TempDir()
	path := filepath.Join(dir, "lmstudio.yaml")
	content := "client_passkey: ${LMSTUDIO_TEST_PASSKEY}\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ClientPasskey != "super-secret" {
		t.Fatalf("expected env var expansion, got %q", cfg.ClientPasskey)
	}
}

func TestLoadConfigRejectsBadLogLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lmstudio.yaml")
	if err := os.WriteFile(path, []byte("log_level: nonsense\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected an error for an invalid log_level")
	}
}

func TestFindConfigExplicitMissing(t *testing.T) {
	if _, err := FindConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for a missing explicit path")
	}
}

func TestFindConfigNoneFound(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	defer os.Chdir(wd)
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Setenv("HOME", dir)

	if _, err := FindConfig(""); err == nil {
		t.Fatal("expected an error when no config file exists anywhere")
	}
}
