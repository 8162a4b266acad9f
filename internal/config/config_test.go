// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, duration parsing, and defaults

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  base_url: "https://agents.example.com"
  token: "secret-token"

database:
  path: "./test.db"

chat:
  streaming: false
  default_agent: "researcher"
  exchange_timeout: "2m"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.BaseURL != "https://agents.example.com" {
		t.Errorf("BaseURL = %q", cfg.Server.BaseURL)
	}
	if cfg.Server.Token != "secret-token" {
		t.Errorf("Token = %q", cfg.Server.Token)
	}
	if cfg.Database.Path != "./test.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Chat.Streaming {
		t.Error("Streaming should be false")
	}
	if cfg.Chat.DefaultAgent != "researcher" {
		t.Errorf("DefaultAgent = %q", cfg.Chat.DefaultAgent)
	}
	if cfg.Chat.ExchangeTimeout != 2*time.Minute {
		t.Errorf("ExchangeTimeout = %v", cfg.Chat.ExchangeTimeout)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_CHAT_TOKEN", "tok-from-env")

	path := writeConfig(t, `
server:
  base_url: "http://localhost:9000"
  token: "${TEST_CHAT_TOKEN}"
database:
  path: "./test.db"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Token != "tok-from-env" {
		t.Errorf("Token = %q, want tok-from-env", cfg.Server.Token)
	}
}

func TestLoad_UnsetEnvVarExpandsEmpty(t *testing.T) {
	path := writeConfig(t, `
server:
  base_url: "http://localhost:9000"
  token: "${DEFINITELY_NOT_SET_VAR_12345}"
database:
  path: "./test.db"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Token != "" {
		t.Errorf("Token = %q, want empty", cfg.Server.Token)
	}
}

func TestLoad_DefaultsApply(t *testing.T) {
	path := writeConfig(t, `
server:
  base_url: "http://localhost:9000"
database:
  path: "./test.db"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.Chat.Streaming {
		t.Error("Streaming should default to true")
	}
	if cfg.Chat.ExchangeTimeout != 5*time.Minute {
		t.Errorf("ExchangeTimeout = %v, want 5m", cfg.Chat.ExchangeTimeout)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, `
server:
  base_url: "http://localhost:9000"
database:
  path: "./test.db"
chat:
  exchange_timeout: "not-a-duration"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "exchange_timeout") {
		t.Errorf("error should name the field, got: %v", err)
	}
}

func TestLoad_MissingBaseURL(t *testing.T) {
	path := writeConfig(t, `
server:
  base_url: ""
database:
  path: "./test.db"
`)

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "base_url") {
		t.Errorf("expected base_url validation error, got: %v", err)
	}
}

func TestLoad_InvalidLogFormat(t *testing.T) {
	path := writeConfig(t, `
server:
  base_url: "http://localhost:9000"
database:
  path: "./test.db"
logging:
  format: "xml"
`)

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "logging.format") {
		t.Errorf("expected logging.format validation error, got: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadDefault_NoFileReturnsDefaults(t *testing.T) {
	t.Setenv("COVEN_CHAT_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault failed: %v", err)
	}
	if cfg.Server.BaseURL != "http://localhost:8080" {
		t.Errorf("BaseURL = %q", cfg.Server.BaseURL)
	}
}

func TestLoadDefault_ExplicitPathWins(t *testing.T) {
	path := writeConfig(t, `
server:
  base_url: "http://explicit:1234"
database:
  path: "./test.db"
`)
	t.Setenv("COVEN_CHAT_CONFIG", path)

	cfg, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault failed: %v", err)
	}
	if cfg.Server.BaseURL != "http://explicit:1234" {
		t.Errorf("BaseURL = %q", cfg.Server.BaseURL)
	}
}

func TestDefaultPath_RespectsXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	want := filepath.Join(dir, "coven-chat", "config.yaml")
	if got := DefaultPath(); got != want {
		t.Errorf("DefaultPath() = %q, want %q", got, want)
	}
}
