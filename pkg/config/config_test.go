package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// yamlSafePath converts a filesystem path to a YAML-safe representation.
// On Windows, backslashes in double-quoted YAML strings are interpreted as
// escape sequences (e.g. \U -> Unicode escape), causing parse errors.
func yamlSafePath(p string) string {
	return filepath.ToSlash(p)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_File(t *testing.T) {
	fixture := filepath.Join(t.TempDir(), "fixture.yaml")
	path := writeConfig(t, `
logging:
  level: "debug"

scan:
  backend: fixture
  fixture_path: "`+yamlSafePath(fixture)+`"
  call_timeout: 5s
  page_size: 4KiB

export:
  path: s3://audit/shares.csv
  legacy_quoting: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected level normalized to 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Scan.Backend != "fixture" {
		t.Errorf("Expected backend 'fixture', got %q", cfg.Scan.Backend)
	}
	if cfg.Scan.CallTimeout != 5*time.Second {
		t.Errorf("Expected call timeout 5s, got %v", cfg.Scan.CallTimeout)
	}
	if cfg.Scan.PageSize != 4096 {
		t.Errorf("Expected page size 4096, got %d", cfg.Scan.PageSize)
	}
	if !cfg.Export.LegacyQuoting {
		t.Error("Expected legacy quoting to be enabled")
	}

	// Defaults fill the rest.
	if cfg.Scan.Port != 445 {
		t.Errorf("Expected default SMB port 445, got %d", cfg.Scan.Port)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.ShutdownTimeout)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("Expected default API port 8080, got %d", cfg.API.Port)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Expected defaults when the file is missing, got %v", err)
	}
	if cfg.Scan.Backend != "auto" {
		t.Errorf("Expected default backend 'auto', got %q", cfg.Scan.Backend)
	}
	if cfg.Export.Path != "shares.csv" {
		t.Errorf("Expected default export path, got %q", cfg.Export.Path)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: [unclosed\n")

	if _, err := Load(path); err == nil {
		t.Fatal("Expected error for invalid YAML")
	}
}

func TestLoad_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[logging]
level = "WARN"
format = "json"

[api]
port = 8181
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load TOML config: %v", err)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format 'json', got %q", cfg.Logging.Format)
	}
	if cfg.API.Port != 8181 {
		t.Errorf("Expected port 8181, got %d", cfg.API.Port)
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("SHARESCAN_LOGGING_LEVEL", "ERROR")
	t.Setenv("SHARESCAN_SCAN_BACKEND", "smb2")
	t.Setenv("SHARESCAN_SCAN_USERNAME", "auditor")
	t.Setenv("SHARESCAN_API_PORT", "9191")

	path := writeConfig(t, `
logging:
  level: "INFO"
api:
  port: 8080
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected level 'ERROR' from env var, got %q", cfg.Logging.Level)
	}
	if cfg.Scan.Backend != "smb2" {
		t.Errorf("Expected backend 'smb2' from env var, got %q", cfg.Scan.Backend)
	}
	if cfg.Scan.Username != "auditor" {
		t.Errorf("Expected username from env var, got %q", cfg.Scan.Username)
	}
	if cfg.API.Port != 9191 {
		t.Errorf("Expected port 9191 from env var, got %d", cfg.API.Port)
	}
}

func TestGetConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	dir := GetConfigDir()
	if filepath.Base(dir) != "sharescan" {
		t.Errorf("Expected directory name 'sharescan', got %q", filepath.Base(dir))
	}
	if GetDefaultConfigPath() != filepath.Join(dir, "config.yaml") {
		t.Errorf("Unexpected default config path %q", GetDefaultConfigPath())
	}
	if DefaultConfigExists() {
		t.Error("Expected no config in a fresh directory")
	}
}

func TestInitConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	path, err := InitConfig(false)
	if err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}
	for _, section := range []string{"# sharescan configuration file", "logging:", "scan:", "export:", "api:"} {
		if !strings.Contains(string(content), section) {
			t.Errorf("Config file missing section: %s", section)
		}
	}

	if _, err := InitConfig(false); !errors.Is(err, ErrConfigExists) {
		t.Errorf("Expected ErrConfigExists, got %v", err)
	}
	if _, err := InitConfig(true); err != nil {
		t.Errorf("Expected forced init to succeed, got %v", err)
	}

	if _, err := Load(path); err != nil {
		t.Errorf("Generated config is not loadable: %v", err)
	}
}

func TestMarshalMasksSecrets(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Scan.Password = "hunter2"
	cfg.API.JWT.Secret = strings.Repeat("s", 32)

	data, err := Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if strings.Contains(string(data), "hunter2") || strings.Contains(string(data), cfg.API.JWT.Secret) {
		t.Error("Expected secrets to be masked")
	}
	if cfg.Scan.Password != "hunter2" {
		t.Error("Marshal must not modify its argument")
	}
}
