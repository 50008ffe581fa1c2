package config

import (
	"strings"
	"testing"
)

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "INVALID"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("Expected 'oneof' validation error, got: %v", err)
	}
}

func TestValidate_InvalidBackend(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Scan.Backend = "ftp"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for unknown backend")
	}
}

func TestValidate_FixtureRequiresPath(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Scan.Backend = "fixture"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for fixture backend without path")
	}
	if !strings.Contains(err.Error(), "FixturePath") {
		t.Errorf("Expected error about FixturePath, got: %v", err)
	}

	cfg.Scan.FixturePath = "fixture.yaml"
	if err := Validate(cfg); err != nil {
		t.Errorf("Expected valid config, got: %v", err)
	}
}

func TestValidate_InvalidAPIPort(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.API.Port = 70000

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for port out of range")
	}
	if !strings.Contains(err.Error(), "max") {
		t.Errorf("Expected 'max' validation error, got: %v", err)
	}
}

func TestValidate_ShortJWTSecret(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.API.JWT.Secret = "short"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for a short JWT secret")
	}
}

func TestValidate_TelemetrySampleRate(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Telemetry.SampleRate = 1.5

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for sample rate > 1")
	}
}

func TestValidate_ReportsEveryViolation(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Format = "xml"
	cfg.Scan.Backend = "ftp"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation errors")
	}
	if n := len(strings.Split(err.Error(), "\n")); n != 2 {
		t.Errorf("Expected 2 violations, got %d: %v", n, err)
	}
}
