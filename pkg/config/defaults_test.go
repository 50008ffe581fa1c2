package config

import (
	"testing"
	"time"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Output != DefaultLogPath() {
		t.Errorf("Expected default log output %q, got %q", DefaultLogPath(), cfg.Logging.Output)
	}
	if cfg.Scan.Backend != "auto" {
		t.Errorf("Expected default backend 'auto', got %q", cfg.Scan.Backend)
	}
	if cfg.Scan.DialTimeout != 10*time.Second {
		t.Errorf("Expected default dial timeout 10s, got %v", cfg.Scan.DialTimeout)
	}
	if cfg.API.JWT.TokenDuration != 24*time.Hour {
		t.Errorf("Expected default token duration 24h, got %v", cfg.API.JWT.TokenDuration)
	}
	if cfg.Metrics.Port != 9090 {
		t.Errorf("Expected default metrics port 9090, got %d", cfg.Metrics.Port)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging:         LoggingConfig{Level: "warn", Format: "json", Output: "stderr"},
		Scan:            ScanConfig{Backend: "SMB2", Port: 1445},
		Export:          ExportConfig{Path: "/tmp/out.csv"},
		ShutdownTimeout: time.Minute,
	}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Output != "stderr" {
		t.Errorf("Expected output 'stderr', got %q", cfg.Logging.Output)
	}
	if cfg.Scan.Backend != "smb2" {
		t.Errorf("Expected backend normalized to 'smb2', got %q", cfg.Scan.Backend)
	}
	if cfg.Scan.Port != 1445 {
		t.Errorf("Expected port 1445, got %d", cfg.Scan.Port)
	}
	if cfg.Export.Path != "/tmp/out.csv" {
		t.Errorf("Expected export path preserved, got %q", cfg.Export.Path)
	}
	if cfg.ShutdownTimeout != time.Minute {
		t.Errorf("Expected shutdown timeout 1m, got %v", cfg.ShutdownTimeout)
	}
}

func TestGetDefaultConfig_IsValid(t *testing.T) {
	if err := Validate(GetDefaultConfig()); err != nil {
		t.Errorf("Default config should be valid, got: %v", err)
	}
}
