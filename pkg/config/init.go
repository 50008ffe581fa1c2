package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrConfigExists is returned by InitConfigToPath when the file exists and
// force is not set.
var ErrConfigExists = errors.New("configuration file already exists")

const redacted = "********"

const configHeader = `# sharescan configuration file
#
# Every key can be overridden with an environment variable named
# SHARESCAN_<SECTION>_<KEY>, e.g. SHARESCAN_SCAN_BACKEND=fixture.
#
# scan.backend: auto | netapi | smb2 | fixture
# export.path:  a file path or s3://bucket/key

`

// InitConfig writes a default configuration to the default location and
// returns its path.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	return path, InitConfigToPath(path, force)
}

// InitConfigToPath writes a default configuration to path.
func InitConfigToPath(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%w: %s (use --force to overwrite)", ErrConfigExists, path)
	}

	if err := SaveConfig(GetDefaultConfig(), path); err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read generated config: %w", err)
	}
	return os.WriteFile(path, append([]byte(configHeader), data...), 0600)
}

// Redact returns a copy of cfg with secrets masked.
func Redact(cfg *Config) *Config {
	masked := *cfg
	if masked.Scan.Password != "" {
		masked.Scan.Password = redacted
	}
	if masked.Export.S3.SecretAccessKey != "" {
		masked.Export.S3.SecretAccessKey = redacted
	}
	if masked.API.JWT.Secret != "" {
		masked.API.JWT.Secret = redacted
	}
	return &masked
}

// Marshal renders cfg as YAML with secrets masked.
func Marshal(cfg *Config) ([]byte, error) {
	return yaml.Marshal(Redact(cfg))
}
