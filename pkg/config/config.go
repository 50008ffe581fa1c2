package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/sharescan/internal/bytesize"
)

// Config represents the sharescan configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (SHARESCAN_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Scan selects the share directory backend and how it connects
	Scan ScanConfig `mapstructure:"scan" yaml:"scan"`

	// Export controls the CSV report
	Export ExportConfig `mapstructure:"export" yaml:"export"`

	// API configures the HTTP control API served by "sharescan serve"
	API APIConfig `mapstructure:"api" yaml:"api"`

	// ShutdownTimeout is the maximum time to wait for a running scan on shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written: stdout, stderr, or a file
	// path. Files are appended to, never truncated.
	// Default: sharescan.log in the system temp directory
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	Endpoint string `mapstructure:"endpoint" validate:"required_if=Enabled true" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling of "sharescan serve".
type ProfilingConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server URL
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	ProfileTypes []string `mapstructure:"profile_types" validate:"dive,oneof=cpu alloc_objects alloc_space inuse_objects inuse_space goroutines mutex_count mutex_duration block_count block_duration" yaml:"profile_types"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the metrics endpoint
	// Default: 9090
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// ScanConfig selects the share directory backend.
type ScanConfig struct {
	// Backend is one of auto, netapi, smb2, fixture
	// Default: auto (netapi on Windows, smb2 elsewhere)
	Backend string `mapstructure:"backend" validate:"required,oneof=auto netapi smb2 fixture" yaml:"backend"`

	// Port is the SMB port used by the smb2 backend
	Port int `mapstructure:"port" validate:"min=1,max=65535" yaml:"port"`

	// Username, Password and Domain authenticate the smb2 backend with NTLM.
	// An empty username opens an anonymous session.
	Username string `mapstructure:"username" yaml:"username,omitempty"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
	Domain   string `mapstructure:"domain" yaml:"domain,omitempty"`

	// DialTimeout bounds connection setup
	DialTimeout time.Duration `mapstructure:"dial_timeout" validate:"gte=0" yaml:"dial_timeout"`

	// CallTimeout bounds each share directory call (0 = no limit)
	CallTimeout time.Duration `mapstructure:"call_timeout" validate:"gte=0" yaml:"call_timeout"`

	// PageSize is the preferred maximum length of one enumeration page,
	// e.g. "64KiB" (0 = everything in one page)
	PageSize bytesize.ByteSize `mapstructure:"page_size" yaml:"page_size"`

	// FixturePath is the YAML fixture read by the fixture backend
	FixturePath string `mapstructure:"fixture_path" validate:"required_if=Backend fixture" yaml:"fixture_path,omitempty"`
}

// ExportConfig controls the CSV report.
type ExportConfig struct {
	// Path is the default destination: a file path or s3://bucket/key
	Path string `mapstructure:"path" validate:"required" yaml:"path"`

	// LegacyQuoting writes embedded double quotes unescaped
	LegacyQuoting bool `mapstructure:"legacy_quoting" yaml:"legacy_quoting"`

	// Force overwrites an existing report without asking
	Force bool `mapstructure:"force" yaml:"force"`

	// S3 configures uploads to s3:// destinations
	S3 S3Config `mapstructure:"s3" yaml:"s3"`
}

// S3Config configures the S3 client. Empty credentials fall back to the
// default AWS credential chain.
type S3Config struct {
	Region          string `mapstructure:"region" yaml:"region"`
	Endpoint        string `mapstructure:"endpoint" validate:"omitempty,url" yaml:"endpoint,omitempty"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`
}

// APIConfig configures the HTTP control API.
type APIConfig struct {
	// Port is the HTTP port of the API
	// Default: 8080
	Port int `mapstructure:"port" validate:"min=1,max=65535" yaml:"port"`

	ReadTimeout  time.Duration `mapstructure:"read_timeout" validate:"gt=0" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"gt=0" yaml:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" validate:"gt=0" yaml:"idle_timeout"`

	// JWT protects /api/v1 when a secret is set
	JWT JWTConfig `mapstructure:"jwt" yaml:"jwt"`
}

// JWTConfig configures bearer token authentication of the API.
type JWTConfig struct {
	// Secret is the HMAC signing key; empty disables authentication.
	// Must be at least 32 characters when set.
	Secret string `mapstructure:"secret" validate:"omitempty,min=32" yaml:"secret,omitempty"`

	// TokenDuration is the lifetime of tokens issued by "sharescan token"
	TokenDuration time.Duration `mapstructure:"token_duration" validate:"gt=0" yaml:"token_duration"`
}

// Load loads configuration from file, environment, and defaults.
//
// A missing configuration file is not an error: defaults and environment
// variables still apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// SaveConfig saves the configuration to the specified file path in YAML.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600: the file may hold SMB credentials and the JWT secret.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures environment variables, defaults and the config file.
func setupViper(v *viper.Viper, configPath string) {
	// Example: SHARESCAN_SCAN_BACKEND=fixture
	v.SetEnvPrefix("SHARESCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys must be known to viper for AutomaticEnv to reach them in Unmarshal.
	registerDefaults(v, GetDefaultConfig())

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}

	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

// registerDefaults walks the yaml form of cfg and registers every leaf key.
func registerDefaults(v *viper.Viper, cfg *Config) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return
	}
	setDefaults(v, "", tree)

	// Keys omitted from the yaml form when empty.
	for _, key := range []string{
		"scan.username", "scan.password", "scan.domain", "scan.fixture_path",
		"export.s3.endpoint", "export.s3.access_key_id", "export.s3.secret_access_key",
		"api.jwt.secret",
	} {
		if !v.IsSet(key) {
			v.SetDefault(key, "")
		}
	}
}

func setDefaults(v *viper.Viper, prefix string, tree map[string]any) {
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]any); ok {
			setDefaults(v, key, sub)
			continue
		}
		v.SetDefault(key, val)
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns the decode hooks for custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		byteSizeDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// byteSizeDecodeHook converts strings like "64KiB" and raw integers to
// bytesize.ByteSize.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.Parse(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings like "30s" and raw integers
// (nanoseconds) to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns $XDG_CONFIG_HOME/sharescan, ~/.config/sharescan, or
// the current directory when no home directory is known.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "sharescan")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "sharescan")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
