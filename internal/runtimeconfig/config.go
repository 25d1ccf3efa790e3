package runtimeconfig

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrDatabaseDriverUnknown = errors.New("cms config: database driver must be sqlite3 or pgx")
var ErrDatabaseDSNRequired = errors.New("cms config: database dsn is required")

// ErrRepositoryPathRequired guards against serializing into the working directory by accident.
var ErrRepositoryPathRequired = errors.New("cms config: continuous integration repository path is required when enabled")

// ErrCacheTTLInvalid rejects negative cache lifetimes.
var ErrCacheTTLInvalid = errors.New("cms config: cache ttl must be zero or positive")
var ErrLoggingProviderRequired = errors.New("cms config: logging provider is required")
var ErrLoggingProviderUnknown = errors.New("cms config: logging provider is invalid")
var ErrLoggingLevelInvalid = errors.New("cms config: logging level is invalid")
var ErrLoggingFormatInvalid = errors.New("cms config: logging format is invalid")

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CMSCI_"

// Config aggregates the settings for the document store, the continuous
// integration repository and the ambient runtime.
type Config struct {
	Database              DatabaseConfig              `yaml:"database"`
	Cache                 CacheConfig                 `yaml:"cache"`
	ContinuousIntegration ContinuousIntegrationConfig `yaml:"continuous_integration"`
	Staging               StagingConfig               `yaml:"staging"`
	Commands              CommandsConfig              `yaml:"commands"`
	Logging               LoggingConfig               `yaml:"logging"`
}

// DatabaseConfig selects the SQL driver and connection string.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	Debug  bool   `yaml:"debug"`
}

// CacheConfig captures cache behaviour toggles for site and document type lookups.
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled"`
	DefaultTTL time.Duration `yaml:"default_ttl"`
}

// ContinuousIntegrationConfig controls the file system repository mirror.
type ContinuousIntegrationConfig struct {
	Enabled        bool   `yaml:"enabled"`
	RepositoryPath string `yaml:"repository_path"`
	StoreACLs      bool   `yaml:"store_acls"`
}

// StagingConfig toggles the staging task log.
type StagingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// CommandsConfig captures optional command-layer behaviour.
type CommandsConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	// StoreAllCron schedules a full repository rebuild, e.g. "@daily". Empty disables it.
	StoreAllCron string `yaml:"store_all_cron"`
}

// LoggingConfig captures provider-specific options for runtime logging.
type LoggingConfig struct {
	Provider  string   `yaml:"provider"`
	Level     string   `yaml:"level"`
	Format    string   `yaml:"format"`
	AddSource bool     `yaml:"add_source"`
	Focus     []string `yaml:"focus"`
}

// DefaultConfig returns a sqlite in-memory setup with the repository
// mirrored into ./ci-repository.
func DefaultConfig() Config {
	return Config{
		Database: DatabaseConfig{
			Driver: "sqlite3",
			DSN:    "file::memory:?cache=shared",
		},
		Cache: CacheConfig{
			Enabled:    true,
			DefaultTTL: time.Minute,
		},
		ContinuousIntegration: ContinuousIntegrationConfig{
			Enabled:        true,
			RepositoryPath: "ci-repository",
			StoreACLs:      true,
		},
		Staging: StagingConfig{
			Enabled: true,
		},
		Commands: CommandsConfig{
			Timeout: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Provider: "console",
			Level:    "info",
		},
	}
}

// LoadFile reads a YAML document over the defaults. A missing file yields
// the defaults unchanged.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("cms config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("cms config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from CMSCI_* variables using lookup, usually
// os.LookupEnv. Malformed booleans and durations are reported.
func (cfg *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(name string) (string, bool) {
		value, ok := lookup(EnvPrefix + name)
		return strings.TrimSpace(value), ok && strings.TrimSpace(value) != ""
	}

	var errs []error
	setBool := func(name string, dst *bool) {
		if raw, ok := get(name); ok {
			parsed, err := strconv.ParseBool(raw)
			if err != nil {
				errs = append(errs, fmt.Errorf("cms config: %s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = parsed
		}
	}
	setString := func(name string, dst *string) {
		if raw, ok := get(name); ok {
			*dst = raw
		}
	}
	setDuration := func(name string, dst *time.Duration) {
		if raw, ok := get(name); ok {
			parsed, err := time.ParseDuration(raw)
			if err != nil {
				errs = append(errs, fmt.Errorf("cms config: %s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = parsed
		}
	}

	setString("DB_DRIVER", &cfg.Database.Driver)
	setString("DB_DSN", &cfg.Database.DSN)
	setBool("DB_DEBUG", &cfg.Database.Debug)
	setBool("CACHE_ENABLED", &cfg.Cache.Enabled)
	setDuration("CACHE_TTL", &cfg.Cache.DefaultTTL)
	setBool("CI_ENABLED", &cfg.ContinuousIntegration.Enabled)
	setString("CI_REPOSITORY_PATH", &cfg.ContinuousIntegration.RepositoryPath)
	setBool("CI_STORE_ACLS", &cfg.ContinuousIntegration.StoreACLs)
	setBool("STAGING_ENABLED", &cfg.Staging.Enabled)
	setDuration("COMMAND_TIMEOUT", &cfg.Commands.Timeout)
	setString("LOG_PROVIDER", &cfg.Logging.Provider)
	setString("LOG_LEVEL", &cfg.Logging.Level)
	setString("LOG_FORMAT", &cfg.Logging.Format)
	setBool("LOG_ADD_SOURCE", &cfg.Logging.AddSource)
	if raw, ok := get("LOG_FOCUS"); ok {
		cfg.Logging.Focus = strings.Split(raw, ",")
	}

	return errors.Join(errs...)
}

// Validate performs high-level consistency checks.
func (cfg Config) Validate() error {
	switch normalize(cfg.Database.Driver) {
	case "sqlite3", "sqlite", "pgx", "postgres":
	default:
		return fmt.Errorf("%w: %q", ErrDatabaseDriverUnknown, cfg.Database.Driver)
	}
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return ErrDatabaseDSNRequired
	}
	if cfg.Cache.DefaultTTL < 0 {
		return ErrCacheTTLInvalid
	}
	if cfg.ContinuousIntegration.Enabled && strings.TrimSpace(cfg.ContinuousIntegration.RepositoryPath) == "" {
		return ErrRepositoryPathRequired
	}

	provider := normalize(cfg.Logging.Provider)
	if provider == "" {
		return ErrLoggingProviderRequired
	}
	if provider != "console" && provider != "gologger" {
		return fmt.Errorf("%w: %s", ErrLoggingProviderUnknown, provider)
	}
	if level := strings.TrimSpace(cfg.Logging.Level); level != "" && !isSupportedLevel(level) {
		return fmt.Errorf("%w: %s", ErrLoggingLevelInvalid, level)
	}
	if provider == "gologger" {
		if format := strings.TrimSpace(cfg.Logging.Format); format != "" && !isSupportedFormat(format) {
			return fmt.Errorf("%w: %s", ErrLoggingFormatInvalid, format)
		}
	}
	return nil
}

// DialectName reports "sqlite" or "postgres" for the configured driver.
func (cfg Config) DialectName() string {
	switch normalize(cfg.Database.Driver) {
	case "pgx", "postgres":
		return "postgres"
	default:
		return "sqlite"
	}
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func isSupportedLevel(level string) bool {
	switch normalize(level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal":
		return true
	default:
		return false
	}
}

func isSupportedFormat(format string) bool {
	switch normalize(format) {
	case "json", "console", "pretty", "text":
		return true
	default:
		return false
	}
}
