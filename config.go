package cms

import "github.com/goliatone/go-cms-ci/internal/runtimeconfig"

var (
	ErrDatabaseDriverUnknown   = runtimeconfig.ErrDatabaseDriverUnknown
	ErrDatabaseDSNRequired     = runtimeconfig.ErrDatabaseDSNRequired
	ErrRepositoryPathRequired  = runtimeconfig.ErrRepositoryPathRequired
	ErrCacheTTLInvalid         = runtimeconfig.ErrCacheTTLInvalid
	ErrLoggingProviderRequired = runtimeconfig.ErrLoggingProviderRequired
	ErrLoggingProviderUnknown  = runtimeconfig.ErrLoggingProviderUnknown
	ErrLoggingLevelInvalid     = runtimeconfig.ErrLoggingLevelInvalid
	ErrLoggingFormatInvalid    = runtimeconfig.ErrLoggingFormatInvalid
)

type (
	Config                      = runtimeconfig.Config
	DatabaseConfig              = runtimeconfig.DatabaseConfig
	CacheConfig                 = runtimeconfig.CacheConfig
	ContinuousIntegrationConfig = runtimeconfig.ContinuousIntegrationConfig
	StagingConfig               = runtimeconfig.StagingConfig
	CommandsConfig              = runtimeconfig.CommandsConfig
	LoggingConfig               = runtimeconfig.LoggingConfig
)

// DefaultConfig returns the default runtime configuration.
func DefaultConfig() Config {
	return runtimeconfig.DefaultConfig()
}

// LoadConfig reads a YAML file over the defaults.
func LoadConfig(path string) (Config, error) {
	return runtimeconfig.LoadFile(path)
}
