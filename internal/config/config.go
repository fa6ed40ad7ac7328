// Package config provides configuration management for the banking client.
// Configuration is read from an optional YAML file with ${VAR} substitution,
// completed with defaults and finally overridden by BANK_* environment
// variables.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Credential store types.
const (
	StoreTypeMemory = "memory"
	StoreTypeFile   = "file"
	StoreTypeSQLite = "sqlite"
	StoreTypeRedis  = "redis"
	StoreTypeVault  = "vault"
)

// Default configuration values.
const (
	DefaultBaseURL       = "http://localhost:5000"
	DefaultTimeout       = 30 * time.Second
	DefaultLoginRoute    = "/login"
	DefaultTokenPath     = "/jwt"
	DefaultCredentialKey = "access-token"
	DefaultRedisPrefix   = "avabank:"
	DefaultVaultMount    = "secret"
	DefaultVaultPath     = "avabank"
	DefaultServiceName   = "avabank"
	DefaultCBThreshold   = 5
	DefaultCBTimeout     = 30 * time.Second
	DefaultRateLimitRPS  = 10
	DefaultMetricsAddr   = "127.0.0.1:9464"
)

// Environment variables that override file configuration.
const (
	EnvBaseURL         = "BANK_API_URL"
	EnvLogLevel        = "BANK_LOG_LEVEL"
	EnvLogFormat       = "BANK_LOG_FORMAT"
	EnvCredentialStore = "BANK_CREDENTIAL_STORE"
	EnvCredentialPath  = "BANK_CREDENTIAL_PATH"
	EnvRedisURL        = "BANK_REDIS_URL"
	EnvVaultAddress    = "VAULT_ADDR"
	EnvVaultToken      = "VAULT_TOKEN"
)

// ClientConfig is the root configuration of the banking client.
type ClientConfig struct {
	API           APIConfig             `yaml:"api" json:"api"`
	Credentials   CredentialStoreConfig `yaml:"credentials" json:"credentials"`
	Transport     TransportConfig       `yaml:"transport" json:"transport"`
	Observability ObservabilityConfig   `yaml:"observability" json:"observability"`
}

// APIConfig describes the remote banking API.
type APIConfig struct {
	// BaseURL is the API origin; request paths are relative to it.
	BaseURL string `yaml:"baseURL" json:"baseURL"`

	// Timeout bounds a single HTTP exchange at the transport.
	Timeout Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// LoginRoute is where the client navigates when the session expires.
	LoginRoute string `yaml:"loginRoute,omitempty" json:"loginRoute,omitempty"`

	// TokenPath is the endpoint that exchanges credentials for a token.
	TokenPath string `yaml:"tokenPath,omitempty" json:"tokenPath,omitempty"`
}

// CredentialStoreConfig selects and configures the session credential store.
type CredentialStoreConfig struct {
	Type   string             `yaml:"type" json:"type"`
	Key    string             `yaml:"key,omitempty" json:"key,omitempty"`
	File   *FileStoreConfig   `yaml:"file,omitempty" json:"file,omitempty"`
	SQLite *SQLiteStoreConfig `yaml:"sqlite,omitempty" json:"sqlite,omitempty"`
	Redis  *RedisStoreConfig  `yaml:"redis,omitempty" json:"redis,omitempty"`
	Vault  *VaultStoreConfig  `yaml:"vault,omitempty" json:"vault,omitempty"`
}

// FileStoreConfig configures the JSON file store.
type FileStoreConfig struct {
	Path string `yaml:"path" json:"path"`

	// Watch observes changes written by other processes.
	Watch bool `yaml:"watch,omitempty" json:"watch,omitempty"`
}

// SQLiteStoreConfig configures the SQLite store.
type SQLiteStoreConfig struct {
	Path string `yaml:"path" json:"path"`
}

// RedisStoreConfig configures the Redis store.
type RedisStoreConfig struct {
	URL         string   `yaml:"url" json:"url"`
	KeyPrefix   string   `yaml:"keyPrefix,omitempty" json:"keyPrefix,omitempty"`
	DialTimeout Duration `yaml:"dialTimeout,omitempty" json:"dialTimeout,omitempty"`
	TTL         Duration `yaml:"ttl,omitempty" json:"ttl,omitempty"`
}

// VaultStoreConfig configures the Vault KV v2 store.
type VaultStoreConfig struct {
	Address string `yaml:"address" json:"address"`
	Token   string `yaml:"token,omitempty" json:"token,omitempty"`
	Mount   string `yaml:"mount,omitempty" json:"mount,omitempty"`
	Path    string `yaml:"path,omitempty" json:"path,omitempty"`
}

// TransportConfig holds optional transport policies. All are off by default.
type TransportConfig struct {
	CircuitBreaker *CircuitBreakerConfig `yaml:"circuitBreaker,omitempty" json:"circuitBreaker,omitempty"`
	RateLimit      *RateLimitConfig      `yaml:"rateLimit,omitempty" json:"rateLimit,omitempty"`

	// TeardownDedup collapses concurrent session-expiry handling into one
	// in-flight teardown and redirect.
	TeardownDedup bool `yaml:"teardownDedup,omitempty" json:"teardownDedup,omitempty"`
}

// CircuitBreakerConfig configures the transport circuit breaker.
type CircuitBreakerConfig struct {
	Enabled   bool     `yaml:"enabled" json:"enabled"`
	Threshold int      `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	Timeout   Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// RateLimitConfig configures the client-side rate limit.
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	RPS     int  `yaml:"rps,omitempty" json:"rps,omitempty"`
	Burst   int  `yaml:"burst,omitempty" json:"burst,omitempty"`
}

// ObservabilityConfig configures logging, tracing and metrics.
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	OTLPEndpoint string  `yaml:"otlpEndpoint,omitempty" json:"otlpEndpoint,omitempty"`
	SamplingRate float64 `yaml:"samplingRate,omitempty" json:"samplingRate,omitempty"`
	ServiceName  string  `yaml:"serviceName,omitempty" json:"serviceName,omitempty"`
}

// MetricsConfig configures the Prometheus metrics listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Address string `yaml:"address,omitempty" json:"address,omitempty"`
}

// DefaultConfig returns a configuration with all defaults applied.
func DefaultConfig() *ClientConfig {
	cfg := &ClientConfig{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values with defaults.
func (c *ClientConfig) ApplyDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = Duration(DefaultTimeout)
	}
	if c.API.LoginRoute == "" {
		c.API.LoginRoute = DefaultLoginRoute
	}
	if c.API.TokenPath == "" {
		c.API.TokenPath = DefaultTokenPath
	}

	c.Credentials.applyDefaults()
	c.Transport.applyDefaults()

	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = "console"
	}
	if c.Observability.Tracing.ServiceName == "" {
		c.Observability.Tracing.ServiceName = DefaultServiceName
	}
	if c.Observability.Tracing.Enabled && c.Observability.Tracing.SamplingRate == 0 {
		c.Observability.Tracing.SamplingRate = 1.0
	}
	if c.Observability.Metrics.Enabled && c.Observability.Metrics.Address == "" {
		c.Observability.Metrics.Address = DefaultMetricsAddr
	}
}

func (c *CredentialStoreConfig) applyDefaults() {
	if c.Type == "" {
		c.Type = StoreTypeFile
	}
	if c.Key == "" {
		c.Key = DefaultCredentialKey
	}

	switch c.Type {
	case StoreTypeFile:
		if c.File == nil {
			c.File = &FileStoreConfig{}
		}
		if c.File.Path == "" {
			c.File.Path = defaultStatePath("credentials.json")
		}
	case StoreTypeSQLite:
		if c.SQLite == nil {
			c.SQLite = &SQLiteStoreConfig{}
		}
		if c.SQLite.Path == "" {
			c.SQLite.Path = defaultStatePath("credentials.db")
		}
	case StoreTypeRedis:
		if c.Redis == nil {
			c.Redis = &RedisStoreConfig{}
		}
		if c.Redis.KeyPrefix == "" {
			c.Redis.KeyPrefix = DefaultRedisPrefix
		}
	case StoreTypeVault:
		if c.Vault == nil {
			c.Vault = &VaultStoreConfig{}
		}
		if c.Vault.Mount == "" {
			c.Vault.Mount = DefaultVaultMount
		}
		if c.Vault.Path == "" {
			c.Vault.Path = DefaultVaultPath
		}
	}
}

func (t *TransportConfig) applyDefaults() {
	if cb := t.CircuitBreaker; cb != nil && cb.Enabled {
		if cb.Threshold <= 0 {
			cb.Threshold = DefaultCBThreshold
		}
		if cb.Timeout == 0 {
			cb.Timeout = Duration(DefaultCBTimeout)
		}
	}
	if rl := t.RateLimit; rl != nil && rl.Enabled {
		if rl.RPS <= 0 {
			rl.RPS = DefaultRateLimitRPS
		}
		if rl.Burst <= 0 {
			rl.Burst = rl.RPS
		}
	}
}

// defaultStatePath returns a path under the user config directory, falling
// back to the working directory when none is available.
func defaultStatePath(name string) string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return filepath.Join(".avabank", name)
	}
	return filepath.Join(dir, "avabank", name)
}
