package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// LoadConfig loads configuration from a YAML file. An empty path yields the
// defaults. Environment overrides and defaults are applied in that order.
func LoadConfig(path string) (*ClientConfig, error) {
	if path == "" {
		cfg := &ClientConfig{}
		ApplyEnvOverrides(cfg)
		cfg.ApplyDefaults()
		return cfg, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}

	data, err := os.ReadFile(absPath) //nolint:gosec // operator-supplied config path
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return parseConfig(data)
}

// LoadConfigFromReader loads configuration from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*ClientConfig, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return parseConfig(data)
}

// parseConfig parses YAML data into a ClientConfig.
func parseConfig(data []byte) (*ClientConfig, error) {
	content := substituteEnvVars(string(data))

	var cfg ClientConfig
	if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	ApplyEnvOverrides(&cfg)
	cfg.ApplyDefaults()

	return &cfg, nil
}

// substituteEnvVars replaces ${VAR} and ${VAR:-default} patterns with
// environment variable values. "$$" escapes a literal dollar sign.
func substituteEnvVars(content string) string {
	content = strings.ReplaceAll(content, "$$", "\x00ESCAPED_DOLLAR\x00")

	result := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		if value, exists := os.LookupEnv(submatches[1]); exists {
			return value
		}
		if len(submatches) >= 3 {
			return submatches[2]
		}
		return ""
	})

	return strings.ReplaceAll(result, "\x00ESCAPED_DOLLAR\x00", "$")
}

// ApplyEnvOverrides applies BANK_* (and Vault) environment variables.
func ApplyEnvOverrides(cfg *ClientConfig) {
	if v := os.Getenv(EnvBaseURL); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Observability.Logging.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		cfg.Observability.Logging.Format = v
	}
	if v := os.Getenv(EnvCredentialStore); v != "" {
		cfg.Credentials.Type = v
	}

	switch cfg.Credentials.Type {
	case StoreTypeFile:
		if v := os.Getenv(EnvCredentialPath); v != "" {
			if cfg.Credentials.File == nil {
				cfg.Credentials.File = &FileStoreConfig{}
			}
			cfg.Credentials.File.Path = v
		}
	case StoreTypeSQLite:
		if v := os.Getenv(EnvCredentialPath); v != "" {
			if cfg.Credentials.SQLite == nil {
				cfg.Credentials.SQLite = &SQLiteStoreConfig{}
			}
			cfg.Credentials.SQLite.Path = v
		}
	case StoreTypeRedis:
		if v := os.Getenv(EnvRedisURL); v != "" {
			if cfg.Credentials.Redis == nil {
				cfg.Credentials.Redis = &RedisStoreConfig{}
			}
			cfg.Credentials.Redis.URL = v
		}
	case StoreTypeVault:
		if cfg.Credentials.Vault == nil {
			cfg.Credentials.Vault = &VaultStoreConfig{}
		}
		if v := os.Getenv(EnvVaultAddress); v != "" && cfg.Credentials.Vault.Address == "" {
			cfg.Credentials.Vault.Address = v
		}
		if v := os.Getenv(EnvVaultToken); v != "" && cfg.Credentials.Vault.Token == "" {
			cfg.Credentials.Vault.Token = v
		}
	}
}
