package credential

import (
	"context"
	"fmt"

	"github.com/vyrodovalexey/avabank/internal/config"
	"github.com/vyrodovalexey/avabank/internal/observability"
	"github.com/vyrodovalexey/avabank/internal/retry"
)

// New creates the store selected by cfg. Defaults must already be applied.
func New(ctx context.Context, cfg *config.CredentialStoreConfig, logger observability.Logger) (Store, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}

	var (
		store Store
		err   error
	)

	switch cfg.Type {
	case config.StoreTypeMemory:
		store = NewMemoryStore()

	case config.StoreTypeFile:
		if cfg.File == nil {
			return nil, fmt.Errorf("file credential store requires a path")
		}
		store, err = NewFileStore(cfg.File.Path,
			WithWatch(cfg.File.Watch),
			WithFileLogger(logger),
		)

	case config.StoreTypeSQLite:
		if cfg.SQLite == nil {
			return nil, fmt.Errorf("sqlite credential store requires a path")
		}
		store, err = NewSQLiteStore(ctx, cfg.SQLite.Path)

	case config.StoreTypeRedis:
		if cfg.Redis == nil {
			return nil, fmt.Errorf("redis credential store requires a url")
		}
		store, err = NewRedisStore(ctx, &RedisConfig{
			URL:         cfg.Redis.URL,
			KeyPrefix:   cfg.Redis.KeyPrefix,
			DialTimeout: cfg.Redis.DialTimeout.Duration(),
			TTL:         cfg.Redis.TTL.Duration(),
			Retry:       retry.DefaultConfig(),
			Logger:      logger,
		})

	case config.StoreTypeVault:
		if cfg.Vault == nil {
			return nil, fmt.Errorf("vault credential store requires an address")
		}
		store, err = NewVaultStore(&VaultConfig{
			Address: cfg.Vault.Address,
			Token:   cfg.Vault.Token,
			Mount:   cfg.Vault.Mount,
			Path:    cfg.Vault.Path,
		})

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedStore, cfg.Type)
	}

	if err != nil {
		return nil, err
	}

	logger.Debug("credential store opened", observability.String("type", cfg.Type))

	return store, nil
}
