package credential

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vyrodovalexey/avabank/internal/observability"
	"github.com/vyrodovalexey/avabank/internal/retry"
)

const redisBackend = "redis"

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	// URL is a redis:// or rediss:// connection URL.
	URL string

	// KeyPrefix is prepended to every key.
	KeyPrefix string

	// DialTimeout overrides the client's dial timeout when positive.
	DialTimeout time.Duration

	// TTL expires stored values when positive.
	TTL time.Duration

	// Retry configures retries of transient read failures.
	Retry *retry.Config

	Logger observability.Logger
}

// RedisStore keeps values in Redis so that several processes share one
// session.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	retry  *retry.Config
	logger observability.Logger

	mu     sync.RWMutex
	closed bool
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg *RedisConfig) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, newStoreError(redisBackend, "open", "", err)
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}

	s := &RedisStore{
		client: redis.NewClient(opts),
		prefix: cfg.KeyPrefix,
		ttl:    cfg.TTL,
		retry:  cfg.Retry,
		logger: logger,
	}

	if err := s.client.Ping(ctx).Err(); err != nil {
		_ = s.client.Close()
		return nil, newStoreError(redisBackend, "ping", "", err)
	}

	return s, nil
}

// Get implements Reader. Transient failures are retried with backoff.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := validateKey(key); err != nil {
		return "", false, err
	}
	if err := s.checkOpen(); err != nil {
		return "", false, err
	}

	value, err := retry.DoValue(ctx, s.retry, func() (string, error) {
		return s.client.Get(ctx, s.prefix+key).Result()
	}, &retry.Options{
		ShouldRetry: isRetryableRedisError,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			s.logger.Warn("retrying credential read",
				observability.String("backend", redisBackend),
				observability.Int("attempt", attempt),
				observability.Duration("backoff", backoff),
				observability.Error(err),
			)
		},
	})
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, newStoreError(redisBackend, "get", key, err)
	}
	return value, true, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := s.checkOpen(); err != nil {
		return err
	}

	if err := s.client.Set(ctx, s.prefix+key, value, s.ttl).Err(); err != nil {
		return newStoreError(redisBackend, "set", key, err)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := s.checkOpen(); err != nil {
		return err
	}

	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return newStoreError(redisBackend, "delete", key, err)
	}
	return nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}

func (s *RedisStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

func isRetryableRedisError(err error) bool {
	if errors.Is(err, redis.Nil) || errors.Is(err, redis.ErrClosed) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

var _ Store = (*RedisStore)(nil)
