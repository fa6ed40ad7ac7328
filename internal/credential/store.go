// Package credential provides durable key/value stores for the session
// credential.
//
// The bearer token lives under a fixed key (DefaultKey). It is written at
// sign-in, read before every outbound request and erased at logout. Several
// backends are available:
//
//   - memory: process-local map
//   - file: JSON document on disk, optionally watched for changes made by
//     other processes
//   - sqlite: key/value table in a local SQLite database
//   - redis: shared Redis instance
//   - vault: HashiCorp Vault KV v2
//
// Reading an absent key is not an error: Get returns ("", false, nil).
package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// DefaultKey is the well-known key holding the bearer token.
const DefaultKey = "access-token"

// Sentinel errors for credential store operations.
var (
	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("credential store closed")

	// ErrInvalidKey indicates an empty or malformed key.
	ErrInvalidKey = errors.New("invalid credential key")

	// ErrUnsupportedStore indicates an unknown store type.
	ErrUnsupportedStore = errors.New("unsupported credential store")
)

// Reader reads values by key.
type Reader interface {
	// Get returns the value stored under key. The boolean is false when no
	// value is stored.
	Get(ctx context.Context, key string) (string, bool, error)
}

// Store is a durable key/value store for session credentials.
type Store interface {
	Reader

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the store's resources.
	Close() error
}

// ChangeNotifier is implemented by stores that can observe modifications
// made outside the current process.
type ChangeNotifier interface {
	// OnChange registers fn to be called after the stored values change.
	// The returned function unregisters it.
	OnChange(fn func()) (unregister func())
}

// StoreError describes a failed store operation.
type StoreError struct {
	Backend string
	Op      string
	Key     string
	Cause   error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("credential store %s %s %q: %v", e.Backend, e.Op, e.Key, e.Cause)
	}
	return fmt.Sprintf("credential store %s %s: %v", e.Backend, e.Op, e.Cause)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

func newStoreError(backend, op, key string, cause error) *StoreError {
	return &StoreError{Backend: backend, Op: op, Key: key, Cause: cause}
}

// validateKey rejects keys that cannot be stored by every backend.
func validateKey(key string) error {
	if key == "" || strings.TrimSpace(key) != key || strings.ContainsAny(key, "/\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
