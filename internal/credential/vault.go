package credential

import (
	"context"
	"fmt"
	"strings"
	"sync"

	vaultapi "github.com/hashicorp/vault/api"
)

const vaultBackend = "vault"

// VaultConfig configures a VaultStore.
type VaultConfig struct {
	Address string
	Token   string

	// Mount is the KV v2 mount point.
	Mount string

	// Path is the directory under the mount holding one secret per key.
	Path string
}

// VaultStore keeps each value as a KV v2 secret at <mount>/data/<path>/<key>
// under the field "value".
type VaultStore struct {
	client *vaultapi.Client
	mount  string
	path   string

	mu     sync.RWMutex
	closed bool
}

// NewVaultStore creates a Vault-backed store.
func NewVaultStore(cfg *VaultConfig) (*VaultStore, error) {
	apiConfig := vaultapi.DefaultConfig()
	if apiConfig.Error != nil {
		return nil, newStoreError(vaultBackend, "open", "", apiConfig.Error)
	}
	apiConfig.Address = cfg.Address
	// Retries are left to the caller.
	apiConfig.MaxRetries = 0

	client, err := vaultapi.NewClient(apiConfig)
	if err != nil {
		return nil, newStoreError(vaultBackend, "open", "", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}

	return &VaultStore{
		client: client,
		mount:  strings.Trim(cfg.Mount, "/"),
		path:   strings.Trim(cfg.Path, "/"),
	}, nil
}

func (s *VaultStore) secretPath(key string) string {
	if s.path == "" {
		return fmt.Sprintf("%s/data/%s", s.mount, key)
	}
	return fmt.Sprintf("%s/data/%s/%s", s.mount, s.path, key)
}

func (s *VaultStore) metadataPath(key string) string {
	if s.path == "" {
		return fmt.Sprintf("%s/metadata/%s", s.mount, key)
	}
	return fmt.Sprintf("%s/metadata/%s/%s", s.mount, s.path, key)
}

// Get implements Reader.
func (s *VaultStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := validateKey(key); err != nil {
		return "", false, err
	}
	if err := s.checkOpen(); err != nil {
		return "", false, err
	}

	secret, err := s.client.Logical().ReadWithContext(ctx, s.secretPath(key))
	if err != nil {
		return "", false, newStoreError(vaultBackend, "get", key, err)
	}
	if secret == nil || secret.Data == nil {
		return "", false, nil
	}

	// Deleted KV v2 versions come back with null data.
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok || data == nil {
		return "", false, nil
	}

	raw, ok := data["value"]
	if !ok {
		return "", false, nil
	}
	value, ok := raw.(string)
	if !ok {
		return "", false, newStoreError(vaultBackend, "get", key,
			fmt.Errorf("unexpected value type %T", raw))
	}
	return value, true, nil
}

// Set implements Store.
func (s *VaultStore) Set(ctx context.Context, key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := s.checkOpen(); err != nil {
		return err
	}

	_, err := s.client.Logical().WriteWithContext(ctx, s.secretPath(key), map[string]interface{}{
		"data": map[string]interface{}{"value": value},
	})
	if err != nil {
		return newStoreError(vaultBackend, "set", key, err)
	}
	return nil
}

// Delete implements Store. It removes every version of the secret.
func (s *VaultStore) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := s.checkOpen(); err != nil {
		return err
	}

	if _, err := s.client.Logical().DeleteWithContext(ctx, s.metadataPath(key)); err != nil {
		return newStoreError(vaultBackend, "delete", key, err)
	}
	return nil
}

// Close marks the store closed. The Vault client holds no resources.
func (s *VaultStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *VaultStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

var _ Store = (*VaultStore)(nil)
