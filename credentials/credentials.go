// Package credentials defines the boundary to the host's secure credential
// store. The store internals (keychain, keystore) live outside this module;
// the pipeline only reads secrets by service id and reports write failures.
package credentials

import (
	"errors"
	"os"
	"strings"
	"sync"
)

// ErrStoreFailed is returned when a credential cannot be persisted.
var ErrStoreFailed = errors.New("credentials: store failed")

// Store provides credentials to the API client.
type Store interface {
	// Get returns the secret for the given service id, and false when the
	// service has no stored credential.
	Get(serviceID string) (string, bool)

	// Put stores a secret for the given service id. Fails with
	// ErrStoreFailed when the backing store rejects the write.
	Put(serviceID string, secret string) error
}

// EnvStore reads credentials from environment variables, mapping a service
// id like "translation-api" to VOICETRA_CREDENTIAL_TRANSLATION_API. It is
// read-only: Put always fails.
type EnvStore struct{}

var _ Store = (*EnvStore)(nil)

// NewEnvStore creates an environment-backed read-only store.
func NewEnvStore() *EnvStore {
	return &EnvStore{}
}

func (e *EnvStore) Get(serviceID string) (string, bool) {
	key := "VOICETRA_CREDENTIAL_" + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(serviceID))
	v := os.Getenv(key)
	return v, v != ""
}

func (e *EnvStore) Put(serviceID string, secret string) error {
	return ErrStoreFailed
}

// MemoryStore keeps credentials in process memory. Intended for tests and
// the demo binary.
type MemoryStore struct {
	mu      sync.RWMutex
	secrets map[string]string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{secrets: make(map[string]string)}
}

func (m *MemoryStore) Get(serviceID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	secret, ok := m.secrets[serviceID]
	return secret, ok
}

func (m *MemoryStore) Put(serviceID string, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[serviceID] = secret
	return nil
}
