// Package credentials stores per-source API secrets.
//
// The router looks a secret up once per attempt; a lookup failure is a normal
// per-attempt failure and never aborts the fallback chain. Encryption at rest
// is the backend's concern and out of scope here.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// ErrNotFound indicates no secret is stored for the requested source.
var ErrNotFound = errors.New("no credential")

// ErrReadOnly indicates the store does not accept writes.
var ErrReadOnly = errors.New("credential store is read-only")

// Store is a concurrency-safe secret store keyed by source name.
type Store interface {
	Get(ctx context.Context, source string) (string, error)
	Put(ctx context.Context, source, secret string) error
	Delete(ctx context.Context, source string) error
	DeleteAll(ctx context.Context) error
}

// MemoryStore keeps secrets in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	secrets map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{secrets: make(map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, source string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	secret, ok := m.secrets[source]
	if !ok {
		return "", fmt.Errorf("%w for %q", ErrNotFound, source)
	}
	return secret, nil
}

func (m *MemoryStore) Put(_ context.Context, source, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[source] = secret
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.secrets, source)
	return nil
}

func (m *MemoryStore) DeleteAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets = make(map[string]string)
	return nil
}

// EnvStore reads secrets from environment variables named
// <PREFIX><SOURCE>_API_KEY, e.g. GROQ_API_KEY for source "groq" with an empty
// prefix. It is read-only.
type EnvStore struct {
	Prefix string
}

// EnvKey returns the variable name consulted for source.
func (e EnvStore) EnvKey(source string) string {
	name := strings.ToUpper(source)
	name = strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(name)
	return e.Prefix + name + "_API_KEY"
}

func (e EnvStore) Get(_ context.Context, source string) (string, error) {
	key := e.EnvKey(source)
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w for %q (%s unset)", ErrNotFound, source, key)
}

func (e EnvStore) Put(context.Context, string, string) error { return ErrReadOnly }
func (e EnvStore) Delete(context.Context, string) error      { return ErrReadOnly }
func (e EnvStore) DeleteAll(context.Context) error           { return ErrReadOnly }

// Chain consults each store in order and returns the first secret found.
// Writes go to the first store.
type Chain []Store

func (c Chain) Get(ctx context.Context, source string) (string, error) {
	for _, s := range c {
		secret, err := s.Get(ctx, source)
		if err == nil {
			return secret, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w for %q", ErrNotFound, source)
}

func (c Chain) Put(ctx context.Context, source, secret string) error {
	if len(c) == 0 {
		return ErrReadOnly
	}
	return c[0].Put(ctx, source, secret)
}

func (c Chain) Delete(ctx context.Context, source string) error {
	if len(c) == 0 {
		return ErrReadOnly
	}
	return c[0].Delete(ctx, source)
}

func (c Chain) DeleteAll(ctx context.Context) error {
	if len(c) == 0 {
		return ErrReadOnly
	}
	return c[0].DeleteAll(ctx)
}
