package session

import (
	"context"
	"errors"
	"sync"
)

// ErrNoCredential is returned by Storage.Load when nothing is persisted.
var ErrNoCredential = errors.New("no stored credential")

// Storage persists the credential for the lifetime of the operator session.
// Implementations write and clear the token and user together.
type Storage interface {
	Load(ctx context.Context) (Credential, error)
	Save(ctx context.Context, cred Credential) error
	Clear(ctx context.Context) error
	Healthy(ctx context.Context) bool
}

// MemoryStorage keeps the credential in process memory.
type MemoryStorage struct {
	mu   sync.Mutex
	cred *Credential
}

// NewMemoryStorage returns an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (m *MemoryStorage) Load(ctx context.Context) (Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cred == nil {
		return Credential{}, ErrNoCredential
	}
	return *m.cred, nil
}

func (m *MemoryStorage) Save(ctx context.Context, cred Credential) error {
	if !cred.Complete() {
		return ErrIncomplete
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := cred
	m.cred = &c
	return nil
}

func (m *MemoryStorage) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = nil
	return nil
}

func (m *MemoryStorage) Healthy(ctx context.Context) bool { return true }
