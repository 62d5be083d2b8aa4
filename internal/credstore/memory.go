package credstore

import (
	"context"
	"sync"

	"github.com/stemsi/conduct-console/internal/model"
)

// MemoryStore keeps the credential for the lifetime of the process.
type MemoryStore struct {
	mu       sync.RWMutex
	cred     *model.Credential
	identity *model.Identity
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(_ context.Context, cred model.Credential) error {
	if !cred.Valid() {
		return incompleteErr()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = &cred
	s.identity = nil
	return nil
}

func (s *MemoryStore) Load(_ context.Context) (*model.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cred == nil {
		return nil, nil
	}
	c := *s.cred
	return &c, nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = nil
	s.identity = nil
	return nil
}

func (s *MemoryStore) SaveIdentity(_ context.Context, identity model.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred == nil {
		return nil
	}
	s.identity = &identity
	return nil
}

func (s *MemoryStore) LoadIdentity(_ context.Context) (*model.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil, nil
	}
	id := *s.identity
	return &id, nil
}
