package allowlist

import (
	"context"
	"sync"
)

// MemoryCompanyStore keeps the company allowlist in process memory.
type MemoryCompanyStore struct {
	mu       sync.RWMutex
	networks []string
}

func NewMemoryCompanyStore(networks []string) *MemoryCompanyStore {
	return &MemoryCompanyStore{networks: append([]string(nil), networks...)}
}

func (s *MemoryCompanyStore) Networks(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.networks...), nil
}

func (s *MemoryCompanyStore) Replace(_ context.Context, networks []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.networks = append([]string(nil), networks...)
	return nil
}
