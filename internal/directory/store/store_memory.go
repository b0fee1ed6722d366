package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"shiftgate/internal/directory/models"
	id "shiftgate/pkg/domain"
	"shiftgate/pkg/platform/sentinel"
)

// MemoryStore keeps identities in process memory. Used in tests and
// single-instance development runs.
type MemoryStore struct {
	mu         sync.RWMutex
	identities map[id.IdentityID]*memoryRecord
}

type memoryRecord struct {
	identity       models.Identity
	credentialHash string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{identities: make(map[id.IdentityID]*memoryRecord)}
}

func (s *MemoryStore) Create(_ context.Context, identity *models.Identity, credentialHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.identities[identity.ID]; exists {
		return sentinel.ErrConflict
	}
	for _, rec := range s.identities {
		if strings.EqualFold(rec.identity.Email, identity.Email) {
			return sentinel.ErrConflict
		}
	}
	s.identities[identity.ID] = &memoryRecord{
		identity:       cloneIdentity(identity),
		credentialHash: credentialHash,
	}
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, identityID id.IdentityID) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.identities[identityID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := cloneIdentity(&rec.identity)
	return &out, nil
}

func (s *MemoryStore) List(_ context.Context) ([]*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Identity, 0, len(s.identities))
	for _, rec := range s.identities {
		c := cloneIdentity(&rec.identity)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) SetAllowedNetworks(_ context.Context, identityID id.IdentityID, networks []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.identities[identityID]
	if !ok {
		return sentinel.ErrNotFound
	}
	rec.identity.AllowedNetworks = append([]string(nil), networks...)
	return nil
}

func (s *MemoryStore) Binding(_ context.Context, identityID id.IdentityID) (*models.DeviceBinding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.identities[identityID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if rec.identity.Binding == nil {
		return nil, nil
	}
	b := *rec.identity.Binding
	return &b, nil
}

func (s *MemoryStore) Rebind(_ context.Context, identityID id.IdentityID, binding *models.DeviceBinding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.identities[identityID]
	if !ok {
		return sentinel.ErrNotFound
	}
	// Whole-binding swap under the write lock keeps replacement atomic for
	// concurrent readers.
	b := *binding
	rec.identity.Binding = &b
	return nil
}

// cloneIdentity copies the identity and its owned slices/pointers so callers
// never alias store-internal state.
func cloneIdentity(in *models.Identity) models.Identity {
	out := *in
	out.AllowedNetworks = append([]string(nil), in.AllowedNetworks...)
	if in.Binding != nil {
		b := *in.Binding
		out.Binding = &b
	}
	return out
}
