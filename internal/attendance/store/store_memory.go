package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"shiftgate/internal/attendance/models"
	id "shiftgate/pkg/domain"
)

// MemoryStore keeps punches in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	punches []*models.Punch
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, punch *models.Punch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *punch
	s.punches = append(s.punches, &stored)
	return nil
}

func (s *MemoryStore) ListByIdentity(_ context.Context, identityID id.IdentityID, from, to time.Time, limit int) ([]*models.Punch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Punch
	for _, punch := range s.punches {
		if punch.IdentityID != identityID {
			continue
		}
		if punch.At.Before(from) || !punch.At.Before(to) {
			continue
		}
		c := *punch
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].At.After(out[j].At)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
