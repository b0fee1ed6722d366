package token

import (
	"context"
	"sync"
	"time"
)

// MemoryRevocationList keeps revoked token ids in process memory. Suitable for
// single-instance deployments and tests; use RedisRevocationList when running
// more than one replica.
type MemoryRevocationList struct {
	mu      sync.RWMutex
	revoked map[string]time.Time // jti -> expiry
}

func NewMemoryRevocationList() *MemoryRevocationList {
	return &MemoryRevocationList{revoked: make(map[string]time.Time)}
}

// Revoke marks a token id as revoked until its expiry.
func (l *MemoryRevocationList) Revoke(_ context.Context, jti string, expiresAt time.Time) {
	if jti == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.revoked[jti] = expiresAt
}

// IsRevoked checks if a token id is revoked and not yet expired.
func (l *MemoryRevocationList) IsRevoked(_ context.Context, jti string) (bool, error) {
	l.mu.RLock()
	expiresAt, ok := l.revoked[jti]
	l.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if time.Now().After(expiresAt) {
		l.mu.Lock()
		delete(l.revoked, jti)
		l.mu.Unlock()
		return false, nil
	}
	return true, nil
}
