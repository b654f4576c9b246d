package memory

import (
	"context"
	"sync"
	"time"

	"github.com/alanyoungcy/truthpool/internal/domain"
)

// LockManager implements domain.LockManager for a single process. Locks
// expire after their TTL so a crashed holder cannot wedge a key.
type LockManager struct {
	mu    sync.Mutex
	held  map[string]lease
	token uint64
}

type lease struct {
	token   uint64
	expires time.Time
}

// NewLockManager creates a LockManager.
func NewLockManager() *LockManager {
	return &LockManager{held: make(map[string]lease)}
}

// Acquire takes key for ttl or returns domain.ErrLockHeld.
func (lm *LockManager) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	now := time.Now()
	if l, ok := lm.held[key]; ok && now.Before(l.expires) {
		return nil, domain.ErrLockHeld
	}
	lm.token++
	token := lm.token
	lm.held[key] = lease{token: token, expires: now.Add(ttl)}

	var once sync.Once
	return func() {
		once.Do(func() {
			lm.mu.Lock()
			defer lm.mu.Unlock()
			if l, ok := lm.held[key]; ok && l.token == token {
				delete(lm.held, key)
			}
		})
	}, nil
}

var _ domain.LockManager = (*LockManager)(nil)
