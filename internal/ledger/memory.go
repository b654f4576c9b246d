// Package ledger provides an in-process implementation of domain.Ledger for
// single-instance deployments and tests. Production deployments use the Redis
// ledger in internal/cache/redis.
package ledger

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/alanyoungcy/truthpool/internal/domain"
)

// Memory is a balance map guarded by a mutex.
type Memory struct {
	mu       sync.Mutex
	balances map[string]uint64
}

// NewMemory creates an empty ledger.
func NewMemory() *Memory {
	return &Memory{balances: make(map[string]uint64)}
}

func (l *Memory) Credit(_ context.Context, account string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	bal := l.balances[account]
	if amount > math.MaxUint64-bal {
		return fmt.Errorf("ledger: credit %s: balance overflow: %w", account, domain.ErrInvalidAmount)
	}
	l.balances[account] = bal + amount
	return nil
}

func (l *Memory) Debit(_ context.Context, account string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	bal := l.balances[account]
	if bal < amount {
		return domain.ErrInsufficientFunds
	}
	l.balances[account] = bal - amount
	return nil
}

func (l *Memory) Balance(_ context.Context, account string) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account], nil
}

var _ domain.Ledger = (*Memory)(nil)
