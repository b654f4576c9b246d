package redis

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/truthpool/internal/domain"
)

//go:embed scripts/debit.lua
var debitLua string

// Ledger implements domain.Ledger over a single Redis hash of balances, so
// every engine instance sees the same funds. Redis integers are signed
// 64-bit, which bounds balances at math.MaxInt64.
type Ledger struct {
	rdb   *redis.Client
	key   string
	debit *redis.Script
}

// NewLedger creates a Ledger storing balances in "<prefix>balances".
func NewLedger(c *Client, prefix string) *Ledger {
	return &Ledger{
		rdb:   c.Underlying(),
		key:   prefix + "balances",
		debit: redis.NewScript(debitLua),
	}
}

func (l *Ledger) Credit(ctx context.Context, account string, amount uint64) error {
	if amount > math.MaxInt64 {
		return fmt.Errorf("redis: credit %s: %w", account, domain.ErrInvalidAmount)
	}
	err := l.rdb.HIncrBy(ctx, l.key, account, int64(amount)).Err()
	if err != nil {
		if strings.Contains(err.Error(), "overflow") {
			return fmt.Errorf("redis: credit %s: balance overflow: %w", account, domain.ErrInvalidAmount)
		}
		return fmt.Errorf("redis: credit %s: %w", account, err)
	}
	return nil
}

func (l *Ledger) Debit(ctx context.Context, account string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if amount > math.MaxInt64 {
		return domain.ErrInsufficientFunds
	}
	left, err := l.debit.Run(ctx, l.rdb, []string{l.key}, account, strconv.FormatUint(amount, 10)).Int64()
	if err != nil {
		return fmt.Errorf("redis: debit %s: %w", account, err)
	}
	if left < 0 {
		return domain.ErrInsufficientFunds
	}
	return nil
}

func (l *Ledger) Balance(ctx context.Context, account string) (uint64, error) {
	v, err := l.rdb.HGet(ctx, l.key, account).Uint64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis: balance %s: %w", account, err)
	}
	return v, nil
}

var _ domain.Ledger = (*Ledger)(nil)
