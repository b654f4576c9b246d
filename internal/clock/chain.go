package clock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/truthpool/internal/domain"
)

// BlockNumberer is the slice of an Ethereum RPC client the chain clock needs.
type BlockNumberer interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// Chain reads the current block height from an Ethereum-compatible node.
// Readings are cached for ttl to keep bursts of bets from hammering the RPC
// endpoint, and never go backwards across reorgs.
type Chain struct {
	src BlockNumberer
	ttl time.Duration

	mu      sync.Mutex
	last    uint64
	fetched time.Time
}

// NewChain wraps src. A zero ttl disables caching.
func NewChain(src BlockNumberer, ttl time.Duration) *Chain {
	return &Chain{src: src, ttl: ttl}
}

// DialChain connects to rpcURL with go-ethereum's ethclient.
func DialChain(ctx context.Context, rpcURL string, ttl time.Duration) (*Chain, func(), error) {
	c, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, fmt.Errorf("clock: dial %s: %w", rpcURL, err)
	}
	return NewChain(c, ttl), c.Close, nil
}

func (c *Chain) Now(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ttl > 0 && !c.fetched.IsZero() && time.Since(c.fetched) < c.ttl {
		return c.last, nil
	}
	n, err := c.src.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("clock: block number: %w", err)
	}
	if n > c.last {
		c.last = n
	}
	c.fetched = time.Now()
	return c.last, nil
}

var _ domain.Clock = (*Chain)(nil)
