package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/truthpool/internal/domain"
)

// newTestClient connects to TRUTHPOOL_TEST_REDIS_ADDR and returns a unique key
// prefix for the test. Tests are skipped when the variable is unset.
func newTestClient(t *testing.T) (*Client, string) {
	t.Helper()
	addr := os.Getenv("TRUTHPOOL_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TRUTHPOOL_TEST_REDIS_ADDR not set")
	}
	c, err := New(context.Background(), ClientConfig{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, "test:" + uuid.NewString() + ":"
}

func TestLedger(t *testing.T) {
	c, prefix := newTestClient(t)
	ctx := context.Background()
	l := NewLedger(c, prefix)

	require.NoError(t, l.Credit(ctx, "alice", 100))
	require.NoError(t, l.Debit(ctx, "alice", 60))
	assert.ErrorIs(t, l.Debit(ctx, "alice", 41), domain.ErrInsufficientFunds)
	assert.ErrorIs(t, l.Debit(ctx, "nobody", 1), domain.ErrInsufficientFunds)

	bal, err := l.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 40, bal)

	bal, err = l.Balance(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, bal)

	// Lexical comparison must not treat "9" as larger than "10".
	require.NoError(t, l.Credit(ctx, "bob", 10))
	require.NoError(t, l.Debit(ctx, "bob", 9))
}

func TestLockManager(t *testing.T) {
	c, prefix := newTestClient(t)
	ctx := context.Background()
	lm := NewLockManager(c, prefix)

	unlock, err := lm.Acquire(ctx, "market:0", time.Second)
	require.NoError(t, err)
	_, err = lm.Acquire(ctx, "market:0", time.Second)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	unlock()
	unlock()
	unlock2, err := lm.Acquire(ctx, "market:0", time.Second)
	require.NoError(t, err)
	unlock2()
}

func TestMarketCache(t *testing.T) {
	c, prefix := newTestClient(t)
	ctx := context.Background()
	mc := NewMarketCache(c, prefix, time.Minute)

	_, err := mc.Get(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, mc.Set(ctx, domain.Market{ID: 1, Description: "rain?", TotalYes: 5}))
	m, err := mc.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "rain?", m.Description)
	assert.EqualValues(t, 5, m.TotalYes)

	require.NoError(t, mc.Invalidate(ctx, 1))
	_, err = mc.Get(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRateLimiter(t *testing.T) {
	c, prefix := newTestClient(t)
	ctx := context.Background()
	rl := NewRateLimiter(c, prefix)

	for range 3 {
		ok, err := rl.Allow(ctx, "ip", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := rl.Allow(ctx, "ip", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEventBusStream(t *testing.T) {
	c, prefix := newTestClient(t)
	ctx := context.Background()
	bus := NewEventBus(c, prefix)

	require.NoError(t, bus.StreamAppend(ctx, domain.EventStream, []byte(`{"n":1}`)))
	require.NoError(t, bus.StreamAppend(ctx, domain.EventStream, []byte(`{"n":2}`)))

	msgs, err := bus.StreamRead(ctx, domain.EventStream, "0", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.JSONEq(t, `{"n":2}`, string(msgs[1].Payload))

	more, err := bus.StreamRead(ctx, domain.EventStream, msgs[1].ID, 10)
	require.NoError(t, err)
	assert.Empty(t, more)

	sub, err := bus.Subscribe(ctx, "ch:*")
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, domain.EventBetPlaced.Channel(), []byte("x")))
	select {
	case got := <-sub:
		assert.Equal(t, []byte("x"), got)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestOptionsFromURL(t *testing.T) {
	opts, err := options(ClientConfig{Addr: "rediss://:secret@cache.internal:6380/2", PoolSize: 7})
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)
	assert.NotNil(t, opts.TLSConfig)

	opts, err = options(ClientConfig{Addr: "localhost:6379", Password: "pw", TLSEnabled: true})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.NotNil(t, opts.TLSConfig)
}
