package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/truthpool/internal/clock"
	"github.com/alanyoungcy/truthpool/internal/crypto"
	"github.com/alanyoungcy/truthpool/internal/domain"
	"github.com/alanyoungcy/truthpool/internal/ledger"
	"github.com/alanyoungcy/truthpool/internal/store/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	clock    *clock.Manual
	ledger   *ledger.Memory
	markets  *memory.MarketStore
	bus      *memory.EventBus
	access   *AccessService
	market   *MarketService
	subs     *SubmissionService
	accounts *AccountService
	escrow   crypto.EscrowKey
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := discardLogger()
	h := &harness{
		clock:   clock.NewManual(0),
		ledger:  ledger.NewMemory(),
		markets: memory.NewMarketStore(),
		bus:     memory.NewEventBus(0),
	}
	events := NewEventPublisher(h.bus, logger)

	key, err := crypto.GenerateEscrowKey()
	require.NoError(t, err)
	h.escrow = key

	h.access = NewAccessService(memory.NewPartyStore(), events, logger)
	h.market = NewMarketService(h.markets, h.ledger, h.clock, nil, memory.NewLockManager(), events, logger)
	h.subs = NewSubmissionService(memory.NewSubmissionStore(), h.access, crypto.ECIES{}, &h.escrow, events, logger)
	h.accounts = NewAccountService(h.ledger, logger)
	return h
}

func (h *harness) fund(t *testing.T, account string, amount uint64) {
	t.Helper()
	_, err := h.accounts.Deposit(context.Background(), account, amount)
	require.NoError(t, err)
}

func (h *harness) events(t *testing.T) []domain.EventType {
	t.Helper()
	msgs, err := h.bus.StreamRead(context.Background(), domain.EventStream, "0", 0)
	require.NoError(t, err)
	out := make([]domain.EventType, 0, len(msgs))
	for _, m := range msgs {
		var evt domain.Event
		require.NoError(t, json.Unmarshal(m.Payload, &evt))
		out = append(out, evt.Type)
	}
	return out
}

// failingLedger wraps a ledger and fails Credit for one account.
type failingLedger struct {
	domain.Ledger
	failCredit string
}

func (l *failingLedger) Credit(ctx context.Context, account string, amount uint64) error {
	if account == l.failCredit {
		return errors.New("ledger unavailable")
	}
	return l.Ledger.Credit(ctx, account, amount)
}
