package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/truthpool/internal/domain"
	"github.com/alanyoungcy/truthpool/internal/store/memory"
)

type fakeNotifier struct{ events []domain.EventType }

func (f *fakeNotifier) NotifyEvent(_ context.Context, ev domain.Event) error {
	f.events = append(f.events, ev.Type)
	return nil
}

type fakeArchiver struct {
	markets []uint64
	subs    []uint64
	err     error
}

func (f *fakeArchiver) ArchiveSettlement(_ context.Context, id uint64) (string, error) {
	f.markets = append(f.markets, id)
	return "settlements/x.json", f.err
}

func (f *fakeArchiver) ArchiveEvidence(_ context.Context, id uint64) (string, error) {
	f.subs = append(f.subs, id)
	return "evidence/x.json", f.err
}

func event(t *testing.T, typ domain.EventType, payload map[string]any) domain.Event {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return domain.Event{ID: "e-" + string(typ), Type: typ, Payload: body, At: time.Now()}
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRelayAuditsNotifiesAndArchives(t *testing.T) {
	ctx := context.Background()
	audit := memory.NewAuditStore()
	n := &fakeNotifier{}
	a := &fakeArchiver{}
	r := NewRelay(memory.NewEventBus(10), audit, n, a, discard())

	r.handle(ctx, event(t, domain.EventBetPlaced, map[string]any{"market_id": 1, "amount": 5}))
	r.handle(ctx, event(t, domain.EventMarketResolved, map[string]any{"market_id": 3, "outcome": true}))
	r.handle(ctx, event(t, domain.EventSubmissionRevealed, map[string]any{"submission_id": 4}))

	entries, err := audit.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	events := make([]string, 0, len(entries))
	for _, e := range entries {
		events = append(events, e.Event)
		assert.NotEmpty(t, e.Detail["event_id"])
	}
	assert.ElementsMatch(t, []string{"bet_placed", "market_resolved", "submission_revealed"}, events)

	assert.Len(t, n.events, 3)
	assert.Equal(t, []uint64{3}, a.markets)
	assert.Equal(t, []uint64{4}, a.subs)
}

func TestRelaySurvivesArchiveFailure(t *testing.T) {
	ctx := context.Background()
	audit := memory.NewAuditStore()
	r := NewRelay(memory.NewEventBus(10), audit, nil, &fakeArchiver{err: errors.New("bucket gone")}, discard())

	r.handle(ctx, event(t, domain.EventMarketResolved, map[string]any{"market_id": 0}))

	entries, err := audit.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRelaySkipsArchiveWithoutRecordID(t *testing.T) {
	ctx := context.Background()
	audit := memory.NewAuditStore()
	a := &fakeArchiver{}
	r := NewRelay(memory.NewEventBus(10), audit, nil, a, discard())

	r.handle(ctx, event(t, domain.EventMarketResolved, map[string]any{"outcome": true}))
	r.handle(ctx, event(t, domain.EventSubmissionRevealed, map[string]any{"submission_id": "nope"}))
	r.handle(ctx, domain.Event{ID: "e-bad", Type: domain.EventMarketResolved, Payload: json.RawMessage(`[1]`)})

	assert.Empty(t, a.markets)
	assert.Empty(t, a.subs)

	entries, err := audit.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestRelayRunConsumesBus(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := memory.NewEventBus(10)
	audit := memory.NewAuditStore()
	r := NewRelay(bus, audit, nil, nil, discard())

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	raw, err := json.Marshal(event(t, domain.EventPartyAuthorized, map[string]any{"party": "alice"}))
	require.NoError(t, err)

	// The subscription is registered asynchronously, so keep publishing
	// until the first event lands.
	require.Eventually(t, func() bool {
		_ = bus.Publish(ctx, domain.EventPartyAuthorized.Channel(), raw)
		entries, _ := audit.List(ctx, domain.ListOpts{})
		return len(entries) > 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}
