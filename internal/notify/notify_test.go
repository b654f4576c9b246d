package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/truthpool/internal/domain"
)

type recordingSender struct {
	name   string
	err    error
	titles []string
}

func (r *recordingSender) Send(_ context.Context, title, _ string) error {
	r.titles = append(r.titles, title)
	return r.err
}

func (r *recordingSender) Name() string { return r.name }

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func event(t *testing.T, typ domain.EventType, payload map[string]any) domain.Event {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	return domain.Event{ID: "e1", Type: typ, Payload: b}
}

func TestRender(t *testing.T) {
	title, msg, ok := Render(event(t, domain.EventMarketResolved, map[string]any{
		"market_id": 0, "description": "Will it rain tomorrow?", "outcome": true, "total_yes": 100, "total_no": 0,
	}))
	require.True(t, ok)
	assert.Equal(t, "Market #0 resolved yes", title)
	assert.Contains(t, msg, "Will it rain tomorrow?")
	assert.Contains(t, msg, "100 yes / 0 no")

	title, msg, ok = Render(event(t, domain.EventSubmissionRevealed, map[string]any{
		"submission_id": 3, "revealed_by": "judge",
	}))
	require.True(t, ok)
	assert.Equal(t, "Submission #3 revealed", title)
	assert.Equal(t, "Revealed by judge", msg)

	_, _, ok = Render(event(t, domain.EventBetPlaced, map[string]any{"market_id": 1}))
	assert.False(t, ok)
	_, _, ok = Render(domain.Event{Type: domain.EventMarketResolved, Payload: []byte("{")})
	assert.False(t, ok)
}

func TestNotifierFilterAndFailures(t *testing.T) {
	ctx := context.Background()
	good := &recordingSender{name: "good"}
	bad := &recordingSender{name: "bad", err: errors.New("boom")}

	n := NewNotifier([]Sender{good, bad}, []string{"market_resolved"}, discard())
	assert.True(t, n.Enabled())

	require.NoError(t, n.Notify(ctx, "bet_placed", "ignored", ""))
	assert.Empty(t, good.titles)

	err := n.NotifyEvent(ctx, event(t, domain.EventMarketResolved, map[string]any{"market_id": 7, "outcome": false}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: boom")
	assert.Equal(t, []string{"Market #7 resolved no"}, good.titles)
	assert.Len(t, bad.titles, 1)

	assert.False(t, NewNotifier(nil, nil, discard()).Enabled())
}

func TestTelegramAndDiscordSenders(t *testing.T) {
	var got []map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		body["path"] = r.URL.Path
		got = append(got, body)
		if r.URL.Path == "/fail" {
			http.Error(w, "nope", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()
	ctx := context.Background()

	tg := NewTelegramSender("tok", "42").WithBaseURL(srv.URL + "/")
	require.NoError(t, tg.Send(ctx, "T", "M"))
	require.Len(t, got, 1)
	assert.Equal(t, "/bottok/sendMessage", got[0]["path"])
	assert.Equal(t, "42", got[0]["chat_id"])
	assert.Equal(t, "*T*\nM", got[0]["text"])

	require.NoError(t, NewDiscordSender(srv.URL+"/hook").Send(ctx, "T", "M"))
	assert.Equal(t, "**T**\nM", got[1]["content"])

	err := NewDiscordSender(srv.URL+"/fail").Send(ctx, "T", "M")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 400")
}
