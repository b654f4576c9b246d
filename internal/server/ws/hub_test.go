package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alanyoungcy/truthpool/internal/clock"
	"github.com/alanyoungcy/truthpool/internal/domain"
	"github.com/alanyoungcy/truthpool/internal/store/memory"
)

func startHub(t *testing.T) (*memory.EventBus, string) {
	t.Helper()
	bus := memory.NewEventBus(0)
	hub := NewHub(bus, clock.NewManual(42), slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	srv := httptest.NewServer(httpHandler(hub))
	t.Cleanup(srv.Close)
	return bus, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func publish(t *testing.T, bus *memory.EventBus, typ domain.EventType) {
	t.Helper()
	body, err := json.Marshal(domain.Event{ID: "e", Type: typ, Payload: json.RawMessage(`{"market_id":0}`)})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), typ.Channel(), body))
}

func TestHubRelaysJSONEvents(t *testing.T) {
	bus, url := startHub(t)
	conn := dial(t, url+"/ws?channels=ch:market_resolved")

	var hello map[string]any
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "hello", hello["type"])
	assert.EqualValues(t, 42, hello["payload"].(map[string]any)["clock"])

	publish(t, bus, domain.EventBetPlaced)
	publish(t, bus, domain.EventMarketResolved)

	var ev domain.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, domain.EventMarketResolved, ev.Type)
	assert.JSONEq(t, `{"market_id":0}`, string(ev.Payload))
}

func TestHubProtoFrames(t *testing.T) {
	bus, url := startHub(t)
	conn := dial(t, url+"/ws?format=proto")

	typ, _, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, typ)

	publish(t, bus, domain.EventSubmissionRevealed)

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var st structpb.Struct
	require.NoError(t, proto.Unmarshal(data, &st))
	assert.Equal(t, "submission_revealed", st.Fields["type"].GetStringValue())
}

func TestIsSubscribed(t *testing.T) {
	c := &client{subs: map[string]bool{"ch:market_*": true, "ch:party_revoked": true}}
	assert.True(t, c.isSubscribed("ch:market_resolved"))
	assert.True(t, c.isSubscribed("ch:party_revoked"))
	assert.False(t, c.isSubscribed("ch:bet_placed"))

	c.handleSubscription(subscribeMsg{Action: "unsubscribe", Channels: []string{"ch:market_*"}})
	assert.False(t, c.isSubscribed("ch:market_created"))
}

func httpHandler(h *Hub) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", h.HandleWS)
	return mux
}
