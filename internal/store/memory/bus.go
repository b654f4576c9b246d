package memory

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/alanyoungcy/truthpool/internal/domain"
)

// subscriberBuffer bounds each subscription; slow subscribers drop messages.
const subscriberBuffer = 128

// EventBus implements domain.EventBus in process. Channel names ending in
// "*" subscribe by prefix, mirroring Redis PSUBSCRIBE.
type EventBus struct {
	mu      sync.RWMutex
	subs    map[*subscription]struct{}
	streams map[string][]domain.StreamMessage
	maxLen  int
}

type subscription struct {
	pattern string
	ch      chan []byte
}

// NewEventBus creates an EventBus whose streams keep at most maxLen entries.
func NewEventBus(maxLen int) *EventBus {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &EventBus{
		subs:    make(map[*subscription]struct{}),
		streams: make(map[string][]domain.StreamMessage),
		maxLen:  maxLen,
	}
}

func (b *EventBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for s := range b.subs {
		if !matches(s.pattern, channel) {
			continue
		}
		msg := append([]byte(nil), payload...)
		select {
		case s.ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel that is closed when ctx is done.
func (b *EventBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	s := &subscription{pattern: channel, ch: make(chan []byte, subscriberBuffer)}

	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, s)
		close(s.ch)
		b.mu.Unlock()
	}()
	return s.ch, nil
}

func (b *EventBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	msgs := b.streams[stream]
	var seq uint64 = 1
	if n := len(msgs); n > 0 {
		last, _ := strconv.ParseUint(strings.TrimSuffix(msgs[n-1].ID, "-0"), 10, 64)
		seq = last + 1
	}
	msgs = append(msgs, domain.StreamMessage{
		ID:      strconv.FormatUint(seq, 10) + "-0",
		Payload: append([]byte(nil), payload...),
	})
	if len(msgs) > b.maxLen {
		msgs = msgs[len(msgs)-b.maxLen:]
	}
	b.streams[stream] = msgs
	return nil
}

// StreamRead returns up to count messages after lastID ("0" reads from the
// start).
func (b *EventBus) StreamRead(_ context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	after, _ := strconv.ParseUint(strings.SplitN(lastID, "-", 2)[0], 10, 64)
	var out []domain.StreamMessage
	for _, m := range b.streams[stream] {
		seq, _ := strconv.ParseUint(strings.TrimSuffix(m.ID, "-0"), 10, 64)
		if seq <= after {
			continue
		}
		out = append(out, m)
		if count > 0 && len(out) == count {
			break
		}
	}
	return out, nil
}

func matches(pattern, channel string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(channel, prefix)
	}
	return pattern == channel
}

var _ domain.EventBus = (*EventBus)(nil)
