package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/truthpool/internal/domain"
)

// EventPublisher wraps state transitions in a domain.Event and fans them out
// on the bus: once on the type's pub/sub channel and once onto the durable
// event stream. Publish failures are logged, never returned; the mutation
// that produced the event has already happened.
type EventPublisher struct {
	bus    domain.EventBus
	logger *slog.Logger
}

// NewEventPublisher creates an EventPublisher. A nil bus disables publishing.
func NewEventPublisher(bus domain.EventBus, logger *slog.Logger) *EventPublisher {
	return &EventPublisher{bus: bus, logger: logger}
}

// Emit publishes payload as an event of type typ.
func (p *EventPublisher) Emit(ctx context.Context, typ domain.EventType, payload any) {
	if p == nil || p.bus == nil {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		p.logger.WarnContext(ctx, "events: marshal payload failed",
			slog.String("type", string(typ)),
			slog.String("error", err.Error()),
		)
		return
	}
	evt, err := json.Marshal(domain.Event{
		ID:      uuid.NewString(),
		Type:    typ,
		Payload: body,
		At:      time.Now().UTC(),
	})
	if err != nil {
		p.logger.WarnContext(ctx, "events: marshal envelope failed",
			slog.String("type", string(typ)),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := p.bus.Publish(ctx, typ.Channel(), evt); err != nil {
		p.logger.WarnContext(ctx, "events: publish failed",
			slog.String("type", string(typ)),
			slog.String("error", err.Error()),
		)
	}
	if err := p.bus.StreamAppend(ctx, domain.EventStream, evt); err != nil {
		p.logger.WarnContext(ctx, "events: stream append failed",
			slog.String("type", string(typ)),
			slog.String("error", err.Error()),
		)
	}
}
