package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/truthpool/internal/domain"
	"github.com/alanyoungcy/truthpool/internal/metrics"
)

// allEvents subscribes to every event channel.
const allEvents = "ch:*"

// EventNotifier alerts operators about an event.
type EventNotifier interface {
	NotifyEvent(ctx context.Context, ev domain.Event) error
}

// SettlementArchiver copies settled markets and revealed submissions to
// object storage.
type SettlementArchiver interface {
	ArchiveSettlement(ctx context.Context, marketID uint64) (string, error)
	ArchiveEvidence(ctx context.Context, submissionID uint64) (string, error)
}

// Relay consumes the event bus and performs the side effects of each state
// transition: the audit log entry, operator notifications and archiving.
// A failing side effect is logged and counted; it never stops the relay.
type Relay struct {
	bus      domain.EventBus
	audit    domain.AuditStore
	notifier EventNotifier
	archiver SettlementArchiver
	logger   *slog.Logger
}

// NewRelay creates a Relay. notifier and archiver may be nil.
func NewRelay(bus domain.EventBus, audit domain.AuditStore, notifier EventNotifier, archiver SettlementArchiver, logger *slog.Logger) *Relay {
	return &Relay{
		bus:      bus,
		audit:    audit,
		notifier: notifier,
		archiver: archiver,
		logger:   logger.With(slog.String("component", "relay")),
	}
}

// Run relays events until ctx ends.
func (r *Relay) Run(ctx context.Context) error {
	msgs, err := r.bus.Subscribe(ctx, allEvents)
	if err != nil {
		return fmt.Errorf("relay: subscribe: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-msgs:
			if !ok {
				return ctx.Err()
			}
			var ev domain.Event
			if err := json.Unmarshal(raw, &ev); err != nil {
				r.logger.WarnContext(ctx, "relay: undecodable event", slog.String("error", err.Error()))
				metrics.EventsRelayed.WithLabelValues("unknown", "decode_error").Inc()
				continue
			}
			r.handle(ctx, ev)
		}
	}
}

func (r *Relay) handle(ctx context.Context, ev domain.Event) {
	status := "ok"
	fail := func(step string, err error) {
		status = step + "_error"
		r.logger.WarnContext(ctx, "relay: "+step+" failed",
			slog.String("type", string(ev.Type)),
			slog.String("event_id", ev.ID),
			slog.String("error", err.Error()),
		)
	}

	var detail map[string]any
	if err := json.Unmarshal(ev.Payload, &detail); err != nil || detail == nil {
		detail = map[string]any{}
	}
	detail["event_id"] = ev.ID
	if err := r.audit.Log(ctx, string(ev.Type), detail); err != nil {
		fail("audit", err)
	}

	if r.notifier != nil {
		if err := r.notifier.NotifyEvent(ctx, ev); err != nil {
			fail("notify", err)
		}
	}

	if r.archiver != nil {
		path, err := r.archive(ctx, ev)
		if err != nil {
			fail("archive", err)
		} else if path != "" {
			r.logger.InfoContext(ctx, "relay: archived", slog.String("type", string(ev.Type)), slog.String("path", path))
		}
	}

	metrics.EventsRelayed.WithLabelValues(string(ev.Type), status).Inc()
}

// archive writes the settlement or evidence for ev. Other event types are
// skipped with an empty path. A payload without the record id is an error
// rather than a silent archive of record 0.
func (r *Relay) archive(ctx context.Context, ev domain.Event) (string, error) {
	if ev.Type != domain.EventMarketResolved && ev.Type != domain.EventSubmissionRevealed {
		return "", nil
	}
	var ids struct {
		MarketID     *uint64 `json:"market_id"`
		SubmissionID *uint64 `json:"submission_id"`
	}
	if err := json.Unmarshal(ev.Payload, &ids); err != nil {
		return "", fmt.Errorf("decode payload: %w", err)
	}
	if ev.Type == domain.EventMarketResolved {
		if ids.MarketID == nil {
			return "", errors.New("payload has no market_id")
		}
		return r.archiver.ArchiveSettlement(ctx, *ids.MarketID)
	}
	if ids.SubmissionID == nil {
		return "", errors.New("payload has no submission_id")
	}
	return r.archiver.ArchiveEvidence(ctx, *ids.SubmissionID)
}
