// Package notify pushes operator alerts for market resolutions and
// submission reveals to chat channels (Telegram, Discord).
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/truthpool/internal/domain"
)

// Sender is one delivery channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans a message out to every sender. Events not in the allow
// list are dropped by Notify; an empty list allows everything.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier for senders, filtered to events.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether at least one sender is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.senders) > 0
}

// Notify sends title and message if event passes the filter.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// NotifyEvent renders a bus event and sends it. Event types without a
// rendering are ignored.
func (n *Notifier) NotifyEvent(ctx context.Context, ev domain.Event) error {
	title, message, ok := Render(ev)
	if !ok {
		return nil
	}
	return n.Notify(ctx, string(ev.Type), title, message)
}

// Render formats the events operators are alerted about.
func Render(ev domain.Event) (title, message string, ok bool) {
	var p struct {
		MarketID     *uint64 `json:"market_id"`
		SubmissionID *uint64 `json:"submission_id"`
		Description  string  `json:"description"`
		Outcome      bool    `json:"outcome"`
		TotalYes     uint64  `json:"total_yes"`
		TotalNo      uint64  `json:"total_no"`
		RevealedBy   string  `json:"revealed_by"`
	}
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return "", "", false
	}

	switch ev.Type {
	case domain.EventMarketResolved:
		if p.MarketID == nil {
			return "", "", false
		}
		return fmt.Sprintf("Market #%d resolved %s", *p.MarketID, domain.Side(p.Outcome)),
			fmt.Sprintf("%s\nPool: %d yes / %d no", p.Description, p.TotalYes, p.TotalNo), true
	case domain.EventSubmissionRevealed:
		if p.SubmissionID == nil {
			return "", "", false
		}
		return fmt.Sprintf("Submission #%d revealed", *p.SubmissionID),
			fmt.Sprintf("Revealed by %s", p.RevealedBy), true
	default:
		return "", "", false
	}
}

// dispatch delivers to every sender, continuing past failures.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
