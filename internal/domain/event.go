package domain

import (
	"encoding/json"
	"time"
)

// EventType names a state transition published on the event bus.
type EventType string

const (
	EventMarketCreated      EventType = "market_created"
	EventBetPlaced          EventType = "bet_placed"
	EventMarketResolved     EventType = "market_resolved"
	EventWinningsClaimed    EventType = "winnings_claimed"
	EventSubmissionCreated  EventType = "submission_created"
	EventSubmissionRevealed EventType = "submission_revealed"
	EventPartyAuthorized    EventType = "party_authorized"
	EventPartyRevoked       EventType = "party_revoked"
)

// EventStream is the durable stream every event is appended to.
const EventStream = "events"

// Channel returns the pub/sub channel for the event type.
func (t EventType) Channel() string {
	return "ch:" + string(t)
}

// Event is the envelope for bus messages.
type Event struct {
	ID      string          `json:"id"`
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
	At      time.Time       `json:"at"`
}
