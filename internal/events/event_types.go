package events

import (
	"time"

	"github.com/spec-kit/ticket-desk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated EventType = "ticket_created"
	EventTicketUpdated EventType = "ticket_updated"
	EventTicketDeleted EventType = "ticket_deleted"
	EventTimelineNoted EventType = "timeline_noted"
)

// Types lists every event type, for subscribers that want all of them.
func Types() []EventType {
	return []EventType{EventTicketCreated, EventTicketUpdated, EventTicketDeleted, EventTimelineNoted}
}

// Event represents a domain event emitted by services. Actor is the identity
// string supplied by the boundary layer; the core never resolves it.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     string      `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Pipeline domain.Pipeline       `json:"pipeline"`
	Priority domain.TicketPriority `json:"priority"`
	Title    string                `json:"title"`
}

// TicketUpdatedPayload payload.
type TicketUpdatedPayload struct {
	Field    domain.Field `json:"field"`
	OldValue *string      `json:"old_value,omitempty"`
	NewValue string       `json:"new_value"`
	Action   string       `json:"action"`
}

// TicketDeletedPayload payload.
type TicketDeletedPayload struct {
	Pipeline domain.Pipeline `json:"pipeline"`
}

// TimelineNotedPayload payload.
type TimelineNotedPayload struct {
	EntryID int64  `json:"entry_id"`
	Action  string `json:"action"`
}
