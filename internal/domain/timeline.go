package domain

import "time"

// TimelineEntry is an immutable audit record of a single change to a ticket.
// Entries are only ever created as a side effect of a ticket mutation and are
// removed en masse when their owning ticket is deleted.
type TimelineEntry struct {
	ID        int64
	TicketID  string
	Action    string
	User      string
	CreatedAt time.Time
}
