package repository

import (
	"context"

	"github.com/spec-kit/ticket-desk/internal/domain"
)

// TicketFilter captures listing parameters. Empty or "all" values disable the
// corresponding match; Search is a case-insensitive substring match against
// title, description, customer and id.
type TicketFilter struct {
	Pipeline string
	Status   string
	Search   string
}

// Wants reports whether the pipeline filter is active.
func (f TicketFilter) WantsPipeline() bool {
	return f.Pipeline != "" && f.Pipeline != "all"
}

// WantsStatus reports whether the status filter is active.
func (f TicketFilter) WantsStatus() bool {
	return f.Status != "" && f.Status != "all"
}

// TicketRepository encapsulates ticket persistence. Missing rows surface as
// pgx.ErrNoRows regardless of backend.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Delete(ctx context.Context, id string) error
	// MaxTicketNumber scans stored identifiers matching TKT-<n> and returns
	// the largest numeric suffix, zero when none exist. Always computed from
	// live state; there is no persisted counter.
	MaxTicketNumber(ctx context.Context) (int, error)
	// PipelineCounts derives active-ticket counts per enumerated pipeline and
	// the grand total across all tickets.
	PipelineCounts(ctx context.Context) (domain.PipelineStats, error)
}

// TimelineRepository owns the append-only audit log.
type TimelineRepository interface {
	Append(ctx context.Context, entry *domain.TimelineEntry) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TimelineEntry, error)
	DeleteByTicket(ctx context.Context, ticketID string) error
}

// Store bundles both repositories behind one transactional boundary.
// WithinTx runs fn atomically: either every write inside commits or none do.
type Store interface {
	Tickets() TicketRepository
	Timeline() TimelineRepository
	WithinTx(ctx context.Context, fn func(tickets TicketRepository, timeline TimelineRepository) error) error
}
