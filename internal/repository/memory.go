package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-desk/internal/domain"
)

// memoryStore is the embedded fallback used when no POSTGRES_DSN is
// configured, and the substrate for tests. One mutex serializes every write,
// which makes WithinTx a true critical section: identifier allocation and the
// subsequent insert can never interleave with a concurrent create.
type memoryStore struct {
	mu          sync.Mutex
	tickets     map[string]domain.Ticket
	entries     map[string][]domain.TimelineEntry
	nextEntryID int64
}

// NewMemoryStore builds an empty in-memory Store.
func NewMemoryStore() Store {
	return &memoryStore{
		tickets: make(map[string]domain.Ticket),
		entries: make(map[string][]domain.TimelineEntry),
	}
}

func (s *memoryStore) Tickets() TicketRepository {
	return &lockedTickets{s: s}
}

func (s *memoryStore) Timeline() TimelineRepository {
	return &lockedTimeline{s: s}
}

func (s *memoryStore) WithinTx(ctx context.Context, fn func(tickets TicketRepository, timeline TimelineRepository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// No rollback: fn either fails before mutating or is trusted to leave the
	// maps consistent; the lock guarantees nobody observes an intermediate state.
	return fn(&rawTickets{s: s}, &rawTimeline{s: s})
}

// lockedTickets guards each standalone call with the store mutex.
type lockedTickets struct {
	s *memoryStore
}

func (r *lockedTickets) Create(ctx context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (&rawTickets{s: r.s}).Create(ctx, ticket)
}

func (r *lockedTickets) Update(ctx context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (&rawTickets{s: r.s}).Update(ctx, ticket)
}

func (r *lockedTickets) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (&rawTickets{s: r.s}).GetByID(ctx, id)
}

func (r *lockedTickets) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (&rawTickets{s: r.s}).List(ctx, filter)
}

func (r *lockedTickets) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (&rawTickets{s: r.s}).Delete(ctx, id)
}

func (r *lockedTickets) MaxTicketNumber(ctx context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (&rawTickets{s: r.s}).MaxTicketNumber(ctx)
}

func (r *lockedTickets) PipelineCounts(ctx context.Context) (domain.PipelineStats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (&rawTickets{s: r.s}).PipelineCounts(ctx)
}

type lockedTimeline struct {
	s *memoryStore
}

func (r *lockedTimeline) Append(ctx context.Context, entry *domain.TimelineEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (&rawTimeline{s: r.s}).Append(ctx, entry)
}

func (r *lockedTimeline) ListByTicket(ctx context.Context, ticketID string) ([]domain.TimelineEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (&rawTimeline{s: r.s}).ListByTicket(ctx, ticketID)
}

func (r *lockedTimeline) DeleteByTicket(ctx context.Context, ticketID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (&rawTimeline{s: r.s}).DeleteByTicket(ctx, ticketID)
}

// rawTickets assumes the store mutex is held by the caller.
type rawTickets struct {
	s *memoryStore
}

func (r *rawTickets) Create(ctx context.Context, ticket *domain.Ticket) error {
	if _, exists := r.s.tickets[ticket.ID]; exists {
		return &duplicateIDError{id: ticket.ID}
	}
	r.s.tickets[ticket.ID] = *ticket
	return nil
}

func (r *rawTickets) Update(ctx context.Context, ticket *domain.Ticket) error {
	if _, exists := r.s.tickets[ticket.ID]; !exists {
		return pgx.ErrNoRows
	}
	r.s.tickets[ticket.ID] = *ticket
	return nil
}

func (r *rawTickets) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, exists := r.s.tickets[id]
	if !exists {
		return nil, pgx.ErrNoRows
	}
	return &ticket, nil
}

func (r *rawTickets) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	result := make([]domain.Ticket, 0, len(r.s.tickets))
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	for _, ticket := range r.s.tickets {
		if filter.WantsPipeline() && string(ticket.Pipeline) != filter.Pipeline {
			continue
		}
		if filter.WantsStatus() && string(ticket.Status) != filter.Status {
			continue
		}
		if search != "" && !matchesSearch(ticket, search) {
			continue
		}
		result = append(result, ticket)
	}
	// Newest first; id breaks ties so repeated calls stay stable.
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

func matchesSearch(ticket domain.Ticket, search string) bool {
	return strings.Contains(strings.ToLower(ticket.Title), search) ||
		strings.Contains(strings.ToLower(ticket.Description), search) ||
		strings.Contains(strings.ToLower(ticket.Customer), search) ||
		strings.Contains(strings.ToLower(ticket.ID), search)
}

func (r *rawTickets) Delete(ctx context.Context, id string) error {
	if _, exists := r.s.tickets[id]; !exists {
		return pgx.ErrNoRows
	}
	delete(r.s.tickets, id)
	// Cascade, mirroring the FK ON DELETE CASCADE of the SQL schema.
	delete(r.s.entries, id)
	return nil
}

func (r *rawTickets) MaxTicketNumber(ctx context.Context) (int, error) {
	max := 0
	for id := range r.s.tickets {
		if n, ok := domain.TicketNumber(id); ok && n > max {
			max = n
		}
	}
	return max, nil
}

func (r *rawTickets) PipelineCounts(ctx context.Context) (domain.PipelineStats, error) {
	var stats domain.PipelineStats
	for _, ticket := range r.s.tickets {
		stats.Total++
		if ticket.Status != domain.StatusCompleted {
			stats.Add(ticket.Pipeline)
		}
	}
	return stats, nil
}

// rawTimeline assumes the store mutex is held by the caller.
type rawTimeline struct {
	s *memoryStore
}

func (r *rawTimeline) Append(ctx context.Context, entry *domain.TimelineEntry) error {
	// Existence of the ticket is deliberately not checked; the coordinator is
	// the one responsible for pairing entries with live tickets.
	r.s.nextEntryID++
	entry.ID = r.s.nextEntryID
	r.s.entries[entry.TicketID] = append(r.s.entries[entry.TicketID], *entry)
	return nil
}

func (r *rawTimeline) ListByTicket(ctx context.Context, ticketID string) ([]domain.TimelineEntry, error) {
	stored := r.s.entries[ticketID]
	result := make([]domain.TimelineEntry, len(stored))
	copy(result, stored)
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *rawTimeline) DeleteByTicket(ctx context.Context, ticketID string) error {
	delete(r.s.entries, ticketID)
	return nil
}

// duplicateIDError reports an identifier collision, the memory-store analogue
// of a unique constraint violation.
type duplicateIDError struct {
	id string
}

func (e *duplicateIDError) Error() string {
	return "duplicate ticket id " + e.id
}

// IsDuplicateID reports whether err is a memory-store identifier collision.
func IsDuplicateID(err error) bool {
	_, ok := err.(*duplicateIDError)
	return ok
}
