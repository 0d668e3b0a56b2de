package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-desk/internal/domain"
	"github.com/spec-kit/ticket-desk/internal/events"
	"github.com/spec-kit/ticket-desk/internal/observability"
	"github.com/spec-kit/ticket-desk/internal/repository"
	apperrors "github.com/spec-kit/ticket-desk/pkg/errorutil"
)

// createRetries bounds how often a create is retried when two allocations
// race to the same identifier and the second insert hits the unique key.
const createRetries = 3

// TicketService is the mutation coordinator: every observable ticket mutation
// runs inside one store transaction together with exactly one timeline append.
type TicketService struct {
	store       repository.Store
	dispatcher  events.Dispatcher
	transitions domain.TransitionPolicy
	logger      *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store       repository.Store
	Dispatcher  events.Dispatcher
	Transitions domain.TransitionPolicy
	Logger      *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Customer    string
	Pipeline    string
	Priority    string
	AssignedTo  string
}

// TicketUpdateInput describes a single-field update. OldValue, when supplied
// by the caller, is echoed into the timeline action text.
type TicketUpdateInput struct {
	Field    string
	Value    string
	OldValue *string
}

// NewTicketService constructs the service. A nil transition policy defaults
// to the permissive one, which matches the system's historical behavior.
func NewTicketService(deps TicketDependencies) *TicketService {
	transitions := deps.Transitions
	if transitions == nil {
		transitions = domain.PermissiveTransitions{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		store:       deps.Store,
		dispatcher:  deps.Dispatcher,
		transitions: transitions,
		logger:      logger,
	}
}

// CreateTicket validates input, allocates the next TKT-<n> identifier and
// writes the ticket row plus its "Ticket created" timeline entry atomically.
func (s *TicketService) CreateTicket(ctx context.Context, actor string, input TicketCreateInput) (*domain.Ticket, error) {
	missing := map[string]any{}
	if strings.TrimSpace(input.Title) == "" {
		missing["title"] = "required"
	}
	if strings.TrimSpace(input.Description) == "" {
		missing["description"] = "required"
	}
	if strings.TrimSpace(input.Pipeline) == "" {
		missing["pipeline"] = "required"
	}
	if strings.TrimSpace(input.Priority) == "" {
		missing["priority"] = "required"
	}
	if len(missing) > 0 {
		observability.RecordMutation("create", "rejected")
		return nil, apperrors.NewValidationError("title, description, pipeline and priority are required", missing)
	}

	var created *domain.Ticket
	var err error
	for attempt := 0; attempt < createRetries; attempt++ {
		created, err = s.createOnce(ctx, actor, input)
		if err == nil {
			break
		}
		if !isDuplicateKey(err) {
			observability.RecordMutation("create", "failed")
			return nil, apperrors.NewStorageFailure(err)
		}
		s.logger.Warn("ticket id collision, retrying allocation", zap.Int("attempt", attempt+1))
	}
	if err != nil {
		observability.RecordMutation("create", "failed")
		return nil, apperrors.NewConflict("could not allocate a unique ticket id", nil)
	}

	observability.RecordMutation("create", "ok")
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: created.ID,
		Actor:    actor,
		Payload: events.TicketCreatedPayload{
			Pipeline: created.Pipeline,
			Priority: created.Priority,
			Title:    created.Title,
		},
	})
	return created, nil
}

func (s *TicketService) createOnce(ctx context.Context, actor string, input TicketCreateInput) (*domain.Ticket, error) {
	now := time.Now()
	var created domain.Ticket
	err := s.store.WithinTx(ctx, func(tickets repository.TicketRepository, timeline repository.TimelineRepository) error {
		max, err := tickets.MaxTicketNumber(ctx)
		if err != nil {
			return err
		}
		created = domain.Ticket{
			ID:          domain.NextTicketID(max),
			Title:       strings.TrimSpace(input.Title),
			Description: strings.TrimSpace(input.Description),
			Customer:    strings.TrimSpace(input.Customer),
			Pipeline:    domain.Pipeline(input.Pipeline),
			Status:      domain.StatusNew,
			Priority:    domain.TicketPriority(input.Priority),
			AssignedTo:  strings.TrimSpace(input.AssignedTo),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tickets.Create(ctx, &created); err != nil {
			return err
		}
		return timeline.Append(ctx, &domain.TimelineEntry{
			TicketID:  created.ID,
			Action:    "Ticket created",
			User:      actor,
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// GetTicket returns a ticket joined with its chronologically ordered timeline.
func (s *TicketService) GetTicket(ctx context.Context, id string) (*domain.Ticket, []domain.TimelineEntry, error) {
	ticket, err := s.store.Tickets().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
		}
		return nil, nil, apperrors.NewStorageFailure(err)
	}
	entries, err := s.store.Timeline().ListByTicket(ctx, id)
	if err != nil {
		return nil, nil, apperrors.NewStorageFailure(err)
	}
	return ticket, entries, nil
}

// ListTickets returns tickets matching the filter, newest first.
func (s *TicketService) ListTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	tickets, err := s.store.Tickets().List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewStorageFailure(err)
	}
	return tickets, nil
}

// UpdateTicketField applies one allow-listed field change and appends the
// describing timeline entry in the same transaction.
func (s *TicketService) UpdateTicketField(ctx context.Context, actor, id string, input TicketUpdateInput) (*domain.Ticket, error) {
	field, ok := domain.ParseField(input.Field)
	if !ok {
		observability.RecordMutation("update", "rejected")
		return nil, apperrors.NewValidationError("invalid field", map[string]any{"field": input.Field})
	}
	if input.Value == "" {
		observability.RecordMutation("update", "rejected")
		return nil, apperrors.NewValidationError("value is required", nil)
	}

	var updated domain.Ticket
	err := s.store.WithinTx(ctx, func(tickets repository.TicketRepository, timeline repository.TimelineRepository) error {
		ticket, err := tickets.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if field == domain.FieldStatus {
			next := domain.TicketStatus(input.Value)
			if !s.transitions.Allowed(ticket.Status, next) {
				return apperrors.NewValidationError("status transition not allowed", map[string]any{
					"from": ticket.Status,
					"to":   next,
				})
			}
		}
		field.Apply(ticket, input.Value)
		ticket.UpdatedAt = time.Now()
		if err := tickets.Update(ctx, ticket); err != nil {
			return err
		}
		updated = *ticket
		return timeline.Append(ctx, &domain.TimelineEntry{
			TicketID:  ticket.ID,
			Action:    updateAction(field, input.OldValue, input.Value),
			User:      actor,
			CreatedAt: ticket.UpdatedAt,
		})
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			observability.RecordMutation("update", "not_found")
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
		}
		var domainErr *apperrors.DomainError
		if errors.As(err, &domainErr) {
			observability.RecordMutation("update", "rejected")
			return nil, err
		}
		observability.RecordMutation("update", "failed")
		return nil, apperrors.NewStorageFailure(err)
	}

	observability.RecordMutation("update", "ok")
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketUpdated,
		TicketID: updated.ID,
		Actor:    actor,
		Payload: events.TicketUpdatedPayload{
			Field:    field,
			OldValue: input.OldValue,
			NewValue: input.Value,
			Action:   updateAction(field, input.OldValue, input.Value),
		},
	})
	return &updated, nil
}

// DeleteTicket removes the ticket and all of its timeline entries as one
// atomic unit; no orphaned entry survives from the caller's perspective.
func (s *TicketService) DeleteTicket(ctx context.Context, actor, id string) error {
	var pipeline domain.Pipeline
	err := s.store.WithinTx(ctx, func(tickets repository.TicketRepository, timeline repository.TimelineRepository) error {
		ticket, err := tickets.GetByID(ctx, id)
		if err != nil {
			return err
		}
		pipeline = ticket.Pipeline
		if err := timeline.DeleteByTicket(ctx, id); err != nil {
			return err
		}
		return tickets.Delete(ctx, id)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			observability.RecordMutation("delete", "not_found")
			return apperrors.NewNotFound("ticket", map[string]any{"id": id})
		}
		observability.RecordMutation("delete", "failed")
		return apperrors.NewStorageFailure(err)
	}

	observability.RecordMutation("delete", "ok")
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketDeleted,
		TicketID: id,
		Actor:    actor,
		Payload:  events.TicketDeletedPayload{Pipeline: pipeline},
	})
	return nil
}

// AddTimelineEntry appends a free-form entry attributed to the given user.
// Ticket existence is deliberately not a precondition here.
func (s *TicketService) AddTimelineEntry(ctx context.Context, id, action, user string) (*domain.TimelineEntry, error) {
	if strings.TrimSpace(action) == "" {
		return nil, apperrors.NewValidationError("action is required", nil)
	}
	entry := &domain.TimelineEntry{
		TicketID:  id,
		Action:    action,
		User:      user,
		CreatedAt: time.Now(),
	}
	if err := s.store.Timeline().Append(ctx, entry); err != nil {
		return nil, apperrors.NewStorageFailure(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTimelineNoted,
		TicketID: id,
		Actor:    user,
		Payload:  events.TimelineNotedPayload{EntryID: entry.ID, Action: action},
	})
	return entry, nil
}

// updateAction composes the human-readable description recorded for a field
// change, e.g. `Status changed from "new" to "in-progress"`.
func updateAction(field domain.Field, oldValue *string, newValue string) string {
	if oldValue != nil {
		return fmt.Sprintf("%s changed from %q to %q", field.Label(), *oldValue, newValue)
	}
	return fmt.Sprintf("%s updated to %q", field.Label(), newValue)
}

func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return repository.IsDuplicateID(err)
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
