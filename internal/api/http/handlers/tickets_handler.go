package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/spec-kit/ticket-desk/internal/actor"
	"github.com/spec-kit/ticket-desk/internal/api/dto"
	"github.com/spec-kit/ticket-desk/internal/domain"
	"github.com/spec-kit/ticket-desk/internal/repository"
	"github.com/spec-kit/ticket-desk/internal/service"
	apperrors "github.com/spec-kit/ticket-desk/pkg/errorutil"
)

// TicketsHandler maps the ticket lifecycle operations onto HTTP.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// ListTickets GET /api/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter := repository.TicketFilter{
		Pipeline: c.Query("pipeline"),
		Status:   c.Query("status"),
		Search:   c.Query("search"),
	}
	tickets, err := h.service.ListTickets(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CreateTicket POST /api/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if details := dto.Validate(req); details != nil {
		return apperrors.NewValidationError("title, description, pipeline and priority required", details)
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), actor.FromContext(c), service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Customer:    req.Customer,
		Pipeline:    req.Pipeline,
		Priority:    req.Priority,
		AssignedTo:  req.AssignedTo,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, entries, err := h.service.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket, entries)})
}

// UpdateTicket PATCH /api/tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if details := dto.Validate(req); details != nil {
		return apperrors.NewValidationError("field and value required", details)
	}

	ticket, err := h.service.UpdateTicketField(c.UserContext(), actor.FromContext(c), c.Params("id"), service.TicketUpdateInput{
		Field:    req.Field,
		Value:    req.Value,
		OldValue: req.OldValue,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// DeleteTicket DELETE /api/tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	if err := h.service.DeleteTicket(c.UserContext(), actor.FromContext(c), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"deleted": true}})
}

// AddTimelineEntry POST /api/tickets/:id/timeline.
func (h *TicketsHandler) AddTimelineEntry(c *fiber.Ctx) error {
	var req dto.AddTimelineEntryRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if details := dto.Validate(req); details != nil {
		return apperrors.NewValidationError("action required", details)
	}

	// The ticket id is retained inside the stored entry, so it cannot stay a
	// view into fiber's reusable request buffer.
	entry, err := h.service.AddTimelineEntry(c.UserContext(), utils.CopyString(c.Params("id")), req.Action, actor.FromContext(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": timelineEntryResponse(entry)})
}

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:          ticket.ID,
		Title:       ticket.Title,
		Description: ticket.Description,
		Customer:    ticket.Customer,
		Pipeline:    ticket.Pipeline,
		Status:      ticket.Status,
		Priority:    ticket.Priority,
		AssignedTo:  ticket.AssignedTo,
		CreatedAt:   ticket.CreatedAt,
		UpdatedAt:   ticket.UpdatedAt,
	}
}

func ticketDetail(ticket *domain.Ticket, entries []domain.TimelineEntry) dto.TicketDetailResponse {
	timeline := make([]dto.TimelineEntryResponse, 0, len(entries))
	for i := range entries {
		timeline = append(timeline, timelineEntryResponse(&entries[i]))
	}
	return dto.TicketDetailResponse{
		TicketResponse: ticketResponse(ticket),
		Timeline:       timeline,
	}
}

func timelineEntryResponse(entry *domain.TimelineEntry) dto.TimelineEntryResponse {
	return dto.TimelineEntryResponse{
		ID:        entry.ID,
		TicketID:  entry.TicketID,
		Action:    entry.Action,
		User:      entry.User,
		CreatedAt: entry.CreatedAt,
	}
}
