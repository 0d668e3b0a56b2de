package dto

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/spec-kit/ticket-desk/internal/domain"
)

var validate = validator.New()

// Validate runs struct-tag validation and returns per-field details on failure.
func Validate(s any) map[string]any {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	details := map[string]any{}
	if fieldErrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range fieldErrs {
			details[fe.Field()] = fe.Tag()
		}
	} else {
		details["error"] = err.Error()
	}
	return details
}

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
	Customer    string `json:"customer"`
	Pipeline    string `json:"pipeline" validate:"required"`
	Priority    string `json:"priority" validate:"required"`
	AssignedTo  string `json:"assigned_to"`
}

// UpdateTicketRequest carries a single-field update. OldValue is optional and
// only shapes the timeline action text.
type UpdateTicketRequest struct {
	Field    string  `json:"field" validate:"required"`
	Value    string  `json:"value" validate:"required"`
	OldValue *string `json:"old_value"`
}

// AddTimelineEntryRequest payload.
type AddTimelineEntryRequest struct {
	Action string `json:"action" validate:"required"`
}

// TicketResponse is the wire shape of a ticket.
type TicketResponse struct {
	ID          string                `json:"id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Customer    string                `json:"customer,omitempty"`
	Pipeline    domain.Pipeline       `json:"pipeline"`
	Status      domain.TicketStatus   `json:"status"`
	Priority    domain.TicketPriority `json:"priority"`
	AssignedTo  string                `json:"assigned_to,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// TicketDetailResponse joins a ticket with its ordered timeline.
type TicketDetailResponse struct {
	TicketResponse
	Timeline []TimelineEntryResponse `json:"timeline"`
}

// TimelineEntryResponse is the wire shape of a timeline entry.
type TimelineEntryResponse struct {
	ID        int64     `json:"id"`
	TicketID  string    `json:"ticket_id"`
	Action    string    `json:"action"`
	User      string    `json:"user"`
	CreatedAt time.Time `json:"created_at"`
}

// StatsResponse reports active-ticket counts per pipeline plus the total.
type StatsResponse struct {
	Marketing int `json:"marketing"`
	Sales     int `json:"sales"`
	Orders    int `json:"orders"`
	Support   int `json:"support"`
	Total     int `json:"total"`
}
