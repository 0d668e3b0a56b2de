package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Pipeline enumerates the business workflows a ticket can belong to.
type Pipeline string

const (
	PipelineMarketing Pipeline = "marketing"
	PipelineSales     Pipeline = "sales"
	PipelineOrders    Pipeline = "orders"
	PipelineSupport   Pipeline = "support"
)

// Pipelines lists the enumerated workflows in display order.
func Pipelines() []Pipeline {
	return []Pipeline{PipelineMarketing, PipelineSales, PipelineOrders, PipelineSupport}
}

// IsValid reports whether p is one of the enumerated pipelines.
func (p Pipeline) IsValid() bool {
	switch p {
	case PipelineMarketing, PipelineSales, PipelineOrders, PipelineSupport:
		return true
	}
	return false
}

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	StatusNew        TicketStatus = "new"
	StatusInProgress TicketStatus = "in-progress"
	StatusPending    TicketStatus = "pending"
	StatusCompleted  TicketStatus = "completed"
)

// IsValid reports whether s is a known status value.
func (s TicketStatus) IsValid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusPending, StatusCompleted:
		return true
	}
	return false
}

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	PriorityHigh   TicketPriority = "high"
	PriorityMedium TicketPriority = "medium"
	PriorityLow    TicketPriority = "low"
)

// IsValid reports whether p is a known priority value.
func (p TicketPriority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Ticket is the aggregate for a unit of work flowing through a pipeline.
type Ticket struct {
	ID          string
	Title       string
	Description string
	Customer    string
	Pipeline    Pipeline
	Status      TicketStatus
	Priority    TicketPriority
	AssignedTo  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Field identifies one of the mutable ticket fields accepted by update
// operations. Anything outside this set is rejected before any write.
type Field string

const (
	FieldPipeline    Field = "pipeline"
	FieldStatus      Field = "status"
	FieldPriority    Field = "priority"
	FieldAssignedTo  Field = "assigned_to"
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
	FieldCustomer    Field = "customer"
)

var fieldLabels = map[Field]string{
	FieldPipeline:    "Pipeline",
	FieldStatus:      "Status",
	FieldPriority:    "Priority",
	FieldAssignedTo:  "Assigned To",
	FieldTitle:       "Title",
	FieldDescription: "Description",
	FieldCustomer:    "Customer",
}

// ParseField validates a caller-supplied field name against the allow-list.
func ParseField(name string) (Field, bool) {
	f := Field(name)
	_, ok := fieldLabels[f]
	return f, ok
}

// Label returns the human-readable label used in timeline action strings.
func (f Field) Label() string {
	return fieldLabels[f]
}

// Apply sets the field's value on the ticket.
func (f Field) Apply(t *Ticket, value string) {
	switch f {
	case FieldPipeline:
		t.Pipeline = Pipeline(value)
	case FieldStatus:
		t.Status = TicketStatus(value)
	case FieldPriority:
		t.Priority = TicketPriority(value)
	case FieldAssignedTo:
		t.AssignedTo = value
	case FieldTitle:
		t.Title = value
	case FieldDescription:
		t.Description = value
	case FieldCustomer:
		t.Customer = value
	}
}

const ticketIDPrefix = "TKT-"

// TicketNumber extracts the numeric suffix from a TKT-<n> identifier.
func TicketNumber(id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, ticketIDPrefix)
	if !ok || rest == "" {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// NextTicketID formats the identifier following the given maximum suffix,
// zero-padded to three digits. Width grows naturally past 999.
func NextTicketID(maxNumber int) string {
	return fmt.Sprintf("%s%03d", ticketIDPrefix, maxNumber+1)
}
