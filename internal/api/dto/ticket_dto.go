package dto

import (
	"time"

	"github.com/unisupport/portal/internal/domain"
	"github.com/unisupport/portal/internal/service"
)

// CreateTicketRequest payload. StudentID is parsed only so a spoofed value
// can be rejected; the server always derives the owner from the token.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Category    domain.TicketCategory `json:"category"`
	Priority    domain.TicketPriority `json:"priority,omitempty"`
	StudentID   *string               `json:"studentId,omitempty"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status  domain.TicketStatus `json:"status"`
	Comment string              `json:"comment,omitempty"`
}

// StatusChangeResponse is one audit trail entry.
type StatusChangeResponse struct {
	Status    domain.TicketStatus `json:"status"`
	ChangedBy *domain.UserSummary `json:"changedBy,omitempty"`
	ChangedAt time.Time           `json:"changedAt"`
	Comment   string              `json:"comment"`
}

// TicketResponse is the full ticket representation with related identities
// resolved to display-safe summaries.
type TicketResponse struct {
	ID            string                 `json:"id"`
	Title         string                 `json:"title"`
	Description   string                 `json:"description"`
	Category      domain.TicketCategory  `json:"category"`
	Status        domain.TicketStatus    `json:"status"`
	Priority      domain.TicketPriority  `json:"priority"`
	Student       *domain.UserSummary    `json:"student,omitempty"`
	Department    *domain.UserSummary    `json:"department,omitempty"`
	AssignedBy    *domain.UserSummary    `json:"assignedBy,omitempty"`
	StatusHistory []StatusChangeResponse `json:"statusHistory,omitempty"`
	CreatedAt     time.Time              `json:"createdAt"`
	UpdatedAt     time.Time              `json:"updatedAt"`
}

// TicketListResponse is the paginated listing payload. Statistics are
// present on the admin listing only.
type TicketListResponse struct {
	Tickets    []TicketResponse    `json:"tickets"`
	Pagination service.PageMeta    `json:"pagination"`
	Statistics *service.Statistics `json:"statistics,omitempty"`
}

// NewTicketResponse maps a service view onto the wire shape.
func NewTicketResponse(view *service.TicketView) TicketResponse {
	resp := TicketResponse{
		ID:          view.ID,
		Title:       view.Title,
		Description: view.Description,
		Category:    view.Category,
		Status:      view.Status,
		Priority:    view.Priority,
		Student:     view.Student,
		Department:  view.Department,
		AssignedBy:  view.AssignedByUser,
		CreatedAt:   view.CreatedAt,
		UpdatedAt:   view.UpdatedAt,
	}
	for _, entry := range view.History {
		resp.StatusHistory = append(resp.StatusHistory, StatusChangeResponse{
			Status:    entry.Status,
			ChangedBy: entry.ChangedByUser,
			ChangedAt: entry.ChangedAt,
			Comment:   entry.Comment,
		})
	}
	return resp
}

// NewTicketListResponse maps a service page onto the wire shape.
func NewTicketListResponse(page *service.TicketPage) TicketListResponse {
	tickets := make([]TicketResponse, 0, len(page.Tickets))
	for i := range page.Tickets {
		tickets = append(tickets, NewTicketResponse(&page.Tickets[i]))
	}
	return TicketListResponse{
		Tickets:    tickets,
		Pagination: page.Pagination,
		Statistics: page.Statistics,
	}
}
