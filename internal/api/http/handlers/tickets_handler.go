package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/unisupport/portal/internal/api/dto"
	"github.com/unisupport/portal/internal/auth"
	"github.com/unisupport/portal/internal/domain"
	"github.com/unisupport/portal/internal/service"
	apperrors "github.com/unisupport/portal/pkg/util/errorutil"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /api/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("please login first")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	view, err := h.service.CreateTicket(c.Context(), principal.Identity(), service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Priority:    req.Priority,
		StudentID:   req.StudentID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.OK("Ticket created successfully", dto.NewTicketResponse(view)))
}

// ListMine GET /api/tickets/my.
func (h *TicketsHandler) ListMine(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("please login first")
	}
	query, page := parseTicketQuery(c, false)
	result, err := h.service.ListMine(c.Context(), principal.Identity(), query, page)
	if err != nil {
		return err
	}
	return c.JSON(dto.OK("Tickets retrieved successfully", dto.NewTicketListResponse(result)))
}

// ListAll GET /api/tickets.
func (h *TicketsHandler) ListAll(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("please login first")
	}
	query, page := parseTicketQuery(c, true)
	result, err := h.service.ListAll(c.Context(), principal.Identity(), query, page)
	if err != nil {
		return err
	}
	return c.JSON(dto.OK("All tickets retrieved successfully", dto.NewTicketListResponse(result)))
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("please login first")
	}
	view, err := h.service.GetByID(c.Context(), principal.Identity(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.OK("Ticket retrieved successfully", dto.NewTicketResponse(view)))
}

// UpdateStatus PUT /api/tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("please login first")
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	view, err := h.service.UpdateStatus(c.Context(), principal.Identity(), c.Params("id"), req.Status, req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(dto.OK("Ticket status updated successfully", dto.NewTicketResponse(view)))
}

func parseTicketQuery(c *fiber.Ctx, allowStudentFilter bool) (service.ListQuery, service.Pagination) {
	var query service.ListQuery
	if statusStr := c.Query("status"); statusStr != "" {
		status := domain.TicketStatus(statusStr)
		query.Status = &status
	}
	if categoryStr := c.Query("category"); categoryStr != "" {
		category := domain.TicketCategory(categoryStr)
		query.Category = &category
	}
	if allowStudentFilter {
		if studentID := c.Query("studentId"); studentID != "" {
			query.StudentID = &studentID
		}
	}
	page := service.Pagination{
		Page:  parseInt(c.Query("page"), 1),
		Limit: parseInt(c.Query("limit"), 10),
	}
	return query, page
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
