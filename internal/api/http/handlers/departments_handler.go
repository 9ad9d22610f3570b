package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/unisupport/portal/internal/api/dto"
	"github.com/unisupport/portal/internal/auth"
	"github.com/unisupport/portal/internal/service"
	apperrors "github.com/unisupport/portal/pkg/util/errorutil"
)

// DepartmentsHandler exposes the department registry.
type DepartmentsHandler struct {
	service *service.DepartmentService
}

// NewDepartmentsHandler constructs handler.
func NewDepartmentsHandler(departmentService *service.DepartmentService) *DepartmentsHandler {
	return &DepartmentsHandler{service: departmentService}
}

// List GET /api/departments. Public: registrants need the list of active
// departments before they have an account.
func (h *DepartmentsHandler) List(c *fiber.Ctx) error {
	departments, err := h.service.ListActive(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(dto.OK("Departments retrieved successfully", dto.NewDepartmentListResponse(departments)))
}

// Create POST /api/departments.
func (h *DepartmentsHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("please login first")
	}
	var req dto.CreateDepartmentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	department, err := h.service.Create(c.Context(), principal.Identity(), req.Name, req.Description)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.OK("Department created successfully", dto.NewDepartmentResponse(department)))
}
