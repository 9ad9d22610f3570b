package service

import (
	"context"
	"strings"

	"github.com/unisupport/portal/internal/domain"
	"github.com/unisupport/portal/internal/policy"
	"github.com/unisupport/portal/internal/repository"
	apperrors "github.com/unisupport/portal/pkg/util/errorutil"
)

const departmentNameMaxLen = 100

// DepartmentService manages the registry of administrative units that
// department accounts attach to.
type DepartmentService struct {
	departments repository.DepartmentRepository
}

// NewDepartmentService builds the service.
func NewDepartmentService(departments repository.DepartmentRepository) *DepartmentService {
	return &DepartmentService{departments: departments}
}

// Create registers a new active department. Admin only.
func (s *DepartmentService) Create(ctx context.Context, ident policy.Identity, name, description string) (*domain.Department, error) {
	if ident.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("only administrators can manage departments")
	}
	name = strings.TrimSpace(name)
	if name == "" || len(name) > departmentNameMaxLen {
		return nil, apperrors.NewValidationError("department name is required, at most 100 characters", nil)
	}

	department := &domain.Department{
		Name:        name,
		Description: strings.TrimSpace(description),
		IsActive:    true,
	}
	if err := s.departments.Create(ctx, department); err != nil {
		return nil, apperrors.MapError(err)
	}
	return department, nil
}

// ListActive returns departments open for registration, name order.
func (s *DepartmentService) ListActive(ctx context.Context) ([]domain.Department, error) {
	all, err := s.departments.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	active := make([]domain.Department, 0, len(all))
	for _, department := range all {
		if department.IsActive {
			active = append(active, department)
		}
	}
	return active, nil
}
