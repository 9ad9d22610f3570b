package dto

import "github.com/unisupport/portal/internal/domain"

// CreateDepartmentRequest payload.
type CreateDepartmentRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// DepartmentResponse is the wire shape of a department.
type DepartmentResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsActive    bool   `json:"isActive"`
}

// NewDepartmentResponse maps a domain department onto the wire shape.
func NewDepartmentResponse(department *domain.Department) DepartmentResponse {
	return DepartmentResponse{
		ID:          department.ID,
		Name:        department.Name,
		Description: department.Description,
		IsActive:    department.IsActive,
	}
}

// NewDepartmentListResponse maps a slice of departments.
func NewDepartmentListResponse(departments []domain.Department) []DepartmentResponse {
	result := make([]DepartmentResponse, 0, len(departments))
	for i := range departments {
		result = append(result, NewDepartmentResponse(&departments[i]))
	}
	return result
}
