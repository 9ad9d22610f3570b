package policy

import (
	"fmt"
	"strings"

	"github.com/unisupport/portal/internal/domain"
	apperrors "github.com/unisupport/portal/pkg/util/errorutil"
)

// Identity is the authenticated caller as the policies see it. Supplied by
// the auth layer, consumed read-only here.
type Identity struct {
	ID   string
	Role domain.Role
}

// Operation names a ticket operation subject to role authorization.
type Operation string

const (
	OpCreate       Operation = "create"
	OpListMine     Operation = "list_mine"
	OpListAll      Operation = "list_all"
	OpRead         Operation = "read"
	OpUpdateStatus Operation = "update_status"
)

// operationRoles is the operation -> allowed roles table. Admin is
// deliberately absent from update_status: administrators observe and
// aggregate but never mutate ticket state.
var operationRoles = map[Operation][]domain.Role{
	OpCreate:       {domain.RoleStudent},
	OpListMine:     {domain.RoleStudent},
	OpListAll:      {domain.RoleAdmin},
	OpRead:         {domain.RoleStudent, domain.RoleAdmin, domain.RoleDepartment},
	OpUpdateStatus: {domain.RoleDepartment},
}

// AllowedRoles returns the roles permitted to perform op.
func AllowedRoles(op Operation) []domain.Role {
	roles := operationRoles[op]
	out := make([]domain.Role, len(roles))
	copy(out, roles)
	return out
}

// Authorize applies the role table for op. Ticket-level ownership rules are
// checked separately by CanReadTicket and CanUpdateStatus.
func Authorize(op Operation, ident Identity) error {
	roles, ok := operationRoles[op]
	if !ok {
		return apperrors.NewForbidden(fmt.Sprintf("unknown operation '%s'", op))
	}
	for _, role := range roles {
		if role == ident.Role {
			return nil
		}
	}
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	return apperrors.NewForbidden(fmt.Sprintf(
		"role '%s' is not authorized for this resource. Required roles: %s",
		ident.Role, strings.Join(names, ", ")))
}

// CanReadTicket enforces read ownership: students see only their own
// tickets, admin and department staff may read any ticket.
func CanReadTicket(ident Identity, ticket *domain.Ticket) error {
	if err := Authorize(OpRead, ident); err != nil {
		return err
	}
	if ident.Role == domain.RoleStudent && ticket.StudentID != ident.ID {
		return apperrors.NewForbidden("you can only view your own tickets")
	}
	return nil
}

// CanUpdateStatus enforces the sticky department assignment: once a ticket
// has a department owner, only that identity may change its status.
func CanUpdateStatus(ident Identity, ticket *domain.Ticket) error {
	if err := Authorize(OpUpdateStatus, ident); err != nil {
		return err
	}
	if ticket.DepartmentID != nil && *ticket.DepartmentID != ident.ID {
		return apperrors.NewForbidden("this ticket is assigned to another department")
	}
	return nil
}
