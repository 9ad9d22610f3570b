package domain

import "time"

// Role enumerates portal account types.
type Role string

const (
	RoleStudent    Role = "student"
	RoleAdmin      Role = "admin"
	RoleDepartment Role = "department"
)

// Valid reports whether the role is a known portal role.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleAdmin, RoleDepartment:
		return true
	}
	return false
}

// User is the domain model for portal accounts: students, department staff
// and administrators share one table, differentiated by Role.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	DepartmentID *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserSummary is the display-safe projection of a user embedded in ticket
// responses. It never carries credential material.
type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Summary projects the user into its display-safe form.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}
