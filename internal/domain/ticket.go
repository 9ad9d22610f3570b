package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// Valid reports whether the status is a known lifecycle state.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// TicketCategory enumerates the closed set of request topics.
type TicketCategory string

const (
	CategoryExam        TicketCategory = "Exam"
	CategoryAttendance  TicketCategory = "Attendance"
	CategoryInternship  TicketCategory = "Internship"
	CategoryScholarship TicketCategory = "Scholarship"
	CategoryOther       TicketCategory = "Other"
)

// Valid reports whether the category is a known topic.
func (c TicketCategory) Valid() bool {
	switch c {
	case CategoryExam, CategoryAttendance, CategoryInternship, CategoryScholarship, CategoryOther:
		return true
	}
	return false
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

// Valid reports whether the priority is a known level.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return true
	}
	return false
}

// Ticket is the aggregate for student support requests.
//
// StudentID is set by the server from the authenticated caller at creation
// and is immutable afterwards. DepartmentID is nil until the first accepted
// status change, at which point it is set to the acting staff member's user
// id and never reassigned. AssignedBy tracks the most recent status changer.
type Ticket struct {
	ID           string
	Title        string
	Description  string
	Category     TicketCategory
	Status       TicketStatus
	Priority     TicketPriority
	StudentID    string
	DepartmentID *string
	AssignedBy   *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// StatusChange is an immutable audit trail entry. The history of a ticket
// grows by exactly one entry per accepted status change; creation itself
// does not append an entry.
type StatusChange struct {
	ID        string
	TicketID  string
	Status    TicketStatus
	ChangedBy string
	Comment   string
	ChangedAt time.Time
}
