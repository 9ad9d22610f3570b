package domain

import "time"

// Department represents an administrative unit staff accounts belong to.
type Department struct {
	ID          string
	Name        string
	Description string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
