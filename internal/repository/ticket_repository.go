package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unisupport/portal/internal/domain"
)

// ErrStaleStatus reports that a conditional status update lost a race: the
// ticket's status no longer matches the status read at the start of the
// operation.
var ErrStaleStatus = errors.New("ticket status changed concurrently")

// TicketFilter captures listing parameters. Status, Category and StudentID
// are equality filters; Limit/Offset paginate the createdAt-descending order.
type TicketFilter struct {
	StudentID *string
	Status    *domain.TicketStatus
	Category  *domain.TicketCategory
	Limit     int
	Offset    int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Count(ctx context.Context, filter TicketFilter) (int, error)
	CountByStatus(ctx context.Context, filter TicketFilter) (map[domain.TicketStatus]int, error)
	CountByCategory(ctx context.Context, filter TicketFilter) (map[domain.TicketCategory]int, error)
	// UpdateStatus persists the status change and appends the history entry
	// in one transaction, conditioned on the ticket still being in expected
	// status. Returns ErrStaleStatus when the condition fails and
	// pgx.ErrNoRows when the ticket is gone.
	UpdateStatus(ctx context.Context, ticket *domain.Ticket, expected domain.TicketStatus, entry *domain.StatusChange) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, title, description, category, status, priority,
               student_id, department_id, assigned_by, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (title, description, category, status, priority, student_id)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Category,
		ticket.Status,
		ticket.Priority,
		ticket.StudentID,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Category,
		&ticket.Status,
		&ticket.Priority,
		&ticket.StudentID,
		&ticket.DepartmentID,
		&ticket.AssignedBy,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func filterClauses(filter TicketFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.StudentID != nil {
		args = append(args, *filter.StudentID)
		clauses = append(clauses, fmt.Sprintf("student_id=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.Category != nil {
		args = append(args, *filter.Category)
		clauses = append(clauses, fmt.Sprintf("category=$%d", len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	where, args := filterClauses(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, where, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) Count(ctx context.Context, filter TicketFilter) (int, error) {
	where, args := filterClauses(filter)
	query := `SELECT COUNT(*) FROM tickets WHERE ` + where

	var total int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// CountByStatus groups the unpaginated filtered set by status. Zero-count
// statuses are absent from the map.
func (r *ticketRepository) CountByStatus(ctx context.Context, filter TicketFilter) (map[domain.TicketStatus]int, error) {
	where, args := filterClauses(filter)
	query := `SELECT status, COUNT(*) FROM tickets WHERE ` + where + ` GROUP BY status`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[domain.TicketStatus]int)
	for rows.Next() {
		var status domain.TicketStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		result[status] = count
	}
	return result, rows.Err()
}

// CountByCategory groups the unpaginated filtered set by category.
func (r *ticketRepository) CountByCategory(ctx context.Context, filter TicketFilter) (map[domain.TicketCategory]int, error) {
	where, args := filterClauses(filter)
	query := `SELECT category, COUNT(*) FROM tickets WHERE ` + where + ` GROUP BY category`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[domain.TicketCategory]int)
	for rows.Next() {
		var category domain.TicketCategory
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, err
		}
		result[category] = count
	}
	return result, rows.Err()
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, ticket *domain.Ticket, expected domain.TicketStatus, entry *domain.StatusChange) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const update = `
        UPDATE tickets SET status=$1, department_id=$2, assigned_by=$3, updated_at=NOW()
        WHERE id=$4 AND status=$5
        RETURNING updated_at`
	err = tx.QueryRow(ctx, update,
		ticket.Status,
		ticket.DepartmentID,
		ticket.AssignedBy,
		ticket.ID,
		expected,
	).Scan(&ticket.UpdatedAt)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		// Distinguish a missing ticket from a lost race.
		var current domain.TicketStatus
		probeErr := tx.QueryRow(ctx, `SELECT status FROM tickets WHERE id=$1`, ticket.ID).Scan(&current)
		if probeErr != nil {
			return probeErr
		}
		return ErrStaleStatus
	}

	const insert = `
        INSERT INTO ticket_status_history (ticket_id, status, changed_by, comment)
        VALUES ($1,$2,$3,$4)
        RETURNING id, changed_at`
	if err := tx.QueryRow(ctx, insert,
		entry.TicketID,
		entry.Status,
		entry.ChangedBy,
		entry.Comment,
	).Scan(&entry.ID, &entry.ChangedAt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.Title,
			&ticket.Description,
			&ticket.Category,
			&ticket.Status,
			&ticket.Priority,
			&ticket.StudentID,
			&ticket.DepartmentID,
			&ticket.AssignedBy,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
