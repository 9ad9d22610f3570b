package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/unisupport/portal/internal/domain"
	"github.com/unisupport/portal/internal/events"
	"github.com/unisupport/portal/internal/policy"
	"github.com/unisupport/portal/internal/repository"
	apperrors "github.com/unisupport/portal/pkg/util/errorutil"
)

const (
	titleMinLen       = 3
	titleMaxLen       = 200
	descriptionMinLen = 10
	descriptionMaxLen = 1000
	commentMaxLen     = 500
	defaultPageLimit  = 10
)

// TicketService orchestrates policy checks, entity mutation and history
// append for every ticket operation.
type TicketService struct {
	tickets    repository.TicketRepository
	history    repository.TicketHistoryRepository
	users      repository.UserRepository
	dispatcher events.Dispatcher
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	HistoryRepo repository.TicketHistoryRepository
	UserRepo    repository.UserRepository
	Dispatcher  events.Dispatcher
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		history:    deps.HistoryRepo,
		users:      deps.UserRepo,
		dispatcher: deps.Dispatcher,
	}
}

// TicketCreateInput describes ticket creation payload. StudentID mirrors a
// client-supplied student id so it can be rejected rather than silently
// overwritten.
type TicketCreateInput struct {
	Title       string
	Description string
	Category    domain.TicketCategory
	Priority    domain.TicketPriority
	StudentID   *string
}

// ListQuery narrows a listing by optional equality filters.
type ListQuery struct {
	Status    *domain.TicketStatus
	Category  *domain.TicketCategory
	StudentID *string
}

// Pagination is 1-based.
type Pagination struct {
	Page  int
	Limit int
}

// PageMeta describes the returned slice relative to the full result set.
type PageMeta struct {
	CurrentPage  int  `json:"currentPage"`
	TotalPages   int  `json:"totalPages"`
	TotalTickets int  `json:"totalTickets"`
	HasNext      bool `json:"hasNext"`
	HasPrev      bool `json:"hasPrev"`
}

// Statistics carries rollups over the unpaginated filtered set. Zero-count
// members are omitted; absence means zero.
type Statistics struct {
	Status   map[domain.TicketStatus]int   `json:"status"`
	Category map[domain.TicketCategory]int `json:"category"`
}

// StatusChangeView is a history entry with the actor resolved to a
// display-safe summary.
type StatusChangeView struct {
	domain.StatusChange
	ChangedByUser *domain.UserSummary
}

// TicketView is a ticket with related identities resolved to display-safe
// summaries. Related users may be nil when the referenced account is gone.
type TicketView struct {
	domain.Ticket
	Student        *domain.UserSummary
	Department     *domain.UserSummary
	AssignedByUser *domain.UserSummary
	History        []StatusChangeView
}

// TicketPage is a paginated listing result.
type TicketPage struct {
	Tickets    []TicketView
	Pagination PageMeta
	Statistics *Statistics
}

// CreateTicket validates input and persists a new open ticket owned by the
// calling student. Creation does not append a history entry.
func (s *TicketService) CreateTicket(ctx context.Context, ident policy.Identity, input TicketCreateInput) (*TicketView, error) {
	if err := policy.Authorize(policy.OpCreate, ident); err != nil {
		return nil, err
	}
	if input.StudentID != nil {
		return nil, apperrors.NewValidationError("student id cannot be provided in request body", nil)
	}

	ticket := &domain.Ticket{
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Category:    input.Category,
		Status:      domain.TicketStatusOpen,
		Priority:    input.Priority,
		StudentID:   ident.ID,
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}
	if err := validateTicketFields(ticket); err != nil {
		return nil, err
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    events.Actor{UserID: ident.ID, Role: ident.Role},
		Payload: events.TicketCreatedPayload{
			Category: ticket.Category,
			Priority: ticket.Priority,
			Title:    ticket.Title,
		},
	})

	view, err := s.resolveView(ctx, ticket, false)
	if err != nil {
		return nil, err
	}
	return view, nil
}

// ListMine returns the calling student's tickets, newest first.
func (s *TicketService) ListMine(ctx context.Context, ident policy.Identity, query ListQuery, page Pagination) (*TicketPage, error) {
	if err := policy.Authorize(policy.OpListMine, ident); err != nil {
		return nil, err
	}
	query.StudentID = &ident.ID
	return s.listPage(ctx, query, page, false)
}

// ListAll returns every ticket matching the filters plus status and category
// rollups over the unpaginated filtered set. Admin only.
func (s *TicketService) ListAll(ctx context.Context, ident policy.Identity, query ListQuery, page Pagination) (*TicketPage, error) {
	if err := policy.Authorize(policy.OpListAll, ident); err != nil {
		return nil, err
	}
	return s.listPage(ctx, query, page, true)
}

// GetByID fetches one ticket, applying read ownership.
func (s *TicketService) GetByID(ctx context.Context, ident policy.Identity, ticketID string) (*TicketView, error) {
	ticket, err := s.fetchTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := policy.CanReadTicket(ident, ticket); err != nil {
		return nil, err
	}
	return s.resolveView(ctx, ticket, true)
}

// UpdateStatus advances the ticket status machine. Check order: existence,
// transition edge, department ownership. The first accepted change claims
// the ticket for the acting department user. The status write and the
// history append commit atomically, conditioned on the status read here
// still being current; a lost race surfaces as CONFLICT.
func (s *TicketService) UpdateStatus(ctx context.Context, ident policy.Identity, ticketID string, requested domain.TicketStatus, comment string) (*TicketView, error) {
	if !requested.Valid() || requested == domain.TicketStatusOpen {
		return nil, apperrors.NewValidationError(
			"please provide a valid status (in_progress, resolved, closed)", nil)
	}
	comment = strings.TrimSpace(comment)
	if len(comment) > commentMaxLen {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("comment cannot be more than %d characters", commentMaxLen), nil)
	}

	ticket, err := s.fetchTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := policy.Transition(ticket.Status, requested); err != nil {
		return nil, err
	}
	if err := policy.CanUpdateStatus(ident, ticket); err != nil {
		return nil, err
	}

	oldStatus := ticket.Status
	ticket.Status = requested
	if ticket.DepartmentID == nil {
		actorID := ident.ID
		ticket.DepartmentID = &actorID
	}
	assignedBy := ident.ID
	ticket.AssignedBy = &assignedBy

	if comment == "" {
		comment = fmt.Sprintf("Status updated to %s", requested)
	}
	entry := &domain.StatusChange{
		TicketID:  ticket.ID,
		Status:    requested,
		ChangedBy: ident.ID,
		Comment:   comment,
	}

	if err := s.tickets.UpdateStatus(ctx, ticket, oldStatus, entry); err != nil {
		switch {
		case errors.Is(err, repository.ErrStaleStatus):
			return nil, apperrors.NewConflict("ticket status changed concurrently, retry with current state", nil)
		case errors.Is(err, pgx.ErrNoRows):
			return nil, apperrors.NewNotFound("ticket", nil)
		default:
			return nil, apperrors.MapError(err)
		}
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Actor:    events.Actor{UserID: ident.ID, Role: ident.Role},
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: requested,
			Comment:   comment,
		},
	})

	return s.resolveView(ctx, ticket, true)
}

func (s *TicketService) listPage(ctx context.Context, query ListQuery, page Pagination, withStats bool) (*TicketPage, error) {
	if page.Page <= 0 {
		page.Page = 1
	}
	if page.Limit <= 0 {
		page.Limit = defaultPageLimit
	}
	skip := (page.Page - 1) * page.Limit

	filter := repository.TicketFilter{
		StudentID: query.StudentID,
		Status:    query.Status,
		Category:  query.Category,
		Limit:     page.Limit,
		Offset:    skip,
	}

	tickets, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	total, err := s.tickets.Count(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	views, err := s.resolveViews(ctx, tickets)
	if err != nil {
		return nil, err
	}

	result := &TicketPage{
		Tickets: views,
		Pagination: PageMeta{
			CurrentPage:  page.Page,
			TotalPages:   (total + page.Limit - 1) / page.Limit,
			TotalTickets: total,
			HasNext:      skip+len(tickets) < total,
			HasPrev:      page.Page > 1,
		},
	}

	if withStats {
		statusStats, err := s.tickets.CountByStatus(ctx, filter)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		categoryStats, err := s.tickets.CountByCategory(ctx, filter)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		result.Statistics = &Statistics{Status: statusStats, Category: categoryStats}
	}
	return result, nil
}

func (s *TicketService) fetchTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	if _, err := uuid.Parse(ticketID); err != nil {
		return nil, apperrors.NewValidationError("invalid ticket id format", nil)
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", nil)
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// resolveView joins related identities into display-safe summaries and,
// when withHistory is set, attaches the audit trail.
func (s *TicketService) resolveView(ctx context.Context, ticket *domain.Ticket, withHistory bool) (*TicketView, error) {
	view := TicketView{Ticket: *ticket}

	ids := []string{ticket.StudentID}
	if ticket.DepartmentID != nil {
		ids = append(ids, *ticket.DepartmentID)
	}
	if ticket.AssignedBy != nil {
		ids = append(ids, *ticket.AssignedBy)
	}

	var history []domain.StatusChange
	if withHistory {
		var err error
		history, err = s.history.ListByTicket(ctx, ticket.ID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		for _, entry := range history {
			ids = append(ids, entry.ChangedBy)
		}
	}

	summaries, err := s.users.GetSummaries(ctx, ids)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	view.Student = lookupSummary(summaries, ticket.StudentID)
	if ticket.DepartmentID != nil {
		view.Department = lookupSummary(summaries, *ticket.DepartmentID)
	}
	if ticket.AssignedBy != nil {
		view.AssignedByUser = lookupSummary(summaries, *ticket.AssignedBy)
	}
	if withHistory {
		view.History = make([]StatusChangeView, 0, len(history))
		for _, entry := range history {
			view.History = append(view.History, StatusChangeView{
				StatusChange:  entry,
				ChangedByUser: lookupSummary(summaries, entry.ChangedBy),
			})
		}
	}
	return &view, nil
}

func (s *TicketService) resolveViews(ctx context.Context, tickets []domain.Ticket) ([]TicketView, error) {
	ids := make([]string, 0, len(tickets)*3)
	for i := range tickets {
		ids = append(ids, tickets[i].StudentID)
		if tickets[i].DepartmentID != nil {
			ids = append(ids, *tickets[i].DepartmentID)
		}
		if tickets[i].AssignedBy != nil {
			ids = append(ids, *tickets[i].AssignedBy)
		}
	}
	summaries, err := s.users.GetSummaries(ctx, ids)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	views := make([]TicketView, 0, len(tickets))
	for i := range tickets {
		view := TicketView{Ticket: tickets[i]}
		view.Student = lookupSummary(summaries, tickets[i].StudentID)
		if tickets[i].DepartmentID != nil {
			view.Department = lookupSummary(summaries, *tickets[i].DepartmentID)
		}
		if tickets[i].AssignedBy != nil {
			view.AssignedByUser = lookupSummary(summaries, *tickets[i].AssignedBy)
		}
		views = append(views, view)
	}
	return views, nil
}

func lookupSummary(summaries map[string]domain.UserSummary, id string) *domain.UserSummary {
	if summary, ok := summaries[id]; ok {
		return &summary
	}
	return nil
}

func validateTicketFields(ticket *domain.Ticket) error {
	problems := map[string]any{}
	if l := len(ticket.Title); l < titleMinLen || l > titleMaxLen {
		problems["title"] = fmt.Sprintf("must be between %d and %d characters", titleMinLen, titleMaxLen)
	}
	if l := len(ticket.Description); l < descriptionMinLen || l > descriptionMaxLen {
		problems["description"] = fmt.Sprintf("must be between %d and %d characters", descriptionMinLen, descriptionMaxLen)
	}
	if !ticket.Category.Valid() {
		problems["category"] = "must be one of: Exam, Attendance, Internship, Scholarship, Other"
	}
	if !ticket.Priority.Valid() {
		problems["priority"] = "must be one of: low, medium, high"
	}
	if len(problems) > 0 {
		return apperrors.NewValidationError("please provide title, description, and category", problems)
	}
	return nil
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
