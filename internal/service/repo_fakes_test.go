package service_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/unisupport/portal/internal/domain"
	"github.com/unisupport/portal/internal/repository"
)

// memStore is an in-memory stand-in for the Postgres repositories. It
// implements UserRepository, TicketRepository and TicketHistoryRepository so
// one instance can back a whole service under test.
type memStore struct {
	mu         sync.Mutex
	users      map[string]domain.User
	tickets    map[string]domain.Ticket
	history    map[string][]domain.StatusChange
	clock      time.Time
	forceStale bool
}

func newMemStore() *memStore {
	return &memStore{
		users:   make(map[string]domain.User),
		tickets: make(map[string]domain.Ticket),
		history: make(map[string][]domain.StatusChange),
		clock:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// tick returns strictly increasing timestamps so createdAt ordering is
// deterministic.
func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memStore) addUser(name, email string, role domain.Role) domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	user := domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: "$2a$12$fakefakefakefakefakefake",
		Role:         role,
		CreatedAt:    m.tick(),
	}
	user.UpdatedAt = user.CreatedAt
	m.users[user.ID] = user
	return user
}

// UserRepository

func (m *memStore) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.ID = uuid.NewString()
	user.CreatedAt = m.tick()
	user.UpdatedAt = user.CreatedAt
	m.users[user.ID] = *user
	return nil
}

func (m *memStore) Update(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	user.UpdatedAt = m.tick()
	m.users[user.ID] = *user
	return nil
}

func (m *memStore) GetByID(ctx context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (m *memStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memStore) GetSummaries(ctx context.Context, ids []string) (map[string]domain.UserSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make(map[string]domain.UserSummary, len(ids))
	for _, id := range ids {
		if user, ok := m.users[id]; ok {
			result[id] = user.Summary()
		}
	}
	return result, nil
}

// TicketRepository

type ticketRepo struct{ *memStore }

func (m ticketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ticket.ID = uuid.NewString()
	ticket.CreatedAt = m.tick()
	ticket.UpdatedAt = ticket.CreatedAt
	m.tickets[ticket.ID] = *ticket
	return nil
}

func (m ticketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ticket, ok := m.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &ticket, nil
}

func (m ticketRepo) filtered(filter repository.TicketFilter) []domain.Ticket {
	var result []domain.Ticket
	for _, ticket := range m.tickets {
		if filter.StudentID != nil && ticket.StudentID != *filter.StudentID {
			continue
		}
		if filter.Status != nil && ticket.Status != *filter.Status {
			continue
		}
		if filter.Category != nil && ticket.Category != *filter.Category {
			continue
		}
		result = append(result, ticket)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

func (m ticketRepo) ListWithFilter(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := m.filtered(filter)

	offset := filter.Offset
	if offset > len(result) {
		offset = len(result)
	}
	result = result[offset:]
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (m ticketRepo) Count(ctx context.Context, filter repository.TicketFilter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.filtered(filter)), nil
}

func (m ticketRepo) CountByStatus(ctx context.Context, filter repository.TicketFilter) (map[domain.TicketStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make(map[domain.TicketStatus]int)
	for _, ticket := range m.filtered(filter) {
		result[ticket.Status]++
	}
	return result, nil
}

func (m ticketRepo) CountByCategory(ctx context.Context, filter repository.TicketFilter) (map[domain.TicketCategory]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make(map[domain.TicketCategory]int)
	for _, ticket := range m.filtered(filter) {
		result[ticket.Category]++
	}
	return result, nil
}

func (m ticketRepo) UpdateStatus(ctx context.Context, ticket *domain.Ticket, expected domain.TicketStatus, entry *domain.StatusChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.tickets[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if m.forceStale || stored.Status != expected {
		return repository.ErrStaleStatus
	}
	ticket.UpdatedAt = m.tick()
	m.tickets[ticket.ID] = *ticket

	entry.ID = uuid.NewString()
	entry.ChangedAt = ticket.UpdatedAt
	m.history[ticket.ID] = append(m.history[ticket.ID], *entry)
	return nil
}

// TicketHistoryRepository

type historyRepo struct{ *memStore }

func (m historyRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.StatusChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := make([]domain.StatusChange, len(m.history[ticketID]))
	copy(entries, m.history[ticketID])
	return entries, nil
}

func (m historyRepo) CountByTicket(ctx context.Context, ticketID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.history[ticketID]), nil
}

// DepartmentRepository

type departmentStore struct {
	mu          sync.Mutex
	departments map[string]domain.Department
}

func newDepartmentStore() *departmentStore {
	return &departmentStore{departments: make(map[string]domain.Department)}
}

func (s *departmentStore) add(name string, active bool) domain.Department {
	s.mu.Lock()
	defer s.mu.Unlock()
	department := domain.Department{
		ID:       uuid.NewString(),
		Name:     name,
		IsActive: active,
	}
	s.departments[department.ID] = department
	return department
}

func (s *departmentStore) Create(ctx context.Context, department *domain.Department) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	department.ID = uuid.NewString()
	s.departments[department.ID] = *department
	return nil
}

func (s *departmentStore) GetByID(ctx context.Context, id string) (*domain.Department, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	department, ok := s.departments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &department, nil
}

func (s *departmentStore) List(ctx context.Context) ([]domain.Department, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]domain.Department, 0, len(s.departments))
	for _, department := range s.departments {
		result = append(result, department)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// PasswordResetRepository

type resetStore struct {
	mu     sync.Mutex
	tokens map[string]repository.PasswordResetToken
}

func newResetStore() *resetStore {
	return &resetStore{tokens: make(map[string]repository.PasswordResetToken)}
}

func (s *resetStore) Create(ctx context.Context, token *repository.PasswordResetToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	token.ID = uuid.NewString()
	token.CreatedAt = time.Now()
	s.tokens[token.ID] = *token
	return nil
}

func (s *resetStore) GetByToken(ctx context.Context, tokenStr string) (*repository.PasswordResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, token := range s.tokens {
		if token.Token == tokenStr {
			t := token
			return &t, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *resetStore) MarkUsed(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[id]
	if !ok || token.UsedAt != nil {
		return pgx.ErrNoRows
	}
	now := time.Now()
	token.UsedAt = &now
	s.tokens[id] = token
	return nil
}
