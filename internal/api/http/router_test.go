package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	api "github.com/unisupport/portal/internal/api/http"
	"github.com/unisupport/portal/internal/api/http/handlers"
	"github.com/unisupport/portal/internal/auth"
	"github.com/unisupport/portal/internal/config"
	"github.com/unisupport/portal/internal/domain"
	"github.com/unisupport/portal/internal/events"
	"github.com/unisupport/portal/internal/observability"
	"github.com/unisupport/portal/internal/repository"
	"github.com/unisupport/portal/internal/service"
)

// webStore backs every repository interface for routing tests.
type webStore struct {
	users       map[string]domain.User
	tickets     map[string]domain.Ticket
	history     map[string][]domain.StatusChange
	departments map[string]domain.Department
	resets      map[string]repository.PasswordResetToken
	clock       time.Time
}

func newWebStore() *webStore {
	return &webStore{
		users:       make(map[string]domain.User),
		tickets:     make(map[string]domain.Ticket),
		history:     make(map[string][]domain.StatusChange),
		departments: make(map[string]domain.Department),
		resets:      make(map[string]repository.PasswordResetToken),
		clock:       time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (s *webStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

type userRepo struct{ *webStore }

func (s userRepo) Create(ctx context.Context, user *domain.User) error {
	user.ID = uuid.NewString()
	user.CreatedAt = s.tick()
	user.UpdatedAt = user.CreatedAt
	s.users[user.ID] = *user
	return nil
}

func (s userRepo) Update(ctx context.Context, user *domain.User) error {
	if _, ok := s.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	user.UpdatedAt = s.tick()
	s.users[user.ID] = *user
	return nil
}

func (s userRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (s userRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, user := range s.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s userRepo) GetSummaries(ctx context.Context, ids []string) (map[string]domain.UserSummary, error) {
	result := make(map[string]domain.UserSummary, len(ids))
	for _, id := range ids {
		if user, ok := s.users[id]; ok {
			result[id] = user.Summary()
		}
	}
	return result, nil
}

type ticketStore struct{ *webStore }

func (s ticketStore) Create(ctx context.Context, ticket *domain.Ticket) error {
	ticket.ID = uuid.NewString()
	ticket.CreatedAt = s.tick()
	ticket.UpdatedAt = ticket.CreatedAt
	s.tickets[ticket.ID] = *ticket
	return nil
}

func (s ticketStore) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, ok := s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &ticket, nil
}

func (s ticketStore) filtered(filter repository.TicketFilter) []domain.Ticket {
	var result []domain.Ticket
	for _, ticket := range s.tickets {
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

func (s ticketStore) ListWithFilter(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	result := s.filtered(filter)
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

func (s ticketStore) Count(ctx context.Context, filter repository.TicketFilter) (int, error) {
	return len(s.filtered(filter)), nil
}

func (s ticketStore) CountByStatus(ctx context.Context, filter repository.TicketFilter) (map[domain.TicketStatus]int, error) {
	result := make(map[domain.TicketStatus]int)
	for _, ticket := range s.filtered(filter) {
		result[ticket.Status]++
	}
	return result, nil
}

func (s ticketStore) CountByCategory(ctx context.Context, filter repository.TicketFilter) (map[domain.TicketCategory]int, error) {
	result := make(map[domain.TicketCategory]int)
	for _, ticket := range s.filtered(filter) {
		result[ticket.Category]++
	}
	return result, nil
}

func (s ticketStore) UpdateStatus(ctx context.Context, ticket *domain.Ticket, expected domain.TicketStatus, entry *domain.StatusChange) error {
	stored, ok := s.tickets[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if stored.Status != expected {
		return repository.ErrStaleStatus
	}
	ticket.UpdatedAt = s.tick()
	s.tickets[ticket.ID] = *ticket
	entry.ID = uuid.NewString()
	entry.ChangedAt = ticket.UpdatedAt
	s.history[ticket.ID] = append(s.history[ticket.ID], *entry)
	return nil
}

type historyStore struct{ *webStore }

func (s historyStore) ListByTicket(ctx context.Context, ticketID string) ([]domain.StatusChange, error) {
	entries := make([]domain.StatusChange, len(s.history[ticketID]))
	copy(entries, s.history[ticketID])
	return entries, nil
}

func (s historyStore) CountByTicket(ctx context.Context, ticketID string) (int, error) {
	return len(s.history[ticketID]), nil
}

type deptRepo struct{ *webStore }

func (s deptRepo) Create(ctx context.Context, department *domain.Department) error {
	department.ID = uuid.NewString()
	s.departments[department.ID] = *department
	return nil
}

func (s deptRepo) GetByID(ctx context.Context, id string) (*domain.Department, error) {
	department, ok := s.departments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &department, nil
}

func (s deptRepo) List(ctx context.Context) ([]domain.Department, error) {
	result := make([]domain.Department, 0, len(s.departments))
	for _, department := range s.departments {
		result = append(result, department)
	}
	return result, nil
}

type resetRepo struct{ *webStore }

func (s resetRepo) Create(ctx context.Context, token *repository.PasswordResetToken) error {
	token.ID = uuid.NewString()
	token.CreatedAt = s.tick()
	s.resets[token.ID] = *token
	return nil
}

func (s resetRepo) GetByToken(ctx context.Context, tokenStr string) (*repository.PasswordResetToken, error) {
	for _, token := range s.resets {
		if token.Token == tokenStr {
			t := token
			return &t, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s resetRepo) MarkUsed(ctx context.Context, id string) error {
	token, ok := s.resets[id]
	if !ok || token.UsedAt != nil {
		return pgx.ErrNoRows
	}
	now := s.tick()
	token.UsedAt = &now
	s.resets[id] = token
	return nil
}

type webEnv struct {
	app     *fiber.App
	store   *webStore
	authSvc *service.AuthService
}

func newWebEnv(t *testing.T) *webEnv {
	t.Helper()
	store := newWebStore()

	cfg := config.Config{}
	cfg.Auth = config.AuthConfig{
		JWTSecret:               "router-test-secret",
		AccessTokenTTLMinutes:   60,
		PasswordResetTTLMinutes: 15,
		BcryptCost:              bcrypt.MinCost,
	}

	authSvc := service.NewAuthService(cfg, service.AuthDependencies{
		UserRepo:          userRepo{store},
		DepartmentRepo:    deptRepo{store},
		PasswordResetRepo: resetRepo{store},
	})
	ticketSvc := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  ticketStore{store},
		HistoryRepo: historyStore{store},
		UserRepo:    userRepo{store},
		Dispatcher:  events.NewInMemoryDispatcher(),
	})

	metrics := observability.NewMetrics()
	app := fiber.New()
	api.RegisterMiddlewares(app, zap.NewNop(), metrics, 0)
	api.RegisterRoutes(app, api.RouteConfig{
		Health:         handlers.NewHealthHandler("portal", "test", nil, nil, metrics),
		Users:          handlers.NewUsersHandler(authSvc),
		Tickets:        handlers.NewTicketsHandler(ticketSvc),
		Departments:    handlers.NewDepartmentsHandler(service.NewDepartmentService(deptRepo{store})),
		AuthMiddleware: auth.NewAuthMiddleware(authSvc.TokenManager(), userRepo{store}),
	})

	return &webEnv{app: app, store: store, authSvc: authSvc}
}

// addUser seeds an account directly and returns a valid bearer token for it.
func (env *webEnv) addUser(t *testing.T, name, email string, role domain.Role) (domain.User, string) {
	t.Helper()
	user := domain.User{
		ID:    uuid.NewString(),
		Name:  name,
		Email: email,
		Role:  role,
	}
	env.store.users[user.ID] = user
	token, _, err := env.authSvc.TokenManager().GenerateToken(user.ID, user.Role)
	require.NoError(t, err)
	return user, token
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  []string        `json:"errors"`
}

func (env *webEnv) request(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestRoutes_RequireAuthentication(t *testing.T) {
	env := newWebEnv(t)

	for _, path := range []string{"/api/tickets/my", "/api/tickets", "/api/auth/me"} {
		status, body := env.request(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, status, path)
		assert.False(t, body.Success)
	}

	// A forged token is rejected too.
	status, body := env.request(t, http.MethodGet, "/api/tickets/my", "not-a-real-token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.False(t, body.Success)
}

func TestRoutes_RoleGates(t *testing.T) {
	env := newWebEnv(t)
	_, studentToken := env.addUser(t, "Alice", "alice@uni.example", domain.RoleStudent)
	_, adminToken := env.addUser(t, "Ada", "ada@uni.example", domain.RoleAdmin)
	_, deptToken := env.addUser(t, "Dana", "dana@uni.example", domain.RoleDepartment)

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
	}{
		{"admin cannot create", http.MethodPost, "/api/tickets", adminToken,
			fiber.Map{"title": "abc", "description": "long enough text", "category": "Other"}},
		{"student cannot list all", http.MethodGet, "/api/tickets", studentToken, nil},
		{"department cannot list all", http.MethodGet, "/api/tickets", deptToken, nil},
		{"admin cannot list mine", http.MethodGet, "/api/tickets/my", adminToken, nil},
		{"student cannot update status", http.MethodPut, "/api/tickets/" + uuid.NewString() + "/status",
			studentToken, fiber.Map{"status": "in_progress"}},
		{"admin cannot update status", http.MethodPut, "/api/tickets/" + uuid.NewString() + "/status",
			adminToken, fiber.Map{"status": "in_progress"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := env.request(t, tc.method, tc.path, tc.token, tc.body)
			assert.Equal(t, http.StatusForbidden, status)
			assert.False(t, body.Success)
		})
	}
}

func TestRoutes_TicketLifecycle(t *testing.T) {
	env := newWebEnv(t)
	studentA, tokenA := env.addUser(t, "Alice", "alice@uni.example", domain.RoleStudent)
	_, tokenB := env.addUser(t, "Bob", "bob@uni.example", domain.RoleStudent)
	_, deptToken := env.addUser(t, "Dana", "dana@uni.example", domain.RoleDepartment)
	_, adminToken := env.addUser(t, "Ada", "ada@uni.example", domain.RoleAdmin)

	// Student creates a ticket.
	status, body := env.request(t, http.MethodPost, "/api/tickets", tokenA, fiber.Map{
		"title":       "Missing exam grade",
		"description": "My grade for the midterm exam never appeared in the portal.",
		"category":    "Exam",
	})
	require.Equal(t, http.StatusCreated, status)
	require.True(t, body.Success)

	var created struct {
		ID       string `json:"id"`
		Status   string `json:"status"`
		Priority string `json:"priority"`
		Student  struct {
			ID string `json:"id"`
		} `json:"student"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &created))
	assert.Equal(t, "open", created.Status)
	assert.Equal(t, "medium", created.Priority)
	assert.Equal(t, studentA.ID, created.Student.ID)

	// A spoofed owner id in the payload is rejected outright.
	status, body = env.request(t, http.MethodPost, "/api/tickets", tokenA, fiber.Map{
		"title":       "Missing exam grade",
		"description": "My grade for the midterm exam never appeared in the portal.",
		"category":    "Exam",
		"studentId":   uuid.NewString(),
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, body.Success)

	// Department moves it to in_progress.
	status, body = env.request(t, http.MethodPut, "/api/tickets/"+created.ID+"/status", deptToken,
		fiber.Map{"status": "in_progress"})
	require.Equal(t, http.StatusOK, status)
	require.True(t, body.Success)

	var updated struct {
		Status        string `json:"status"`
		StatusHistory []struct {
			Status  string `json:"status"`
			Comment string `json:"comment"`
		} `json:"statusHistory"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &updated))
	assert.Equal(t, "in_progress", updated.Status)
	require.Len(t, updated.StatusHistory, 1)
	assert.Equal(t, "Status updated to in_progress", updated.StatusHistory[0].Comment)

	// Jumping straight back to open is not a thing.
	status, body = env.request(t, http.MethodPut, "/api/tickets/"+created.ID+"/status", deptToken,
		fiber.Map{"status": "open"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, body.Success)

	// Owner and staff can read it, another student cannot.
	status, _ = env.request(t, http.MethodGet, "/api/tickets/"+created.ID, tokenA, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = env.request(t, http.MethodGet, "/api/tickets/"+created.ID, adminToken, nil)
	assert.Equal(t, http.StatusOK, status)
	status, body = env.request(t, http.MethodGet, "/api/tickets/"+created.ID, tokenB, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.False(t, body.Success)

	// Admin listing carries pagination meta and rollups.
	status, body = env.request(t, http.MethodGet, "/api/tickets?page=1&limit=10", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	var listing struct {
		Tickets    []json.RawMessage `json:"tickets"`
		Pagination struct {
			CurrentPage  int  `json:"currentPage"`
			TotalTickets int  `json:"totalTickets"`
			HasNext      bool `json:"hasNext"`
		} `json:"pagination"`
		Statistics struct {
			Status map[string]int `json:"status"`
		} `json:"statistics"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &listing))
	assert.Len(t, listing.Tickets, 1)
	assert.Equal(t, 1, listing.Pagination.CurrentPage)
	assert.Equal(t, 1, listing.Pagination.TotalTickets)
	assert.False(t, listing.Pagination.HasNext)
	assert.Equal(t, 1, listing.Statistics.Status["in_progress"])
}

func TestRoutes_RegisterAndLogin(t *testing.T) {
	env := newWebEnv(t)

	status, body := env.request(t, http.MethodPost, "/api/auth/register", "", fiber.Map{
		"name":     "Alice",
		"email":    "alice@uni.example",
		"password": "secret1",
	})
	require.Equal(t, http.StatusCreated, status)
	require.True(t, body.Success)

	status, body = env.request(t, http.MethodPost, "/api/auth/login", "", fiber.Map{
		"email":    "alice@uni.example",
		"password": "secret1",
	})
	require.Equal(t, http.StatusOK, status)
	var login struct {
		Token string `json:"token"`
		User  struct {
			Role string `json:"role"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &login))
	require.NotEmpty(t, login.Token)
	assert.Equal(t, "student", login.User.Role)

	status, body = env.request(t, http.MethodGet, "/api/auth/me", login.Token, nil)
	require.Equal(t, http.StatusOK, status)
	var me struct {
		Email string `json:"email"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &me))
	assert.Equal(t, "alice@uni.example", me.Email)
}

func TestRoutes_Departments(t *testing.T) {
	env := newWebEnv(t)
	_, adminToken := env.addUser(t, "Ada", "ada@uni.example", domain.RoleAdmin)
	_, studentToken := env.addUser(t, "Alice", "alice@uni.example", domain.RoleStudent)

	// Only admins create departments.
	status, body := env.request(t, http.MethodPost, "/api/departments", studentToken,
		fiber.Map{"name": "Registrar"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.False(t, body.Success)

	status, body = env.request(t, http.MethodPost, "/api/departments", adminToken,
		fiber.Map{"name": "Registrar", "description": "Grades and records"})
	require.Equal(t, http.StatusCreated, status)
	require.True(t, body.Success)

	var created struct {
		ID       string `json:"id"`
		IsActive bool   `json:"isActive"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &created))
	assert.True(t, created.IsActive)

	// The listing is public and shows the new department.
	status, body = env.request(t, http.MethodGet, "/api/departments", "", nil)
	require.Equal(t, http.StatusOK, status)
	var listed []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)
	assert.Equal(t, "Registrar", listed[0].Name)

	// A department account can now register against it.
	status, body = env.request(t, http.MethodPost, "/api/auth/register", "", fiber.Map{
		"name":         "Dana",
		"email":        "dana@uni.example",
		"password":     "secret1",
		"role":         "department",
		"departmentId": created.ID,
	})
	require.Equal(t, http.StatusCreated, status)
	require.True(t, body.Success)
}

func TestRoutes_UnknownTicket(t *testing.T) {
	env := newWebEnv(t)
	_, adminToken := env.addUser(t, "Ada", "ada@uni.example", domain.RoleAdmin)

	status, body := env.request(t, http.MethodGet, "/api/tickets/"+uuid.NewString(), adminToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, body.Success)

	status, body = env.request(t, http.MethodGet, "/api/tickets/not-a-uuid", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, body.Success)
}

func TestRoutes_HealthAndMetrics(t *testing.T) {
	env := newWebEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/health/metrics", nil)
	resp, err = env.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var metrics struct {
		Service string `json:"service"`
		Routes  []struct {
			Route    string `json:"route"`
			Requests int64  `json:"requests"`
		} `json:"routes"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&metrics))
	assert.Equal(t, "portal", metrics.Service)
	require.NotEmpty(t, metrics.Routes)
}
