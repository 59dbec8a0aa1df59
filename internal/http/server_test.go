package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"expensetracker/internal/auth"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/services"
	"expensetracker/internal/storage"

	"github.com/stretchr/testify/suite"
)

type apiResponse struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *ErrorBody      `json:"error"`
	RequestID string          `json:"request_id"`
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("disk full") }

type APISuite struct {
	suite.Suite
	repo   *storage.SQLiteRepository
	set    *services.Set
	server *Server
	now    time.Time
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupTest() {
	repo, err := storage.NewSQLiteRepository(filepath.Join(s.T().TempDir(), "api.db"))
	s.Require().NoError(err)
	s.repo = repo
	s.now = time.Date(2025, 4, 15, 10, 0, 0, 0, time.UTC)

	logger := log.Discard()
	s.set = services.NewSet(services.SetConfig{Store: repo, Logger: logger})
	s.set.SetClock(func() time.Time { return s.now })

	authSvc := auth.NewService(repo, auth.NewTokenManager("test-secret-test-secret-32-bytes", time.Hour), logger)
	s.server = NewServer(":0", Services{
		Auth:          authSvc,
		Expenses:      s.set.Expenses,
		Budget:        s.set.Budget,
		Profile:       s.set.Profile,
		Recurring:     s.set.Recurring,
		Reports:       s.set.Reports,
		Notifications: s.set.Notifications,
		Ready:         repo,
	}, Options{RateLimitPerMinute: 1000, CORSOrigins: "http://localhost:5173", Version: "test"}, logger)
}

func (s *APISuite) TearDownTest() {
	s.Require().NoError(s.server.Shutdown(context.Background()))
	s.Require().NoError(s.repo.Close())
}

func (s *APISuite) do(method, path, token string, body any) (int, apiResponse, http.Header) {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rr, req)

	var resp apiResponse
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &resp), "body: %s", rr.Body.String())
	return rr.Code, resp, rr.Header()
}

func (s *APISuite) decode(resp apiResponse, dst any) {
	s.Require().NoError(json.Unmarshal(resp.Data, dst))
}

func (s *APISuite) register(name, email string) string {
	code, resp, _ := s.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": name, "email": email, "password": "correct-horse", "currency": "EUR",
	})
	s.Require().Equal(http.StatusCreated, code, "register: %+v", resp.Error)
	var session auth.Session
	s.decode(resp, &session)
	s.Require().NotEmpty(session.Token)
	return session.Token
}

func (s *APISuite) createExpense(token, title, amount, category, date string) core.Expense {
	code, resp, _ := s.do(http.MethodPost, "/api/expenses", token, map[string]string{
		"title": title, "amount": amount, "category": category, "date": date,
	})
	s.Require().Equal(http.StatusCreated, code, "create: %+v", resp.Error)
	var e core.Expense
	s.decode(resp, &e)
	return e
}

func (s *APISuite) TestHealthAndReadiness() {
	code, resp, headers := s.do(http.MethodGet, "/api/health", "", nil)
	s.Equal(http.StatusOK, code)
	s.True(resp.Success)
	s.NotEmpty(resp.RequestID)
	s.Equal(resp.RequestID, headers.Get("X-Request-ID"))
	s.Equal("nosniff", headers.Get("X-Content-Type-Options"))

	code, _, _ = s.do(http.MethodGet, "/healthz", "", nil)
	s.Equal(http.StatusOK, code)
	code, _, _ = s.do(http.MethodGet, "/readyz", "", nil)
	s.Equal(http.StatusOK, code)

	s.server.svc.Ready = failingPinger{}
	code, resp, _ = s.do(http.MethodGet, "/readyz", "", nil)
	s.Equal(http.StatusServiceUnavailable, code)
	s.False(resp.Success)
}

func (s *APISuite) TestRegisterLoginMe() {
	token := s.register("Alice", "alice@example.com")

	code, resp, _ := s.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Again", "email": "ALICE@example.com", "password": "correct-horse",
	})
	s.Equal(http.StatusConflict, code)
	s.False(resp.Success)

	code, resp, _ = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "wrong-password",
	})
	s.Equal(http.StatusUnauthorized, code)

	code, resp, _ = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "correct-horse",
	})
	s.Require().Equal(http.StatusOK, code)

	code, resp, _ = s.do(http.MethodGet, "/api/auth/me", token, nil)
	s.Require().Equal(http.StatusOK, code)
	var me core.User
	s.decode(resp, &me)
	s.Equal("alice@example.com", me.Email)
	s.NotContains(string(resp.Data), "password")
}

func (s *APISuite) TestRegisterValidation() {
	code, resp, _ := s.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "", "email": "not-an-email", "password": "short", "currency": "eur",
	})
	s.Equal(http.StatusUnprocessableEntity, code)
	s.Require().NotNil(resp.Error)
	s.Equal("is required", resp.Error.Details["name"])
	s.Equal("must be a valid email", resp.Error.Details["email"])
	s.Contains(resp.Error.Details, "password")
	s.Contains(resp.Error.Details, "currency")
}

func (s *APISuite) TestMalformedJSON() {
	token := s.register("Alice", "alice@example.com")
	code, resp, _ := s.do(http.MethodPost, "/api/expenses", token, `{"title": "Lunch",`)
	s.Equal(http.StatusBadRequest, code)
	s.Equal("malformed JSON", resp.Error.Message)

	code, _, _ = s.do(http.MethodPost, "/api/expenses", token, `{"title": 12}`)
	s.Equal(http.StatusUnprocessableEntity, code)
}

func (s *APISuite) TestProtectedRoutesRequireToken() {
	for _, path := range []string{"/api/expenses", "/api/budget", "/api/profile", "/api/reports/summary", "/api/notifications"} {
		code, resp, _ := s.do(http.MethodGet, path, "", nil)
		s.Equal(http.StatusUnauthorized, code, path)
		s.False(resp.Success)
	}

	other := auth.NewTokenManager("another-secret-another-secret-32b", time.Hour)
	forged, _, err := other.Issue("someone")
	s.Require().NoError(err)
	code, _, _ := s.do(http.MethodGet, "/api/expenses", forged, nil)
	s.Equal(http.StatusUnauthorized, code)
}

func (s *APISuite) TestExpenseCRUD() {
	token := s.register("Alice", "alice@example.com")

	e := s.createExpense(token, "  Groceries ", "42.50", "Food", "2025-04-10")
	s.Equal("Groceries", e.Title)
	s.Equal(int64(4250), e.Amount.Cents)

	code, resp, _ := s.do(http.MethodGet, "/api/expenses/"+e.ID, token, nil)
	s.Require().Equal(http.StatusOK, code)

	code, resp, _ = s.do(http.MethodPut, "/api/expenses/"+e.ID, token, map[string]string{
		"title": "Groceries", "amount": "40", "category": "food", "date": "2025-04-11",
	})
	s.Require().Equal(http.StatusOK, code, "%+v", resp.Error)
	var updated core.Expense
	s.decode(resp, &updated)
	s.Equal(int64(4000), updated.Amount.Cents)
	s.Equal("2025-04-11", updated.Date.String())

	s.createExpense(token, "Train", "12", "transport", "2025-03-02")
	code, resp, _ = s.do(http.MethodGet, "/api/expenses?from=2025-04-01&to=2025-04-30", token, nil)
	s.Require().Equal(http.StatusOK, code)
	var page services.ExpensePage
	s.decode(resp, &page)
	s.Equal(1, page.Total)

	code, resp, _ = s.do(http.MethodGet, "/api/expenses?limit=1&offset=1", token, nil)
	s.Require().Equal(http.StatusOK, code)
	s.decode(resp, &page)
	s.Equal(2, page.Total)
	s.Len(page.Items, 1)
	s.Equal("Train", page.Items[0].Title)

	code, resp, _ = s.do(http.MethodGet, "/api/expenses?from=2025-05-01&to=2025-04-01", token, nil)
	s.Equal(http.StatusUnprocessableEntity, code)
	s.Contains(resp.Error.Details, "to")

	code, _, _ = s.do(http.MethodDelete, "/api/expenses/"+e.ID, token, nil)
	s.Equal(http.StatusOK, code)
	code, _, _ = s.do(http.MethodGet, "/api/expenses/"+e.ID, token, nil)
	s.Equal(http.StatusNotFound, code)
}

func (s *APISuite) TestExpenseValidation() {
	token := s.register("Alice", "alice@example.com")

	tests := []struct {
		name  string
		body  map[string]any
		field string
	}{
		{"zero amount", map[string]any{"title": "x", "amount": 0, "category": "c", "date": "2025-04-01"}, "amount"},
		{"negative amount", map[string]any{"title": "x", "amount": "-3", "category": "c", "date": "2025-04-01"}, "amount"},
		{"missing title", map[string]any{"amount": 3, "category": "c", "date": "2025-04-01"}, "title"},
		{"bad date", map[string]any{"title": "x", "amount": 3, "category": "c", "date": "2025-02-30"}, "date"},
		{"missing date", map[string]any{"title": "x", "amount": 3, "category": "c"}, "date"},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			code, resp, _ := s.do(http.MethodPost, "/api/expenses", token, tt.body)
			s.Equal(http.StatusUnprocessableEntity, code)
			s.Require().NotNil(resp.Error)
			s.Contains(resp.Error.Details, tt.field)
		})
	}
}

func (s *APISuite) TestUsersCannotSeeEachOthersExpenses() {
	alice := s.register("Alice", "alice@example.com")
	bob := s.register("Bob", "bob@example.com")
	e := s.createExpense(alice, "Secret", "10", "misc", "2025-04-01")

	code, _, _ := s.do(http.MethodGet, "/api/expenses/"+e.ID, bob, nil)
	s.Equal(http.StatusNotFound, code)
	code, _, _ = s.do(http.MethodDelete, "/api/expenses/"+e.ID, bob, nil)
	s.Equal(http.StatusNotFound, code)

	_, resp, _ := s.do(http.MethodGet, "/api/expenses", bob, nil)
	var page services.ExpensePage
	s.decode(resp, &page)
	s.Zero(page.Total)
}

func (s *APISuite) TestBudgetAndNotifications() {
	token := s.register("Alice", "alice@example.com")

	code, resp, _ := s.do(http.MethodPut, "/api/budget", token, map[string]any{"monthly_budget": "100", "alert_threshold": 80})
	s.Require().Equal(http.StatusOK, code, "%+v", resp.Error)

	code, resp, _ = s.do(http.MethodPut, "/api/budget", token, map[string]any{"monthly_budget": "100", "alert_threshold": 150})
	s.Equal(http.StatusUnprocessableEntity, code)
	s.Contains(resp.Error.Details, "alert_threshold")

	s.createExpense(token, "Rent share", "85", "home", "2025-04-02")

	code, resp, _ = s.do(http.MethodGet, "/api/budget?year=2025&month=4", token, nil)
	s.Require().Equal(http.StatusOK, code)
	var b core.BudgetSettings
	s.decode(resp, &b)
	s.Equal(int64(8500), b.Spent.Cents)
	s.Equal(int64(1500), b.Remaining.Cents)
	s.Equal(85.0, b.UsedPercent)

	code, _, _ = s.do(http.MethodGet, "/api/budget?month=13", token, nil)
	s.Equal(http.StatusUnprocessableEntity, code)

	code, resp, _ = s.do(http.MethodGet, "/api/notifications?unread=true", token, nil)
	s.Require().Equal(http.StatusOK, code)
	var list NotificationList
	s.decode(resp, &list)
	s.Require().Len(list.Items, 1)
	s.Equal(core.NotifyBudgetAlert, list.Items[0].Kind)
	s.Equal(1, list.UnreadCount)

	code, _, _ = s.do(http.MethodPost, "/api/notifications/"+list.Items[0].ID+"/read", token, nil)
	s.Equal(http.StatusOK, code)
	code, _, _ = s.do(http.MethodPost, "/api/notifications/missing/read", token, nil)
	s.Equal(http.StatusNotFound, code)

	s.createExpense(token, "Dinner", "30", "food", "2025-04-03")
	code, resp, _ = s.do(http.MethodPost, "/api/notifications/read-all", token, nil)
	s.Require().Equal(http.StatusOK, code)
	var updated map[string]int
	s.decode(resp, &updated)
	s.Equal(1, updated["updated"], "the exceeded notification")
}

func (s *APISuite) TestRecurringLifecycle() {
	token := s.register("Alice", "alice@example.com")

	code, resp, _ := s.do(http.MethodPost, "/api/recurring", token, map[string]any{
		"title": "Gym", "amount": "30", "category": "health", "frequency": "monthly", "next_occurrence": "2025-05-31",
	})
	s.Require().Equal(http.StatusCreated, code, "%+v", resp.Error)
	var re core.RecurringExpense
	s.decode(resp, &re)
	s.True(re.Active, "active defaults to true")

	code, resp, _ = s.do(http.MethodPost, "/api/recurring", token, map[string]any{
		"title": "Gym", "amount": "30", "category": "health", "frequency": "hourly", "next_occurrence": "2025-05-31",
	})
	s.Equal(http.StatusUnprocessableEntity, code)
	s.Contains(resp.Error.Details["frequency"], "must be one of")

	code, resp, _ = s.do(http.MethodPost, "/api/recurring/"+re.ID+"/pause", token, nil)
	s.Require().Equal(http.StatusOK, code)
	s.decode(resp, &re)
	s.False(re.Active)

	code, resp, _ = s.do(http.MethodPost, "/api/recurring/"+re.ID+"/resume", token, nil)
	s.Require().Equal(http.StatusOK, code)
	s.decode(resp, &re)
	s.True(re.Active)

	code, resp, _ = s.do(http.MethodPut, "/api/recurring/"+re.ID, token, map[string]any{
		"title": "Gym", "amount": "35", "category": "health", "frequency": "monthly", "next_occurrence": "2025-05-31", "active": false,
	})
	s.Require().Equal(http.StatusOK, code, "%+v", resp.Error)
	s.decode(resp, &re)
	s.Equal(int64(3500), re.Amount.Cents)
	s.False(re.Active)

	code, resp, _ = s.do(http.MethodGet, "/api/recurring", token, nil)
	s.Require().Equal(http.StatusOK, code)
	var items []core.RecurringExpense
	s.decode(resp, &items)
	s.Len(items, 1)

	code, _, _ = s.do(http.MethodDelete, "/api/recurring/"+re.ID, token, nil)
	s.Equal(http.StatusOK, code)
	code, _, _ = s.do(http.MethodGet, "/api/recurring/"+re.ID, token, nil)
	s.Equal(http.StatusNotFound, code)
}

func (s *APISuite) TestReports() {
	token := s.register("Alice", "alice@example.com")
	s.createExpense(token, "Groceries", "40", "food", "2025-04-01")
	s.createExpense(token, "Pizza", "10", "food", "2025-04-05")
	s.createExpense(token, "Bus", "2.50", "transport", "2025-03-20")

	code, resp, _ := s.do(http.MethodGet, "/api/reports/monthly?year=2025&month=4", token, nil)
	s.Require().Equal(http.StatusOK, code)
	var overview core.MonthOverview
	s.decode(resp, &overview)
	s.Equal(int64(5000), overview.Total.Cents)
	s.Require().Len(overview.ByCategory, 1)
	s.Equal("food", overview.ByCategory[0].Name)

	code, resp, _ = s.do(http.MethodGet, "/api/reports/trend?months=3&year=2025&month=4", token, nil)
	s.Require().Equal(http.StatusOK, code)
	var points []core.TrendPoint
	s.decode(resp, &points)
	s.Require().Len(points, 3)
	s.Equal(int64(250), points[1].Total.Cents)
	s.Equal(int64(5000), points[2].Total.Cents)

	code, _, _ = s.do(http.MethodGet, "/api/reports/trend?months=99", token, nil)
	s.Equal(http.StatusUnprocessableEntity, code)

	code, resp, _ = s.do(http.MethodGet, "/api/reports/summary", token, nil)
	s.Require().Equal(http.StatusOK, code)
	s.True(strings.Contains(string(resp.Data), `"month":4`))
}

func (s *APISuite) TestProfile() {
	token := s.register("Alice", "alice@example.com")

	code, resp, _ := s.do(http.MethodPut, "/api/profile", token, map[string]string{"name": "Alice B.", "currency": "USD"})
	s.Require().Equal(http.StatusOK, code, "%+v", resp.Error)
	var u core.User
	s.decode(resp, &u)
	s.Equal("Alice B.", u.Name)
	s.Equal("USD", u.Currency)
	s.Equal("alice@example.com", u.Email)

	s.register("Bob", "bob@example.com")
	code, _, _ = s.do(http.MethodPut, "/api/profile", token, map[string]string{"email": "bob@example.com"})
	s.Equal(http.StatusConflict, code)

	code, resp, _ = s.do(http.MethodPut, "/api/profile/password", token, map[string]string{
		"current_password": "nope-nope", "new_password": "new-password-1",
	})
	s.Equal(http.StatusUnprocessableEntity, code)
	s.Contains(resp.Error.Details, "current_password")

	code, _, _ = s.do(http.MethodPut, "/api/profile/password", token, map[string]string{
		"current_password": "correct-horse", "new_password": "new-password-1",
	})
	s.Equal(http.StatusOK, code)
	code, _, _ = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "new-password-1",
	})
	s.Equal(http.StatusOK, code)
}

func (s *APISuite) TestRateLimitOnWrites() {
	s.Require().NoError(s.server.Shutdown(context.Background()))
	s.server = NewServer(":0", s.server.svc, Options{RateLimitPerMinute: 2}, log.Discard())

	body := map[string]string{"email": "nobody@example.com", "password": "whatever-1"}
	for i := 0; i < 2; i++ {
		code, _, _ := s.do(http.MethodPost, "/api/auth/login", "", body)
		s.Equal(http.StatusUnauthorized, code)
	}
	code, resp, headers := s.do(http.MethodPost, "/api/auth/login", "", body)
	s.Equal(http.StatusTooManyRequests, code)
	s.NotEmpty(headers.Get("Retry-After"))
	s.False(resp.Success)

	code, _, _ = s.do(http.MethodGet, "/api/health", "", nil)
	s.Equal(http.StatusOK, code, "reads are not limited")
}

func (s *APISuite) TestCORSPreflight() {
	req := httptest.NewRequest(http.MethodOptions, "/api/expenses", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rr, req)
	s.Equal(http.StatusNoContent, rr.Code)
	s.Equal("http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))
}
