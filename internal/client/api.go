// Package client talks to the expense API and keeps a local shadow copy of
// the user's data so that every operation keeps working when the backend is
// unreachable.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"expensetracker/internal/core"
)

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Status    int
	Message   string
	Details   map[string]string
	RequestID string
}

func (e *APIError) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
	}
	fields := make([]string, 0, len(e.Details))
	for f, msg := range e.Details {
		fields = append(fields, f+" "+msg)
	}
	return fmt.Sprintf("api error %d: %s (%s)", e.Status, e.Message, strings.Join(fields, "; "))
}

// IsAPIError reports whether err came back from the backend, as opposed to
// a transport failure.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// TransportError is a request that never got an answer: refused
// connection, timeout, reset before the response arrived.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// ResponseError is a 2xx answer whose body could not be decoded. The
// backend has already applied the request.
type ResponseError struct {
	Status int
	Op     string
	Err    error
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("decode %s (status %d): %v", e.Op, e.Status, e.Err)
}

func (e *ResponseError) Unwrap() error { return e.Err }

// isTransportError is true for failures that say nothing about the request
// itself: no answer at all, or a 5xx from a proxy in front of a dead
// backend. Anything the backend answered is not one.
func isTransportError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusBadGateway ||
			apiErr.Status == http.StatusServiceUnavailable ||
			apiErr.Status == http.StatusGatewayTimeout
	}
	var tErr *TransportError
	return errors.As(err, &tErr)
}

// Account is an authenticated session.
type Account struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      core.User `json:"user"`
	// Local marks accounts created or logged in without the backend.
	Local bool `json:"local,omitempty"`
}

// ExpenseInput is the writable part of an expense.
type ExpenseInput struct {
	Title       string     `json:"title"`
	Amount      core.Money `json:"amount"`
	Category    string     `json:"category"`
	Date        core.Date  `json:"date"`
	Description string     `json:"description,omitempty"`
}

// ExpenseQuery filters ListExpenses. Zero values mean no constraint.
type ExpenseQuery struct {
	From     core.Date
	To       core.Date
	Category string
	Limit    int
	Offset   int
}

func (q ExpenseQuery) values() url.Values {
	v := url.Values{}
	if !q.From.IsZero() {
		v.Set("from", q.From.String())
	}
	if !q.To.IsZero() {
		v.Set("to", q.To.String())
	}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	return v
}

// IsZero is true when the query selects everything.
func (q ExpenseQuery) IsZero() bool {
	return q == ExpenseQuery{}
}

// ExpensePage is one page of expenses.
type ExpensePage struct {
	Items  []core.Expense `json:"items"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// RecurringInput is the writable part of a recurring template.
type RecurringInput struct {
	Title          string         `json:"title"`
	Amount         core.Money     `json:"amount"`
	Category       string         `json:"category"`
	Frequency      core.Frequency `json:"frequency"`
	NextOccurrence core.Date      `json:"next_occurrence"`
	Active         *bool          `json:"active,omitempty"`
}

// BudgetInput updates the monthly budget.
type BudgetInput struct {
	MonthlyBudget  core.Money `json:"monthly_budget"`
	AlertThreshold int        `json:"alert_threshold,omitempty"`
}

// ProfileInput changes profile fields; nil leaves a field untouched.
type ProfileInput struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Currency *string `json:"currency,omitempty"`
	Avatar   *string `json:"avatar,omitempty"`
}

// NotificationList is the body of the notifications endpoint.
type NotificationList struct {
	Items       []core.Notification `json:"items"`
	UnreadCount int                 `json:"unread_count"`
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

// API is a typed client for the expense backend.
type API struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// NewAPI creates a client for baseURL. A nil httpClient gets a 10s timeout.
func NewAPI(baseURL string, httpClient *http.Client) *API {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &API{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// SetToken sets the bearer token sent with every request.
func (a *API) SetToken(token string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.token = token
}

func (a *API) bearer() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

func (a *API) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := a.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := a.bearer(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	op := method + " " + path
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		if decodeErr == nil && env.Error != nil {
			apiErr.Message = env.Error.Message
			apiErr.Details = env.Error.Details
			apiErr.RequestID = env.RequestID
		}
		return apiErr
	}
	if decodeErr != nil {
		return &ResponseError{Status: resp.StatusCode, Op: op, Err: decodeErr}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &ResponseError{Status: resp.StatusCode, Op: op, Err: err}
		}
	}
	return nil
}

// Health pings /api/health.
func (a *API) Health(ctx context.Context) error {
	return a.do(ctx, http.MethodGet, "/api/health", nil, nil, nil)
}

func (a *API) Register(ctx context.Context, name, email, password, currency string) (Account, error) {
	var acc Account
	err := a.do(ctx, http.MethodPost, "/api/auth/register", nil, map[string]string{
		"name": name, "email": email, "password": password, "currency": currency,
	}, &acc)
	return acc, err
}

func (a *API) Login(ctx context.Context, email, password string) (Account, error) {
	var acc Account
	err := a.do(ctx, http.MethodPost, "/api/auth/login", nil, map[string]string{
		"email": email, "password": password,
	}, &acc)
	return acc, err
}

func (a *API) Me(ctx context.Context) (core.User, error) {
	var u core.User
	err := a.do(ctx, http.MethodGet, "/api/auth/me", nil, nil, &u)
	return u, err
}

func (a *API) Profile(ctx context.Context) (core.User, error) {
	var u core.User
	err := a.do(ctx, http.MethodGet, "/api/profile", nil, nil, &u)
	return u, err
}

func (a *API) UpdateProfile(ctx context.Context, in ProfileInput) (core.User, error) {
	var u core.User
	err := a.do(ctx, http.MethodPut, "/api/profile", nil, in, &u)
	return u, err
}

func (a *API) ChangePassword(ctx context.Context, current, next string) error {
	return a.do(ctx, http.MethodPut, "/api/profile/password", nil, map[string]string{
		"current_password": current, "new_password": next,
	}, nil)
}

func (a *API) ListExpenses(ctx context.Context, q ExpenseQuery) (ExpensePage, error) {
	var page ExpensePage
	err := a.do(ctx, http.MethodGet, "/api/expenses", q.values(), nil, &page)
	return page, err
}

func (a *API) CreateExpense(ctx context.Context, in ExpenseInput) (core.Expense, error) {
	var e core.Expense
	err := a.do(ctx, http.MethodPost, "/api/expenses", nil, in, &e)
	return e, err
}

func (a *API) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	var e core.Expense
	err := a.do(ctx, http.MethodGet, "/api/expenses/"+url.PathEscape(id), nil, nil, &e)
	return e, err
}

func (a *API) UpdateExpense(ctx context.Context, id string, in ExpenseInput) (core.Expense, error) {
	var e core.Expense
	err := a.do(ctx, http.MethodPut, "/api/expenses/"+url.PathEscape(id), nil, in, &e)
	return e, err
}

func (a *API) DeleteExpense(ctx context.Context, id string) error {
	return a.do(ctx, http.MethodDelete, "/api/expenses/"+url.PathEscape(id), nil, nil, nil)
}

func monthQuery(year, month int) url.Values {
	v := url.Values{}
	if year > 0 {
		v.Set("year", strconv.Itoa(year))
	}
	if month > 0 {
		v.Set("month", strconv.Itoa(month))
	}
	return v
}

func (a *API) Budget(ctx context.Context, year, month int) (core.BudgetSettings, error) {
	var b core.BudgetSettings
	err := a.do(ctx, http.MethodGet, "/api/budget", monthQuery(year, month), nil, &b)
	return b, err
}

func (a *API) UpdateBudget(ctx context.Context, in BudgetInput) (core.BudgetSettings, error) {
	var b core.BudgetSettings
	err := a.do(ctx, http.MethodPut, "/api/budget", nil, in, &b)
	return b, err
}

func (a *API) ListRecurring(ctx context.Context) ([]core.RecurringExpense, error) {
	var items []core.RecurringExpense
	err := a.do(ctx, http.MethodGet, "/api/recurring", nil, nil, &items)
	return items, err
}

func (a *API) CreateRecurring(ctx context.Context, in RecurringInput) (core.RecurringExpense, error) {
	var re core.RecurringExpense
	err := a.do(ctx, http.MethodPost, "/api/recurring", nil, in, &re)
	return re, err
}

func (a *API) UpdateRecurring(ctx context.Context, id string, in RecurringInput) (core.RecurringExpense, error) {
	var re core.RecurringExpense
	err := a.do(ctx, http.MethodPut, "/api/recurring/"+url.PathEscape(id), nil, in, &re)
	return re, err
}

func (a *API) DeleteRecurring(ctx context.Context, id string) error {
	return a.do(ctx, http.MethodDelete, "/api/recurring/"+url.PathEscape(id), nil, nil, nil)
}

// SetRecurringActive pauses or resumes a template.
func (a *API) SetRecurringActive(ctx context.Context, id string, active bool) (core.RecurringExpense, error) {
	action := "pause"
	if active {
		action = "resume"
	}
	var re core.RecurringExpense
	err := a.do(ctx, http.MethodPost, "/api/recurring/"+url.PathEscape(id)+"/"+action, nil, nil, &re)
	return re, err
}

func (a *API) MonthlyReport(ctx context.Context, year, month int) (core.MonthOverview, error) {
	var o core.MonthOverview
	err := a.do(ctx, http.MethodGet, "/api/reports/monthly", monthQuery(year, month), nil, &o)
	return o, err
}

func (a *API) Trend(ctx context.Context, year, month, months int) ([]core.TrendPoint, error) {
	q := monthQuery(year, month)
	if months > 0 {
		q.Set("months", strconv.Itoa(months))
	}
	var points []core.TrendPoint
	err := a.do(ctx, http.MethodGet, "/api/reports/trend", q, nil, &points)
	return points, err
}

func (a *API) Summary(ctx context.Context, year, month int) (core.Summary, error) {
	var s core.Summary
	err := a.do(ctx, http.MethodGet, "/api/reports/summary", monthQuery(year, month), nil, &s)
	return s, err
}

func (a *API) Notifications(ctx context.Context, unreadOnly bool) (NotificationList, error) {
	q := url.Values{}
	if unreadOnly {
		q.Set("unread", "true")
	}
	var list NotificationList
	err := a.do(ctx, http.MethodGet, "/api/notifications", q, nil, &list)
	return list, err
}

func (a *API) MarkNotificationRead(ctx context.Context, id string) error {
	return a.do(ctx, http.MethodPost, "/api/notifications/"+url.PathEscape(id)+"/read", nil, nil, nil)
}

func (a *API) MarkAllNotificationsRead(ctx context.Context) (int, error) {
	var out struct {
		Updated int `json:"updated"`
	}
	err := a.do(ctx, http.MethodPost, "/api/notifications/read-all", nil, nil, &out)
	return out.Updated, err
}
