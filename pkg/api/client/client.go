// Package client provides typed access to the todolist API for
// interactive tools, plus client-side bookkeeping for optimistic
// updates.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SessionCookieName matches the cookie the server issues.
const SessionCookieName = "session"

// Client talks to the todolist API. The session cookie captured at
// login is replayed on every subsequent request.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	sessionToken string
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithSessionToken restores a previously persisted session cookie value.
func WithSessionToken(token string) Option {
	return func(c *Client) {
		c.sessionToken = strings.TrimSpace(token)
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = "http://localhost:4000"
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// SessionToken returns the current session cookie value for persisting
// between invocations.
func (c *Client) SessionToken() string {
	return c.sessionToken
}

// APIError represents an error response from the API.
type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body any, v any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := c.baseURL + path
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.sessionToken != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: c.sessionToken})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	c.captureSession(resp)

	if resp.StatusCode >= http.StatusBadRequest {
		msg := extractError(resp.Body)
		return APIError{Status: resp.StatusCode, Message: msg}
	}

	if v == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// captureSession tracks Set-Cookie updates to the session cookie,
// including its removal at logout.
func (c *Client) captureSession(resp *http.Response) {
	for _, cookie := range resp.Cookies() {
		if cookie.Name != SessionCookieName {
			continue
		}
		if cookie.MaxAge < 0 || cookie.Value == "" {
			c.sessionToken = ""
		} else {
			c.sessionToken = cookie.Value
		}
	}
}

func extractError(body io.Reader) string {
	if body == nil {
		return ""
	}
	var payload struct {
		Error string `json:"error"`
	}
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return ""
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}
	return strings.TrimSpace(payload.Error)
}

// User reflects API user payloads.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Todo mirrors the server's todo payload.
type Todo struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Priority    string     `json:"priority"`
	Deadline    *time.Time `json:"deadline"`
	IsDone      bool       `json:"isDone"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	UserID      string     `json:"userId"`
}

// Pagination mirrors the listing metadata.
type Pagination struct {
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	Total       int  `json:"total"`
	TotalPages  int  `json:"totalPages"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

// ListResult is one page of todos.
type ListResult struct {
	Data       []Todo     `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Success           bool `json:"success"`
	User              User `json:"user"`
	InitialTodosCount int  `json:"initialTodosCount"`
}

// Stats mirrors the stats endpoint payload.
type Stats struct {
	Period            string  `json:"period"`
	Total             int     `json:"total"`
	Completed         int     `json:"completed"`
	Pending           int     `json:"pending"`
	Overdue           int     `json:"overdue"`
	CompletionRate    float64 `json:"completionRate"`
	PriorityBreakdown struct {
		Low    int `json:"low"`
		Medium int `json:"medium"`
		High   int `json:"high"`
	} `json:"priorityBreakdown"`
	RecentTodos []struct {
		ID        string    `json:"id"`
		Title     string    `json:"title"`
		Priority  string    `json:"priority"`
		IsDone    bool      `json:"isDone"`
		CreatedAt time.Time `json:"createdAt"`
	} `json:"recentTodos"`
}

// BulkResult reports the outcome of a bulk action.
type BulkResult struct {
	Message       string `json:"message"`
	AffectedCount int    `json:"affectedCount"`
}

// Register creates an account and captures the session cookie.
func (c *Client) Register(ctx context.Context, email, password, name string) (*AuthResponse, error) {
	var out AuthResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/register", map[string]string{
		"email":    email,
		"password": password,
		"name":     name,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Login authenticates and captures the session cookie.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var out AuthResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout revokes the session server-side and locally.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

// Me returns the identity carried by the session cookie.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var out struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// ListOptions filter and paginate a listing. Zero values are omitted.
type ListOptions struct {
	Page         int
	Limit        int
	SortBy       string
	SortOrder    string
	Priority     string
	IsDone       string
	Search       string
	DeadlineFrom string
	DeadlineTo   string
}

func (o ListOptions) encode() string {
	q := url.Values{}
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	for key, value := range map[string]string{
		"sortBy":       o.SortBy,
		"sortOrder":    o.SortOrder,
		"priority":     o.Priority,
		"isDone":       o.IsDone,
		"search":       o.Search,
		"deadlineFrom": o.DeadlineFrom,
		"deadlineTo":   o.DeadlineTo,
	} {
		if value != "" {
			q.Set(key, value)
		}
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// ListTodos fetches one page of todos.
func (c *Client) ListTodos(ctx context.Context, opts ListOptions) (*ListResult, error) {
	var out ListResult
	if err := c.do(ctx, http.MethodGet, "/api/todos"+opts.encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateTodoInput is the create payload.
type CreateTodoInput struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Priority    string  `json:"priority,omitempty"`
	Deadline    *string `json:"deadline,omitempty"`
}

// CreateTodo persists a new todo.
func (c *Client) CreateTodo(ctx context.Context, in CreateTodoInput) (*Todo, error) {
	var out Todo
	if err := c.do(ctx, http.MethodPost, "/api/todos", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTodo fetches one todo by id.
func (c *Client) GetTodo(ctx context.Context, id string) (*Todo, error) {
	var out Todo
	if err := c.do(ctx, http.MethodGet, "/api/todos/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateTodo applies a partial patch. Keys absent from the map are
// left unchanged server-side; a nil value clears a nullable field.
func (c *Client) UpdateTodo(ctx context.Context, id string, patch map[string]any) (*Todo, error) {
	var out Todo
	if err := c.do(ctx, http.MethodPut, "/api/todos/"+url.PathEscape(id), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteTodo removes one todo.
func (c *Client) DeleteTodo(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/todos/"+url.PathEscape(id), nil, nil)
}

// Bulk applies one action (markComplete, markIncomplete, delete) to a
// list of todo ids.
func (c *Client) Bulk(ctx context.Context, action string, todoIDs []string) (*BulkResult, error) {
	var out BulkResult
	err := c.do(ctx, http.MethodPost, "/api/todos/bulk", map[string]any{
		"action":  action,
		"todoIds": todoIDs,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// TodoStats fetches aggregates for the period (all, week, month).
func (c *Client) TodoStats(ctx context.Context, period string) (*Stats, error) {
	path := "/api/todos/stats"
	if period != "" {
		path += "?period=" + url.QueryEscape(period)
	}
	var out Stats
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
