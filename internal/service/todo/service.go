package todo

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/orenccl/next-todolist/internal/domain"
	"github.com/orenccl/next-todolist/internal/repository"
)

// ValidationError is a user-correctable input problem, surfaced as 400.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

const (
	errTitleRequired   = ValidationError("Title is required")
	errTitleEmpty      = ValidationError("Title cannot be empty")
	errInvalidPriority = ValidationError("Invalid priority. Must be LOW, MEDIUM, or HIGH")
	errInvalidDeadline = ValidationError("Invalid deadline format")
	errBulkRequired    = ValidationError("Action and todoIds are required")
	errBulkAction      = ValidationError("Invalid action. Supported actions: markComplete, markIncomplete, delete")
	errBulkOwnership   = ValidationError("Some todos not found or not accessible")
)

const (
	defaultPage  = 1
	defaultLimit = 10
	recentLimit  = 5
)

// Service owns todo workflows. Every operation is scoped to the
// authenticated owner passed in by the caller.
type Service struct {
	todos  repository.TodoRepository
	stats  repository.TodoStatsRepository
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a Service.
func New(todos repository.TodoRepository, stats repository.TodoStatsRepository, logger *slog.Logger) Service {
	return Service{todos: todos, stats: stats, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// ListInput carries raw query parameters; normalization and defaults
// happen here, not in the HTTP layer.
type ListInput struct {
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

// Page describes one slice of a listing.
type Page struct {
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	Total       int  `json:"total"`
	TotalPages  int  `json:"totalPages"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

// sortFields are the accepted sortBy values. Anything else silently
// falls back to no explicit order.
var sortFields = map[string]bool{
	"createdAt": true,
	"updatedAt": true,
	"title":     true,
	"priority":  true,
	"deadline":  true,
	"isDone":    true,
}

// List returns one page of the owner's todos plus pagination metadata.
// The row fetch and the total count run concurrently.
func (s Service) List(ctx context.Context, ownerID string, in ListInput) ([]domain.Todo, Page, error) {
	page := in.Page
	if page < 1 {
		page = defaultPage
	}
	limit := in.Limit
	if limit < 1 {
		limit = defaultLimit
	}

	filter, err := buildFilter(in)
	if err != nil {
		return nil, Page{}, err
	}

	sort := repository.TodoSort{}
	if sortFields[in.SortBy] {
		sort.Field = in.SortBy
		sort.Desc = in.SortOrder != "asc"
	}

	var (
		todos []domain.Todo
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		todos, err = s.todos.ListTodos(gctx, ownerID, filter, sort, repository.TodoPage{
			Offset: (page - 1) * limit,
			Limit:  limit,
		})
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.todos.CountTodos(gctx, ownerID, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, Page{}, err
	}

	totalPages := (total + limit - 1) / limit
	return todos, Page{
		Page:        page,
		Limit:       limit,
		Total:       total,
		TotalPages:  totalPages,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}, nil
}

func buildFilter(in ListInput) (repository.TodoFilter, error) {
	var filter repository.TodoFilter
	if p, ok := domain.ParsePriority(in.Priority); ok {
		filter.Priority = &p
	}
	switch in.IsDone {
	case "true":
		done := true
		filter.IsDone = &done
	case "false":
		done := false
		filter.IsDone = &done
	}
	filter.Search = strings.TrimSpace(in.Search)
	if in.DeadlineFrom != "" {
		from, err := parseDate(in.DeadlineFrom)
		if err != nil {
			return filter, errInvalidDeadline
		}
		filter.DeadlineFrom = &from
	}
	if in.DeadlineTo != "" {
		to, err := parseDate(in.DeadlineTo)
		if err != nil {
			return filter, errInvalidDeadline
		}
		filter.DeadlineTo = &to
	}
	return filter, nil
}

// CreateInput carries the create payload. Deadline is the raw string
// so format errors surface as validation failures here.
type CreateInput struct {
	Title       string
	Description *string
	Priority    string
	Deadline    *string
}

// Create validates and persists a new todo for the owner.
func (s Service) Create(ctx context.Context, ownerID string, in CreateInput) (*domain.Todo, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, errTitleRequired
	}
	priority := domain.PriorityMedium
	if in.Priority != "" {
		parsed, ok := domain.ParsePriority(in.Priority)
		if !ok {
			return nil, errInvalidPriority
		}
		priority = parsed
	}
	var deadline *time.Time
	if in.Deadline != nil && strings.TrimSpace(*in.Deadline) != "" {
		parsed, err := parseDate(*in.Deadline)
		if err != nil {
			return nil, errInvalidDeadline
		}
		deadline = &parsed
	}
	now := s.now()
	todo := &domain.Todo{
		ID:          uuid.NewString(),
		Title:       title,
		Description: trimDescription(in.Description),
		Priority:    priority,
		Deadline:    deadline,
		CreatedAt:   now,
		UpdatedAt:   now,
		UserID:      ownerID,
	}
	if err := s.todos.CreateTodo(ctx, todo); err != nil {
		return nil, err
	}
	return todo, nil
}

// Get fetches one todo owned by ownerID.
func (s Service) Get(ctx context.Context, ownerID, id string) (*domain.Todo, error) {
	return s.todos.GetTodo(ctx, id, ownerID)
}

// UpdateInput is a partial patch. The Set flags distinguish an absent
// field from an explicit null.
type UpdateInput struct {
	Title          *string
	TitleSet       bool
	Description    *string
	DescriptionSet bool
	Priority       *string
	PrioritySet    bool
	Deadline       *string
	DeadlineSet    bool
	IsDone         *bool
}

// Update applies a partial patch. Only supplied fields change; a
// deadline explicitly set to null is cleared. Existence is checked
// before validation so a foreign id yields 404, not 400.
func (s Service) Update(ctx context.Context, ownerID, id string, in UpdateInput) (*domain.Todo, error) {
	todo, err := s.todos.GetTodo(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	if in.TitleSet {
		if in.Title == nil || strings.TrimSpace(*in.Title) == "" {
			return nil, errTitleEmpty
		}
		todo.Title = strings.TrimSpace(*in.Title)
	}
	if in.DescriptionSet {
		todo.Description = trimDescription(in.Description)
	}
	if in.PrioritySet {
		if in.Priority == nil {
			return nil, errInvalidPriority
		}
		parsed, ok := domain.ParsePriority(*in.Priority)
		if !ok {
			return nil, errInvalidPriority
		}
		todo.Priority = parsed
	}
	if in.DeadlineSet {
		if in.Deadline == nil {
			todo.Deadline = nil
		} else {
			parsed, err := parseDate(*in.Deadline)
			if err != nil {
				return nil, errInvalidDeadline
			}
			todo.Deadline = &parsed
		}
	}
	if in.IsDone != nil {
		todo.IsDone = *in.IsDone
	}
	todo.UpdatedAt = s.now()
	if err := s.todos.UpdateTodo(ctx, todo); err != nil {
		return nil, err
	}
	return todo, nil
}

// Delete hard-deletes one todo owned by ownerID.
func (s Service) Delete(ctx context.Context, ownerID, id string) error {
	return s.todos.DeleteTodo(ctx, id, ownerID)
}

// Bulk actions supported by BulkApply.
const (
	ActionMarkComplete   = "markComplete"
	ActionMarkIncomplete = "markIncomplete"
	ActionDelete         = "delete"
)

// BulkApply runs one action over a list of todo ids. Membership is
// all-or-nothing: if any id is missing or foreign, nothing mutates.
func (s Service) BulkApply(ctx context.Context, ownerID, action string, ids []string) (int, error) {
	if action == "" || len(ids) == 0 {
		return 0, errBulkRequired
	}
	var (
		affected int
		err      error
	)
	switch action {
	case ActionMarkComplete:
		affected, err = s.todos.BulkSetDone(ctx, ownerID, ids, true)
	case ActionMarkIncomplete:
		affected, err = s.todos.BulkSetDone(ctx, ownerID, ids, false)
	case ActionDelete:
		affected, err = s.todos.BulkDelete(ctx, ownerID, ids)
	default:
		return 0, errBulkAction
	}
	if err != nil {
		if errors.Is(err, repository.ErrOwnership) {
			return 0, errBulkOwnership
		}
		return 0, err
	}
	s.logger.Info("bulk action applied", "user_id", ownerID, "action", action, "affected", affected)
	return affected, nil
}

// Stats is the aggregate payload for one period.
type Stats struct {
	Period            string               `json:"period"`
	Total             int                  `json:"total"`
	Completed         int                  `json:"completed"`
	Pending           int                  `json:"pending"`
	Overdue           int                  `json:"overdue"`
	CompletionRate    float64              `json:"completionRate"`
	PriorityBreakdown PriorityBreakdown    `json:"priorityBreakdown"`
	RecentTodos       []domain.TodoSummary `json:"recentTodos"`
}

// PriorityBreakdown counts todos per priority within the period.
type PriorityBreakdown struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

// Report computes stats over the owner's todos for the given period
// (all, week, or month; anything else behaves as all). The sub-queries
// run concurrently; a report may interleave with concurrent writes,
// which is acceptable for advisory numbers.
func (s Service) Report(ctx context.Context, ownerID, period string) (*Stats, error) {
	now := s.now()
	filter := repository.StatsFilter{}
	switch period {
	case "week":
		after := now.AddDate(0, 0, -7)
		filter.CreatedAfter = &after
	case "month":
		after := now.AddDate(0, -1, 0)
		filter.CreatedAfter = &after
	default:
		period = "all"
	}

	stats := Stats{Period: period, RecentTodos: []domain.TodoSummary{}}
	var byPriority map[domain.Priority]int

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.Total, err = s.stats.CountAll(gctx, ownerID, filter)
		return err
	})
	g.Go(func() (err error) {
		stats.Completed, err = s.stats.CountByDone(gctx, ownerID, filter, true)
		return err
	})
	g.Go(func() (err error) {
		stats.Pending, err = s.stats.CountByDone(gctx, ownerID, filter, false)
		return err
	})
	g.Go(func() (err error) {
		stats.Overdue, err = s.stats.CountOverdue(gctx, ownerID, filter, now)
		return err
	})
	g.Go(func() (err error) {
		byPriority, err = s.stats.CountByPriority(gctx, ownerID, filter)
		return err
	})
	g.Go(func() (err error) {
		recent, err := s.stats.ListRecent(gctx, ownerID, filter, recentLimit)
		if recent != nil {
			stats.RecentTodos = recent
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if stats.Total > 0 {
		rate := float64(stats.Completed) / float64(stats.Total) * 100
		stats.CompletionRate = math.Round(rate*100) / 100
	}
	stats.PriorityBreakdown = PriorityBreakdown{
		Low:    byPriority[domain.PriorityLow],
		Medium: byPriority[domain.PriorityMedium],
		High:   byPriority[domain.PriorityHigh],
	}
	return &stats, nil
}

func trimDescription(desc *string) *string {
	if desc == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*desc)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// parseDate accepts RFC3339 timestamps or plain YYYY-MM-DD dates.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
