package repository

import (
	"context"
	"time"

	"github.com/orenccl/next-todolist/internal/domain"
)

// TodoFilter narrows todo queries. Nil/zero fields are ignored.
type TodoFilter struct {
	Priority     *domain.Priority
	IsDone       *bool
	Search       string
	DeadlineFrom *time.Time
	DeadlineTo   *time.Time
}

// TodoSort orders a listing. An empty Field means no explicit order.
type TodoSort struct {
	Field string
	Desc  bool
}

// TodoPage bounds a listing.
type TodoPage struct {
	Offset int
	Limit  int
}

// StatsFilter scopes aggregate queries to a creation window.
type StatsFilter struct {
	CreatedAfter *time.Time
}

// UserRepository persists users.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// TodoRepository persists todos. Every method that touches existing
// rows takes the owner id and filters on it server-side.
type TodoRepository interface {
	CreateTodo(ctx context.Context, todo *domain.Todo) error
	CreateTodos(ctx context.Context, todos []domain.Todo) (int, error)
	GetTodo(ctx context.Context, id, ownerID string) (*domain.Todo, error)
	ListTodos(ctx context.Context, ownerID string, filter TodoFilter, sort TodoSort, page TodoPage) ([]domain.Todo, error)
	CountTodos(ctx context.Context, ownerID string, filter TodoFilter) (int, error)
	UpdateTodo(ctx context.Context, todo *domain.Todo) error
	DeleteTodo(ctx context.Context, id, ownerID string) error
	BulkSetDone(ctx context.Context, ownerID string, ids []string, done bool) (int, error)
	BulkDelete(ctx context.Context, ownerID string, ids []string) (int, error)
}

// TodoStatsRepository exposes the aggregates behind the stats endpoint.
type TodoStatsRepository interface {
	CountAll(ctx context.Context, ownerID string, filter StatsFilter) (int, error)
	CountByDone(ctx context.Context, ownerID string, filter StatsFilter, done bool) (int, error)
	CountOverdue(ctx context.Context, ownerID string, filter StatsFilter, now time.Time) (int, error)
	CountByPriority(ctx context.Context, ownerID string, filter StatsFilter) (map[domain.Priority]int, error)
	ListRecent(ctx context.Context, ownerID string, filter StatsFilter, limit int) ([]domain.TodoSummary, error)
}
