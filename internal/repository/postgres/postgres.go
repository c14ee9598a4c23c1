package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orenccl/next-todolist/internal/domain"
	"github.com/orenccl/next-todolist/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.UserRepository      = (*Repository)(nil)
	_ repository.TodoRepository      = (*Repository)(nil)
	_ repository.TodoStatsRepository = (*Repository)(nil)
)

const uniqueViolation = "23505"

// CreateUser inserts a user. A duplicate email yields ErrConflict.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	const query = `INSERT INTO users (id, email, password_hash, name, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, query, user.ID, user.Email, user.PasswordHash, user.Name, user.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return repository.ErrConflict
	}
	return err
}

// GetUserByEmail fetches a user by email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT id, email, password_hash, name, created_at FROM users WHERE email = $1`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT id, email, password_hash, name, created_at FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

const todoColumns = `id, title, description, priority, deadline, is_done, created_at, updated_at, user_id`

// CreateTodo inserts a todo.
func (r *Repository) CreateTodo(ctx context.Context, todo *domain.Todo) error {
	const query = `INSERT INTO todos (id, title, description, priority, deadline, is_done, created_at, updated_at, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.pool.Exec(ctx, query,
		todo.ID, todo.Title, todo.Description, todo.Priority, todo.Deadline,
		todo.IsDone, todo.CreatedAt, todo.UpdatedAt, todo.UserID)
	return err
}

// CreateTodos inserts a batch of todos in a single transaction and
// returns how many rows were written.
func (r *Repository) CreateTodos(ctx context.Context, todos []domain.Todo) (int, error) {
	if len(todos) == 0 {
		return 0, nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	const query = `INSERT INTO todos (id, title, description, priority, deadline, is_done, created_at, updated_at, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	for i := range todos {
		t := &todos[i]
		if _, err := tx.Exec(ctx, query,
			t.ID, t.Title, t.Description, t.Priority, t.Deadline,
			t.IsDone, t.CreatedAt, t.UpdatedAt, t.UserID); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(todos), nil
}

// GetTodo fetches a todo by id scoped to its owner. A todo owned by a
// different user is indistinguishable from a missing one.
func (r *Repository) GetTodo(ctx context.Context, id, ownerID string) (*domain.Todo, error) {
	query := `SELECT ` + todoColumns + ` FROM todos WHERE id = $1 AND user_id = $2`
	row := r.pool.QueryRow(ctx, query, id, ownerID)
	var t domain.Todo
	if err := scanTodo(row, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func scanTodo(row pgx.Row, t *domain.Todo) error {
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Priority, &t.Deadline,
		&t.IsDone, &t.CreatedAt, &t.UpdatedAt, &t.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	return err
}

// todoWhere renders the owner clause plus any active filters as SQL,
// returning the clause and its positional arguments.
func todoWhere(ownerID string, filter repository.TodoFilter) (string, []any) {
	conds := []string{"user_id = $1"}
	args := []any{ownerID}

	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Priority != nil {
		add("priority = $%d", *filter.Priority)
	}
	if filter.IsDone != nil {
		add("is_done = $%d", *filter.IsDone)
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", n, n))
	}
	if filter.DeadlineFrom != nil {
		add("deadline >= $%d", *filter.DeadlineFrom)
	}
	if filter.DeadlineTo != nil {
		add("deadline <= $%d", *filter.DeadlineTo)
	}
	return strings.Join(conds, " AND "), args
}

// sortColumns maps API sort fields to ORDER BY expressions. Anything
// else is silently ignored, leaving the result unordered. Priority
// sorts by urgency rank, not alphabetically.
var sortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"title":     "title",
	"priority":  "CASE priority WHEN 'LOW' THEN 1 WHEN 'MEDIUM' THEN 2 WHEN 'HIGH' THEN 3 END",
	"deadline":  "deadline",
	"isDone":    "is_done",
}

func orderClause(sort repository.TodoSort) string {
	expr, ok := sortColumns[sort.Field]
	if !ok {
		return ""
	}
	dir := " ASC"
	if sort.Desc {
		dir = " DESC"
	}
	return " ORDER BY " + expr + dir
}

// ListTodos returns one page of todos for the owner.
func (r *Repository) ListTodos(ctx context.Context, ownerID string, filter repository.TodoFilter, sort repository.TodoSort, page repository.TodoPage) ([]domain.Todo, error) {
	where, args := todoWhere(ownerID, filter)
	query := `SELECT ` + todoColumns + ` FROM todos WHERE ` + where
	query += orderClause(sort)
	args = append(args, page.Limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	args = append(args, page.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	todos := make([]domain.Todo, 0)
	for rows.Next() {
		var t domain.Todo
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Priority, &t.Deadline,
			&t.IsDone, &t.CreatedAt, &t.UpdatedAt, &t.UserID); err != nil {
			return nil, err
		}
		todos = append(todos, t)
	}
	return todos, rows.Err()
}

// CountTodos counts todos matching the filter for the owner.
func (r *Repository) CountTodos(ctx context.Context, ownerID string, filter repository.TodoFilter) (int, error) {
	where, args := todoWhere(ownerID, filter)
	query := `SELECT COUNT(1) FROM todos WHERE ` + where
	var count int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// UpdateTodo rewrites every mutable column and bumps updated_at. The
// row is matched on id and owner; no match yields ErrNotFound.
func (r *Repository) UpdateTodo(ctx context.Context, todo *domain.Todo) error {
	const query = `UPDATE todos
		SET title = $1, description = $2, priority = $3, deadline = $4, is_done = $5, updated_at = now()
		WHERE id = $6 AND user_id = $7
		RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		todo.Title, todo.Description, todo.Priority, todo.Deadline, todo.IsDone,
		todo.ID, todo.UserID).Scan(&todo.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	return err
}

// DeleteTodo removes a todo owned by the given user.
func (r *Repository) DeleteTodo(ctx context.Context, id, ownerID string) error {
	const query = `DELETE FROM todos WHERE id = $1 AND user_id = $2`
	tag, err := r.pool.Exec(ctx, query, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// BulkSetDone flips is_done on every listed todo inside one
// transaction. If any id does not resolve to a todo owned by ownerID
// the transaction is rolled back and ErrOwnership returned.
func (r *Repository) BulkSetDone(ctx context.Context, ownerID string, ids []string, done bool) (int, error) {
	return r.bulkMutate(ctx, ownerID, ids, func(tx pgx.Tx) (pgconn.CommandTag, error) {
		const query = `UPDATE todos SET is_done = $1, updated_at = now()
			WHERE id = ANY($2) AND user_id = $3`
		return tx.Exec(ctx, query, done, ids, ownerID)
	})
}

// BulkDelete removes every listed todo under the same all-or-nothing
// ownership check as BulkSetDone.
func (r *Repository) BulkDelete(ctx context.Context, ownerID string, ids []string) (int, error) {
	return r.bulkMutate(ctx, ownerID, ids, func(tx pgx.Tx) (pgconn.CommandTag, error) {
		const query = `DELETE FROM todos WHERE id = ANY($1) AND user_id = $2`
		return tx.Exec(ctx, query, ids, ownerID)
	})
}

func (r *Repository) bulkMutate(ctx context.Context, ownerID string, ids []string, mutate func(pgx.Tx) (pgconn.CommandTag, error)) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	const membership = `SELECT COUNT(1) FROM todos WHERE id = ANY($1) AND user_id = $2`
	var owned int
	if err := tx.QueryRow(ctx, membership, ids, ownerID).Scan(&owned); err != nil {
		return 0, err
	}
	if owned != len(ids) {
		return 0, repository.ErrOwnership
	}

	tag, err := mutate(tx)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func statsWhere(ownerID string, filter repository.StatsFilter) (string, []any) {
	conds := []string{"user_id = $1"}
	args := []any{ownerID}
	if filter.CreatedAfter != nil {
		args = append(args, *filter.CreatedAfter)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	return strings.Join(conds, " AND "), args
}

// CountAll counts every todo in the stats window.
func (r *Repository) CountAll(ctx context.Context, ownerID string, filter repository.StatsFilter) (int, error) {
	where, args := statsWhere(ownerID, filter)
	return r.countWhere(ctx, where, args)
}

// CountByDone counts todos in the window with the given completion state.
func (r *Repository) CountByDone(ctx context.Context, ownerID string, filter repository.StatsFilter, done bool) (int, error) {
	where, args := statsWhere(ownerID, filter)
	args = append(args, done)
	where += fmt.Sprintf(" AND is_done = $%d", len(args))
	return r.countWhere(ctx, where, args)
}

// CountOverdue counts incomplete todos whose deadline has passed.
func (r *Repository) CountOverdue(ctx context.Context, ownerID string, filter repository.StatsFilter, now time.Time) (int, error) {
	where, args := statsWhere(ownerID, filter)
	args = append(args, now)
	where += fmt.Sprintf(" AND is_done = FALSE AND deadline < $%d", len(args))
	return r.countWhere(ctx, where, args)
}

func (r *Repository) countWhere(ctx context.Context, where string, args []any) (int, error) {
	query := `SELECT COUNT(1) FROM todos WHERE ` + where
	var count int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// CountByPriority groups todos in the window by priority.
func (r *Repository) CountByPriority(ctx context.Context, ownerID string, filter repository.StatsFilter) (map[domain.Priority]int, error) {
	where, args := statsWhere(ownerID, filter)
	query := `SELECT priority, COUNT(1) FROM todos WHERE ` + where + ` GROUP BY priority`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.Priority]int)
	for rows.Next() {
		var priority domain.Priority
		var count int
		if err := rows.Scan(&priority, &count); err != nil {
			return nil, err
		}
		counts[priority] = count
	}
	return counts, rows.Err()
}

// ListRecent returns the newest todos in the window, trimmed to the
// stats projection.
func (r *Repository) ListRecent(ctx context.Context, ownerID string, filter repository.StatsFilter, limit int) ([]domain.TodoSummary, error) {
	where, args := statsWhere(ownerID, filter)
	args = append(args, limit)
	query := fmt.Sprintf(`SELECT id, title, priority, is_done, created_at FROM todos
		WHERE %s ORDER BY created_at DESC LIMIT $%d`, where, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recent := make([]domain.TodoSummary, 0, limit)
	for rows.Next() {
		var t domain.TodoSummary
		if err := rows.Scan(&t.ID, &t.Title, &t.Priority, &t.IsDone, &t.CreatedAt); err != nil {
			return nil, err
		}
		recent = append(recent, t)
	}
	return recent, rows.Err()
}
