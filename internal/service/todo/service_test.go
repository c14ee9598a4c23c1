package todo

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/orenccl/next-todolist/internal/domain"
	"github.com/orenccl/next-todolist/internal/repository"
)

type fakeTodoRepository struct {
	todos map[string]domain.Todo

	lastFilter repository.TodoFilter
	lastSort   repository.TodoSort
	lastPage   repository.TodoPage

	updateErr error
}

func newFakeTodoRepository(todos ...domain.Todo) *fakeTodoRepository {
	repo := &fakeTodoRepository{todos: make(map[string]domain.Todo)}
	for _, todo := range todos {
		repo.todos[todo.ID] = todo
	}
	return repo
}

func (f *fakeTodoRepository) CreateTodo(ctx context.Context, todo *domain.Todo) error {
	f.todos[todo.ID] = *todo
	return nil
}

func (f *fakeTodoRepository) CreateTodos(ctx context.Context, todos []domain.Todo) (int, error) {
	for _, todo := range todos {
		f.todos[todo.ID] = todo
	}
	return len(todos), nil
}

func (f *fakeTodoRepository) GetTodo(ctx context.Context, id, ownerID string) (*domain.Todo, error) {
	todo, ok := f.todos[id]
	if !ok || todo.UserID != ownerID {
		return nil, repository.ErrNotFound
	}
	return &todo, nil
}

func (f *fakeTodoRepository) ListTodos(ctx context.Context, ownerID string, filter repository.TodoFilter, sort repository.TodoSort, page repository.TodoPage) ([]domain.Todo, error) {
	f.lastFilter = filter
	f.lastSort = sort
	f.lastPage = page
	var out []domain.Todo
	for _, todo := range f.todos {
		if todo.UserID == ownerID {
			out = append(out, todo)
		}
	}
	return out, nil
}

func (f *fakeTodoRepository) CountTodos(ctx context.Context, ownerID string, filter repository.TodoFilter) (int, error) {
	count := 0
	for _, todo := range f.todos {
		if todo.UserID == ownerID {
			count++
		}
	}
	return count, nil
}

func (f *fakeTodoRepository) UpdateTodo(ctx context.Context, todo *domain.Todo) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	existing, ok := f.todos[todo.ID]
	if !ok || existing.UserID != todo.UserID {
		return repository.ErrNotFound
	}
	f.todos[todo.ID] = *todo
	return nil
}

func (f *fakeTodoRepository) DeleteTodo(ctx context.Context, id, ownerID string) error {
	todo, ok := f.todos[id]
	if !ok || todo.UserID != ownerID {
		return repository.ErrNotFound
	}
	delete(f.todos, id)
	return nil
}

func (f *fakeTodoRepository) membership(ownerID string, ids []string) bool {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		todo, ok := f.todos[id]
		if !ok || todo.UserID != ownerID || seen[id] {
			return false
		}
		seen[id] = true
	}
	return true
}

func (f *fakeTodoRepository) BulkSetDone(ctx context.Context, ownerID string, ids []string, done bool) (int, error) {
	if !f.membership(ownerID, ids) {
		return 0, repository.ErrOwnership
	}
	for _, id := range ids {
		todo := f.todos[id]
		todo.IsDone = done
		f.todos[id] = todo
	}
	return len(ids), nil
}

func (f *fakeTodoRepository) BulkDelete(ctx context.Context, ownerID string, ids []string) (int, error) {
	if !f.membership(ownerID, ids) {
		return 0, repository.ErrOwnership
	}
	for _, id := range ids {
		delete(f.todos, id)
	}
	return len(ids), nil
}

type stubStatsRepository struct {
	total      int
	completed  int
	pending    int
	overdue    int
	byPriority map[domain.Priority]int
	recent     []domain.TodoSummary

	lastFilter repository.StatsFilter
}

func (s *stubStatsRepository) CountAll(ctx context.Context, ownerID string, filter repository.StatsFilter) (int, error) {
	s.lastFilter = filter
	return s.total, nil
}

func (s *stubStatsRepository) CountByDone(ctx context.Context, ownerID string, filter repository.StatsFilter, done bool) (int, error) {
	if done {
		return s.completed, nil
	}
	return s.pending, nil
}

func (s *stubStatsRepository) CountOverdue(ctx context.Context, ownerID string, filter repository.StatsFilter, now time.Time) (int, error) {
	return s.overdue, nil
}

func (s *stubStatsRepository) CountByPriority(ctx context.Context, ownerID string, filter repository.StatsFilter) (map[domain.Priority]int, error) {
	return s.byPriority, nil
}

func (s *stubStatsRepository) ListRecent(ctx context.Context, ownerID string, filter repository.StatsFilter, limit int) ([]domain.TodoSummary, error) {
	if limit < len(s.recent) {
		return s.recent[:limit], nil
	}
	return s.recent, nil
}

func testService(repo *fakeTodoRepository, stats *stubStatsRepository) Service {
	if stats == nil {
		stats = &stubStatsRepository{}
	}
	svc := New(repo, stats, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = func() time.Time { return time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func strptr(s string) *string { return &s }

func ownedTodo(id, ownerID, title string) domain.Todo {
	now := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)
	return domain.Todo{
		ID:        id,
		Title:     title,
		Priority:  domain.PriorityMedium,
		CreatedAt: now,
		UpdatedAt: now,
		UserID:    ownerID,
	}
}

func TestCreateValidatesTitle(t *testing.T) {
	svc := testService(newFakeTodoRepository(), nil)

	if _, err := svc.Create(context.Background(), "user-1", CreateInput{Title: "   "}); !errors.Is(err, errTitleRequired) {
		t.Fatalf("expected errTitleRequired, got %v", err)
	}
}

func TestCreateDefaultsAndNormalizes(t *testing.T) {
	repo := newFakeTodoRepository()
	svc := testService(repo, nil)

	todo, err := svc.Create(context.Background(), "user-1", CreateInput{
		Title:       "  Buy milk  ",
		Description: strptr("   "),
		Deadline:    strptr(""),
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if todo.Title != "Buy milk" {
		t.Fatalf("expected trimmed title, got %q", todo.Title)
	}
	if todo.Description != nil {
		t.Fatalf("blank description should be stored as null, got %q", *todo.Description)
	}
	if todo.Priority != domain.PriorityMedium {
		t.Fatalf("expected default MEDIUM priority, got %s", todo.Priority)
	}
	if todo.Deadline != nil {
		t.Fatalf("blank deadline should be absent, got %v", todo.Deadline)
	}
	if todo.UserID != "user-1" {
		t.Fatalf("todo not scoped to owner: %+v", todo)
	}
	if _, ok := repo.todos[todo.ID]; !ok {
		t.Fatalf("todo was not persisted")
	}
}

func TestCreateRejectsBadPriorityAndDeadline(t *testing.T) {
	svc := testService(newFakeTodoRepository(), nil)

	if _, err := svc.Create(context.Background(), "user-1", CreateInput{Title: "x", Priority: "URGENT"}); !errors.Is(err, errInvalidPriority) {
		t.Fatalf("expected errInvalidPriority, got %v", err)
	}
	if _, err := svc.Create(context.Background(), "user-1", CreateInput{Title: "x", Deadline: strptr("tomorrow")}); !errors.Is(err, errInvalidDeadline) {
		t.Fatalf("expected errInvalidDeadline, got %v", err)
	}
}

func TestCreateAcceptsDateOnlyDeadline(t *testing.T) {
	svc := testService(newFakeTodoRepository(), nil)

	todo, err := svc.Create(context.Background(), "user-1", CreateInput{Title: "x", Deadline: strptr("2024-07-01")})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	want := time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC)
	if todo.Deadline == nil || !todo.Deadline.Equal(want) {
		t.Fatalf("expected deadline %v, got %v", want, todo.Deadline)
	}
}

func TestUpdatePartialPatchLeavesOtherFields(t *testing.T) {
	existing := ownedTodo("todo-1", "user-1", "Original")
	existing.Description = strptr("keep me")
	existing.Priority = domain.PriorityHigh
	repo := newFakeTodoRepository(existing)
	svc := testService(repo, nil)

	updated, err := svc.Update(context.Background(), "user-1", "todo-1", UpdateInput{
		Title:    strptr("  Renamed  "),
		TitleSet: true,
	})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated.Title != "Renamed" {
		t.Fatalf("expected renamed title, got %q", updated.Title)
	}
	if updated.Description == nil || *updated.Description != "keep me" {
		t.Fatalf("description should be untouched, got %v", updated.Description)
	}
	if updated.Priority != domain.PriorityHigh {
		t.Fatalf("priority should be untouched, got %s", updated.Priority)
	}
}

func TestUpdateClearsDeadlineOnExplicitNull(t *testing.T) {
	deadline := time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC)
	existing := ownedTodo("todo-1", "user-1", "Has deadline")
	existing.Deadline = &deadline
	repo := newFakeTodoRepository(existing)
	svc := testService(repo, nil)

	updated, err := svc.Update(context.Background(), "user-1", "todo-1", UpdateInput{DeadlineSet: true})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated.Deadline != nil {
		t.Fatalf("deadline should be cleared, got %v", updated.Deadline)
	}
}

func TestUpdateBumpsUpdatedAt(t *testing.T) {
	existing := ownedTodo("todo-1", "user-1", "Original")
	repo := newFakeTodoRepository(existing)
	svc := testService(repo, nil)

	done := true
	updated, err := svc.Update(context.Background(), "user-1", "todo-1", UpdateInput{IsDone: &done})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if !updated.UpdatedAt.Equal(svc.now()) {
		t.Fatalf("updatedAt not bumped to the mutation time: %v", updated.UpdatedAt)
	}
	if !updated.UpdatedAt.After(existing.UpdatedAt) {
		t.Fatalf("updatedAt %v not after the original %v", updated.UpdatedAt, existing.UpdatedAt)
	}
}

func TestUpdateRejectsEmptyTitle(t *testing.T) {
	repo := newFakeTodoRepository(ownedTodo("todo-1", "user-1", "Original"))
	svc := testService(repo, nil)

	if _, err := svc.Update(context.Background(), "user-1", "todo-1", UpdateInput{Title: strptr("  "), TitleSet: true}); !errors.Is(err, errTitleEmpty) {
		t.Fatalf("expected errTitleEmpty, got %v", err)
	}
}

func TestUpdateForeignTodoIsNotFound(t *testing.T) {
	repo := newFakeTodoRepository(ownedTodo("todo-1", "user-1", "Mine"))
	svc := testService(repo, nil)

	// Existence wins over validation for a foreign row.
	_, err := svc.Update(context.Background(), "user-2", "todo-1", UpdateInput{Title: strptr(""), TitleSet: true})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign todo, got %v", err)
	}
}

func TestListPaginationMetadata(t *testing.T) {
	todos := make([]domain.Todo, 0, 25)
	for i := 0; i < 25; i++ {
		todos = append(todos, ownedTodo("todo-"+strings.Repeat("x", i+1), "user-1", "t"))
	}
	repo := newFakeTodoRepository(todos...)
	svc := testService(repo, nil)

	_, page, err := svc.List(context.Background(), "user-1", ListInput{Page: 2, Limit: 10})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if page.Total != 25 || page.TotalPages != 3 {
		t.Fatalf("unexpected totals: %+v", page)
	}
	if !page.HasNextPage || !page.HasPrevPage {
		t.Fatalf("page 2 of 3 should have both neighbors: %+v", page)
	}
	if repo.lastPage.Offset != 10 || repo.lastPage.Limit != 10 {
		t.Fatalf("unexpected page bounds: %+v", repo.lastPage)
	}
}

func TestListNormalizesPageAndLimit(t *testing.T) {
	repo := newFakeTodoRepository()
	svc := testService(repo, nil)

	_, page, err := svc.List(context.Background(), "user-1", ListInput{Page: -3, Limit: 0})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if page.Page != 1 || page.Limit != 10 {
		t.Fatalf("expected defaults page=1 limit=10, got %+v", page)
	}
	if page.HasNextPage || page.HasPrevPage {
		t.Fatalf("empty listing should have no neighbors: %+v", page)
	}
}

func TestListIgnoresInvalidFilterValues(t *testing.T) {
	repo := newFakeTodoRepository()
	svc := testService(repo, nil)

	_, _, err := svc.List(context.Background(), "user-1", ListInput{Priority: "URGENT", IsDone: "maybe", SortBy: "secret"})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if repo.lastFilter.Priority != nil || repo.lastFilter.IsDone != nil {
		t.Fatalf("invalid filter values should be dropped: %+v", repo.lastFilter)
	}
	if repo.lastSort.Field != "" {
		t.Fatalf("unknown sort field should be dropped: %+v", repo.lastSort)
	}
}

func TestListRejectsBadDeadlineFilter(t *testing.T) {
	svc := testService(newFakeTodoRepository(), nil)

	if _, _, err := svc.List(context.Background(), "user-1", ListInput{DeadlineFrom: "soon"}); !errors.Is(err, errInvalidDeadline) {
		t.Fatalf("expected errInvalidDeadline, got %v", err)
	}
}

func TestBulkApplyAllOrNothing(t *testing.T) {
	repo := newFakeTodoRepository(
		ownedTodo("todo-1", "user-1", "a"),
		ownedTodo("todo-2", "user-1", "b"),
		ownedTodo("todo-3", "user-2", "foreign"),
	)
	svc := testService(repo, nil)

	if _, err := svc.BulkApply(context.Background(), "user-1", ActionMarkComplete, []string{"todo-1", "todo-3"}); !errors.Is(err, errBulkOwnership) {
		t.Fatalf("expected errBulkOwnership, got %v", err)
	}
	if repo.todos["todo-1"].IsDone {
		t.Fatalf("partial bulk must not mutate anything")
	}

	affected, err := svc.BulkApply(context.Background(), "user-1", ActionMarkComplete, []string{"todo-1", "todo-2"})
	if err != nil {
		t.Fatalf("BulkApply returned error: %v", err)
	}
	if affected != 2 {
		t.Fatalf("expected 2 affected, got %d", affected)
	}
	if !repo.todos["todo-1"].IsDone || !repo.todos["todo-2"].IsDone {
		t.Fatalf("bulk markComplete did not apply")
	}
}

func TestBulkApplyDelete(t *testing.T) {
	repo := newFakeTodoRepository(
		ownedTodo("todo-1", "user-1", "a"),
		ownedTodo("todo-2", "user-1", "b"),
	)
	svc := testService(repo, nil)

	affected, err := svc.BulkApply(context.Background(), "user-1", ActionDelete, []string{"todo-1", "todo-2"})
	if err != nil {
		t.Fatalf("BulkApply returned error: %v", err)
	}
	if affected != 2 || len(repo.todos) != 0 {
		t.Fatalf("expected both rows deleted, affected=%d remaining=%d", affected, len(repo.todos))
	}
}

func TestBulkApplyValidation(t *testing.T) {
	svc := testService(newFakeTodoRepository(), nil)

	if _, err := svc.BulkApply(context.Background(), "user-1", "", []string{"todo-1"}); !errors.Is(err, errBulkRequired) {
		t.Fatalf("missing action: expected errBulkRequired, got %v", err)
	}
	if _, err := svc.BulkApply(context.Background(), "user-1", ActionDelete, nil); !errors.Is(err, errBulkRequired) {
		t.Fatalf("missing ids: expected errBulkRequired, got %v", err)
	}
	if _, err := svc.BulkApply(context.Background(), "user-1", "archive", []string{"todo-1"}); !errors.Is(err, errBulkAction) {
		t.Fatalf("unknown action: expected errBulkAction, got %v", err)
	}
}

func TestReportComputesCompletionRate(t *testing.T) {
	stats := &stubStatsRepository{
		total:      3,
		completed:  2,
		pending:    1,
		overdue:    1,
		byPriority: map[domain.Priority]int{domain.PriorityLow: 1, domain.PriorityHigh: 2},
		recent: []domain.TodoSummary{
			{ID: "todo-1", Title: "a"},
		},
	}
	svc := testService(newFakeTodoRepository(), stats)

	report, err := svc.Report(context.Background(), "user-1", "all")
	if err != nil {
		t.Fatalf("Report returned error: %v", err)
	}
	if report.Period != "all" {
		t.Fatalf("unexpected period %q", report.Period)
	}
	if report.CompletionRate != 66.67 {
		t.Fatalf("expected completion rate 66.67, got %v", report.CompletionRate)
	}
	if report.PriorityBreakdown.Low != 1 || report.PriorityBreakdown.Medium != 0 || report.PriorityBreakdown.High != 2 {
		t.Fatalf("unexpected breakdown: %+v", report.PriorityBreakdown)
	}
	if len(report.RecentTodos) != 1 {
		t.Fatalf("unexpected recent todos: %+v", report.RecentTodos)
	}
}

func TestReportPeriodWindows(t *testing.T) {
	stats := &stubStatsRepository{}
	svc := testService(newFakeTodoRepository(), stats)
	now := svc.now()

	report, err := svc.Report(context.Background(), "user-1", "week")
	if err != nil {
		t.Fatalf("Report returned error: %v", err)
	}
	if report.Period != "week" {
		t.Fatalf("unexpected period %q", report.Period)
	}
	if stats.lastFilter.CreatedAfter == nil || !stats.lastFilter.CreatedAfter.Equal(now.AddDate(0, 0, -7)) {
		t.Fatalf("unexpected week window: %v", stats.lastFilter.CreatedAfter)
	}

	report, err = svc.Report(context.Background(), "user-1", "month")
	if err != nil {
		t.Fatalf("Report returned error: %v", err)
	}
	if stats.lastFilter.CreatedAfter == nil || !stats.lastFilter.CreatedAfter.Equal(now.AddDate(0, -1, 0)) {
		t.Fatalf("unexpected month window: %v", stats.lastFilter.CreatedAfter)
	}

	report, err = svc.Report(context.Background(), "user-1", "quarter")
	if err != nil {
		t.Fatalf("Report returned error: %v", err)
	}
	if report.Period != "all" {
		t.Fatalf("unknown period should fall back to all, got %q", report.Period)
	}
	if stats.lastFilter.CreatedAfter != nil {
		t.Fatalf("all period should not set a window: %v", stats.lastFilter.CreatedAfter)
	}
}

func TestReportEmptyDataset(t *testing.T) {
	svc := testService(newFakeTodoRepository(), &stubStatsRepository{})

	report, err := svc.Report(context.Background(), "user-1", "all")
	if err != nil {
		t.Fatalf("Report returned error: %v", err)
	}
	if report.CompletionRate != 0 {
		t.Fatalf("empty dataset should have rate 0, got %v", report.CompletionRate)
	}
	if report.RecentTodos == nil {
		t.Fatalf("recentTodos must serialize as [], not null")
	}
}
