package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/orenccl/next-todolist/internal/domain"
	"github.com/orenccl/next-todolist/internal/repository"
	"github.com/orenccl/next-todolist/internal/seed"
	"github.com/orenccl/next-todolist/pkg/config"
	"github.com/orenccl/next-todolist/pkg/crypto"
)

// Exported errors mapped to HTTP statuses at the boundary.
var (
	ErrMissingFields      = errors.New("Email, password and name are required")
	ErrMissingCredentials = errors.New("Email and password are required")
	ErrEmailTaken         = errors.New("User already exists")
	ErrInvalidCredentials = errors.New("Invalid credentials")
)

// dummyHash is compared against when the email is unknown so both
// failure paths cost one bcrypt verification.
var dummyHash = []byte("$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW")

// Service handles registration and credential checks.
type Service struct {
	users  repository.UserRepository
	todos  repository.TodoRepository
	seeds  seed.Provider
	logger *slog.Logger
	cfg    config.APIConfig
}

// New constructs a Service.
func New(users repository.UserRepository, todos repository.TodoRepository, seeds seed.Provider, logger *slog.Logger, cfg config.APIConfig) Service {
	if seeds == nil {
		seeds = seed.None{}
	}
	return Service{users: users, todos: todos, seeds: seeds, logger: logger, cfg: cfg}
}

// Register creates an account and best-effort writes the demo todos.
// The returned count is how many seed todos were written; a seeding
// failure never fails the registration.
func (s Service) Register(ctx context.Context, email, password, name string) (*domain.User, int, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if email == "" || password == "" || name == "" {
		return nil, 0, ErrMissingFields
	}
	hash, err := crypto.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return nil, 0, err
	}
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, 0, ErrEmailTaken
		}
		return nil, 0, err
	}
	seeded := s.seedInitialTodos(ctx, user.ID)
	s.logger.Info("user registered", "user_id", user.ID, "seeded_todos", seeded)
	return user, seeded, nil
}

// Login verifies credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (s Service) Login(ctx context.Context, email, password string) (*domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = crypto.ComparePassword(dummyHash, password)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := crypto.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	return user, nil
}

func (s Service) seedInitialTodos(ctx context.Context, userID string) int {
	entries := s.seeds.InitialTodos()
	if len(entries) == 0 || !s.cfg.SeedInitialTodos {
		return 0
	}
	now := time.Now().UTC()
	todos := make([]domain.Todo, 0, len(entries))
	for _, entry := range entries {
		deadline := entry.Deadline
		todos = append(todos, domain.Todo{
			ID:        uuid.NewString(),
			Title:     entry.Title,
			Priority:  entry.Priority,
			Deadline:  &deadline,
			IsDone:    entry.IsDone,
			CreatedAt: now,
			UpdatedAt: now,
			UserID:    userID,
		})
	}
	count, err := s.todos.CreateTodos(ctx, todos)
	if err != nil {
		s.logger.Warn("initial todo seeding failed", "user_id", userID, "error", err)
		return 0
	}
	return count
}
