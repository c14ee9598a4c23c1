package config

import "time"

// APIConfig holds runtime configuration for the API service.
type APIConfig struct {
	Environment        string
	Addr               string
	DatabaseURL        string
	MigrationsDir      string
	SessionSecret      string
	SessionTTL         time.Duration
	BcryptCost         int
	SeedInitialTodos   bool
	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int
}

// IsProduction reports whether the service runs with production
// hardening (Secure session cookies).
func (c APIConfig) IsProduction() bool {
	return c.Environment == "production"
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() APIConfig {
	return APIConfig{
		Environment:        GetString("APP_ENV", "development"),
		Addr:               GetString("API_ADDR", ":4000"),
		DatabaseURL:        GetString("DATABASE_URL", "postgres://todolist:todolist@db:5432/todolist?sslmode=disable"),
		MigrationsDir:      GetString("DB_MIGRATIONS_DIR", "db/migrations"),
		SessionSecret:      GetString("SESSION_SECRET", "supersecuresecret"),
		SessionTTL:         time.Duration(GetInt("SESSION_TTL_HOURS", 24*7)) * time.Hour,
		BcryptCost:         GetInt("BCRYPT_COST", 12),
		SeedInitialTodos:   GetBool("SEED_INITIAL_TODOS", true),
		RateLimitRedisAddr: GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass: GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:   GetInt("RATE_LIMIT_REDIS_DB", 0),
	}
}
