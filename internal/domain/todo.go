package domain

import "time"

// Priority classifies a todo's urgency.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// ParsePriority validates a raw priority string.
func ParsePriority(raw string) (Priority, bool) {
	switch Priority(raw) {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return Priority(raw), true
	}
	return "", false
}

// Todo is a single task owned by exactly one user. Description and
// Deadline are nullable.
type Todo struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Priority    Priority   `json:"priority"`
	Deadline    *time.Time `json:"deadline"`
	IsDone      bool       `json:"isDone"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	UserID      string     `json:"userId"`
}

// TodoSummary is the trimmed projection returned inside stats payloads.
type TodoSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Priority  Priority  `json:"priority"`
	IsDone    bool      `json:"isDone"`
	CreatedAt time.Time `json:"createdAt"`
}
