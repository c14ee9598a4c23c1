// Package seed supplies the demo todos written for newly registered
// users. The data lives behind a Provider so tests can swap or disable
// it.
package seed

import (
	"time"

	"github.com/orenccl/next-todolist/internal/domain"
)

// Todo is one seed entry, owner-agnostic until materialized.
type Todo struct {
	Title    string
	Priority domain.Priority
	Deadline time.Time
	IsDone   bool
}

// Provider yields the initial todos for a fresh account.
type Provider interface {
	InitialTodos() []Todo
}

// Static serves a fixed list.
type Static []Todo

// InitialTodos returns a copy of the list.
func (s Static) InitialTodos() []Todo {
	return append([]Todo(nil), s...)
}

// None disables seeding.
type None struct{}

// InitialTodos returns nothing.
func (None) InitialTodos() []Todo { return nil }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Default is the stock demo list.
func Default() Provider {
	return Static{
		{Title: "Buy groceries", Priority: domain.PriorityHigh, Deadline: day(2024, time.May, 5), IsDone: true},
		{Title: "Finish report", Priority: domain.PriorityMedium, Deadline: day(2024, time.May, 10)},
		{Title: "Call mom", Priority: domain.PriorityLow, Deadline: day(2024, time.May, 7)},
		{Title: "Complete project proposal", Priority: domain.PriorityHigh, Deadline: day(2024, time.May, 15)},
		{Title: "Pay bills", Priority: domain.PriorityHigh, Deadline: day(2024, time.May, 8), IsDone: true},
		{Title: "Study for exam", Priority: domain.PriorityHigh, Deadline: day(2024, time.May, 20)},
		{Title: "Schedule dentist appointment", Priority: domain.PriorityMedium, Deadline: day(2024, time.May, 10)},
		{Title: "Exercise", Priority: domain.PriorityMedium, Deadline: day(2024, time.May, 12)},
		{Title: "Read book", Priority: domain.PriorityMedium, Deadline: day(2024, time.May, 18)},
		{Title: "Write blog post", Priority: domain.PriorityMedium, Deadline: day(2024, time.May, 14), IsDone: true},
		{Title: "Prepare presentation", Priority: domain.PriorityMedium, Deadline: day(2024, time.May, 17)},
		{Title: "Call friend", Priority: domain.PriorityLow, Deadline: day(2024, time.May, 9)},
		{Title: "Clean house", Priority: domain.PriorityLow, Deadline: day(2024, time.May, 11), IsDone: true},
		{Title: "Go for a walk", Priority: domain.PriorityLow, Deadline: day(2024, time.May, 16)},
		{Title: "Watch movie", Priority: domain.PriorityLow, Deadline: day(2024, time.May, 13)},
		{Title: "Cook dinner", Priority: domain.PriorityLow, Deadline: day(2024, time.May, 19)},
		{Title: "Water plants", Priority: domain.PriorityLow, Deadline: day(2024, time.May, 7)},
		{Title: "Check emails", Priority: domain.PriorityLow, Deadline: day(2024, time.May, 6)},
		{Title: "Organize files", Priority: domain.PriorityLow, Deadline: day(2024, time.May, 21), IsDone: true},
		{Title: "Plan weekend activities", Priority: domain.PriorityLow, Deadline: day(2024, time.May, 22), IsDone: true},
	}
}
