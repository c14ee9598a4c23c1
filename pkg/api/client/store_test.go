package client

import (
	"strings"
	"testing"
	"time"
)

func confirmedPair() []Todo {
	now := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	return []Todo{
		{ID: "todo-1", Title: "First", Priority: "HIGH", CreatedAt: now.Add(time.Hour)},
		{ID: "todo-2", Title: "Second", Priority: "LOW", CreatedAt: now},
	}
}

func findByID(todos []Todo, id string) (Todo, bool) {
	for _, todo := range todos {
		if todo.ID == id {
			return todo, true
		}
	}
	return Todo{}, false
}

func TestStoreCreateConfirmAndRollback(t *testing.T) {
	store := NewStore()
	store.SetConfirmed(confirmedPair(), 2)

	tempID := store.StageCreate(Todo{Title: "Optimistic", Priority: "MEDIUM", CreatedAt: time.Now()})
	if !strings.HasPrefix(tempID, tempIDPrefix) {
		t.Fatalf("expected temp id, got %q", tempID)
	}
	if store.Total() != 3 {
		t.Fatalf("pending create should raise the visible total, got %d", store.Total())
	}
	if _, ok := findByID(store.Todos(), tempID); !ok {
		t.Fatalf("pending create should be visible")
	}

	// Failed request: the optimistic row disappears.
	store.Rollback(tempID)
	if store.Total() != 2 {
		t.Fatalf("rollback should restore the total, got %d", store.Total())
	}
	if _, ok := findByID(store.Todos(), tempID); ok {
		t.Fatalf("rolled back create still visible")
	}

	// Successful request: the server row replaces the temp one.
	tempID = store.StageCreate(Todo{Title: "Optimistic", CreatedAt: time.Now()})
	store.ConfirmCreate(tempID, Todo{ID: "todo-3", Title: "Optimistic"})
	if store.Total() != 3 {
		t.Fatalf("confirmed create should raise the total, got %d", store.Total())
	}
	if _, ok := findByID(store.Todos(), tempID); ok {
		t.Fatalf("temp row should be replaced by the server row")
	}
	if _, ok := findByID(store.Todos(), "todo-3"); !ok {
		t.Fatalf("server row missing after confirm")
	}
}

func TestStoreToggleRollback(t *testing.T) {
	store := NewStore()
	store.SetConfirmed(confirmedPair(), 2)

	if !store.StageToggle("todo-1") {
		t.Fatalf("toggle of a confirmed row should stage")
	}
	visible, _ := findByID(store.Todos(), "todo-1")
	if !visible.IsDone {
		t.Fatalf("toggle should flip isDone in the view")
	}

	store.Rollback("todo-1")
	visible, _ = findByID(store.Todos(), "todo-1")
	if visible.IsDone {
		t.Fatalf("rollback should restore the original isDone")
	}
}

func TestStoreToggleConfirmPrefersServerRow(t *testing.T) {
	store := NewStore()
	store.SetConfirmed(confirmedPair(), 2)
	store.StageToggle("todo-1")

	later := time.Date(2024, time.June, 2, 0, 0, 0, 0, time.UTC)
	server := Todo{ID: "todo-1", Title: "First", IsDone: true, UpdatedAt: later}
	store.Confirm("todo-1", &server)

	visible, _ := findByID(store.Todos(), "todo-1")
	if !visible.IsDone || !visible.UpdatedAt.Equal(later) {
		t.Fatalf("server row should win after confirm: %+v", visible)
	}
	if store.PendingCount() != 0 {
		t.Fatalf("confirmed op still pending")
	}
}

func TestStoreDeleteLifecycle(t *testing.T) {
	store := NewStore()
	store.SetConfirmed(confirmedPair(), 2)

	if !store.StageDelete("todo-2") {
		t.Fatalf("delete of a confirmed row should stage")
	}
	if _, ok := findByID(store.Todos(), "todo-2"); ok {
		t.Fatalf("pending delete should hide the row")
	}
	if store.Total() != 1 {
		t.Fatalf("pending delete should lower the visible total, got %d", store.Total())
	}

	store.Rollback("todo-2")
	if _, ok := findByID(store.Todos(), "todo-2"); !ok {
		t.Fatalf("rollback should restore the hidden row")
	}

	store.StageDelete("todo-2")
	store.Confirm("todo-2", nil)
	if _, ok := findByID(store.Todos(), "todo-2"); ok {
		t.Fatalf("confirmed delete should remove the row")
	}
	if store.Total() != 1 {
		t.Fatalf("confirmed delete should lower the total, got %d", store.Total())
	}
}

func TestStoreRejectsConflictingStages(t *testing.T) {
	store := NewStore()
	store.SetConfirmed(confirmedPair(), 2)

	if !store.StageToggle("todo-1") {
		t.Fatalf("first stage should succeed")
	}
	if store.StageToggle("todo-1") {
		t.Fatalf("second stage on the same row should be rejected")
	}
	if store.StageDelete("todo-1") {
		t.Fatalf("delete of a mid-flight row should be rejected")
	}
	if store.StageUpdate("missing", Todo{Title: "x"}) {
		t.Fatalf("update of an unknown row should be rejected")
	}
}

func TestStoreSetConfirmedDropsPending(t *testing.T) {
	store := NewStore()
	store.SetConfirmed(confirmedPair(), 2)
	store.StageToggle("todo-1")
	store.StageCreate(Todo{Title: "Optimistic"})

	store.SetConfirmed(confirmedPair(), 2)
	if store.PendingCount() != 0 {
		t.Fatalf("reload should discard pending ops, %d left", store.PendingCount())
	}
	if store.Total() != 2 {
		t.Fatalf("reload should reset the total, got %d", store.Total())
	}
}
