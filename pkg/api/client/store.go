package client

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

const tempIDPrefix = "temp-"

type opKind int

const (
	opCreate opKind = iota
	opUpdate
	opDelete
)

// pendingOp is one optimistic mutation awaiting server confirmation.
// original holds the pre-mutation row so a failed request can be
// rolled back without a refetch.
type pendingOp struct {
	kind     opKind
	original *Todo
	row      *Todo
}

// Store holds the client's view of the todo list: the last confirmed
// server state plus a set of pending optimistic mutations layered on
// top. Mutations apply to the visible view immediately; the caller
// confirms or rolls back each one when the request settles.
type Store struct {
	mu        sync.Mutex
	confirmed []Todo
	total     int
	pending   map[string]pendingOp
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{pending: make(map[string]pendingOp)}
}

// SetConfirmed replaces the confirmed state with a fresh server page
// and discards all pending bookkeeping. Used on initial load and on
// drift-triggered reloads, where the server copy wins.
func (s *Store) SetConfirmed(todos []Todo, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmed = append([]Todo(nil), todos...)
	s.total = total
	s.pending = make(map[string]pendingOp)
}

// Todos returns the visible list: confirmed rows with pending updates
// applied, pending deletes removed, and pending creates prepended.
func (s *Store) Todos() []Todo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Todo, 0, len(s.confirmed)+len(s.pending))
	var creates []Todo
	for id, op := range s.pending {
		if op.kind == opCreate {
			row := *op.row
			row.ID = id
			creates = append(creates, row)
		}
	}
	sort.Slice(creates, func(i, j int) bool {
		return creates[i].CreatedAt.After(creates[j].CreatedAt)
	})
	out = append(out, creates...)

	for _, todo := range s.confirmed {
		op, ok := s.pending[todo.ID]
		if !ok {
			out = append(out, todo)
			continue
		}
		switch op.kind {
		case opDelete:
			continue
		case opUpdate:
			out = append(out, *op.row)
		default:
			out = append(out, todo)
		}
	}
	return out
}

// Total returns the visible count: the confirmed server total adjusted
// by pending creates and deletes.
func (s *Store) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := s.total
	for _, op := range s.pending {
		switch op.kind {
		case opCreate:
			total++
		case opDelete:
			total--
		}
	}
	if total < 0 {
		total = 0
	}
	return total
}

// StageCreate registers an optimistic create and returns the temporary
// id it is tracked under until ConfirmCreate swaps in the real row.
func (s *Store) StageCreate(todo Todo) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	tempID := tempIDPrefix + uuid.NewString()
	row := todo
	row.ID = tempID
	s.pending[tempID] = pendingOp{kind: opCreate, row: &row}
	return tempID
}

// ConfirmCreate replaces an optimistic create with the server row.
func (s *Store) ConfirmCreate(tempID string, actual Todo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.pending[tempID]
	if !ok || op.kind != opCreate {
		return
	}
	delete(s.pending, tempID)
	s.confirmed = append([]Todo{actual}, s.confirmed...)
	s.total++
}

// StageUpdate registers an optimistic replacement of one confirmed
// row. Reports false when the id is unknown or already mid-flight.
func (s *Store) StageUpdate(id string, updated Todo) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.pending[id]; busy {
		return false
	}
	original, ok := s.findConfirmed(id)
	if !ok {
		return false
	}
	updated.ID = id
	s.pending[id] = pendingOp{kind: opUpdate, original: &original, row: &updated}
	return true
}

// StageToggle flips isDone optimistically. Reports false when the id
// is unknown or already mid-flight.
func (s *Store) StageToggle(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.pending[id]; busy {
		return false
	}
	original, ok := s.findConfirmed(id)
	if !ok {
		return false
	}
	flipped := original
	flipped.IsDone = !original.IsDone
	s.pending[id] = pendingOp{kind: opUpdate, original: &original, row: &flipped}
	return true
}

// StageDelete hides one confirmed row optimistically. Reports false
// when the id is unknown or already mid-flight.
func (s *Store) StageDelete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.pending[id]; busy {
		return false
	}
	original, ok := s.findConfirmed(id)
	if !ok {
		return false
	}
	s.pending[id] = pendingOp{kind: opDelete, original: &original}
	return true
}

// Confirm folds a settled update or delete into the confirmed state.
// The server row, when provided, replaces the optimistic one.
func (s *Store) Confirm(id string, serverRow *Todo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.pending[id]
	if !ok {
		return
	}
	delete(s.pending, id)
	switch op.kind {
	case opUpdate:
		row := op.row
		if serverRow != nil {
			row = serverRow
		}
		s.replaceConfirmed(id, *row)
	case opDelete:
		s.removeConfirmed(id)
		s.total--
		if s.total < 0 {
			s.total = 0
		}
	}
}

// Rollback drops a failed mutation, restoring the pre-mutation view.
func (s *Store) Rollback(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
}

// PendingCount reports how many mutations are mid-flight.
func (s *Store) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Store) findConfirmed(id string) (Todo, bool) {
	for _, todo := range s.confirmed {
		if todo.ID == id {
			return todo, true
		}
	}
	return Todo{}, false
}

func (s *Store) replaceConfirmed(id string, row Todo) {
	for i := range s.confirmed {
		if s.confirmed[i].ID == id {
			s.confirmed[i] = row
			return
		}
	}
}

func (s *Store) removeConfirmed(id string) {
	for i := range s.confirmed {
		if s.confirmed[i].ID == id {
			s.confirmed = append(s.confirmed[:i], s.confirmed[i+1:]...)
			return
		}
	}
}
