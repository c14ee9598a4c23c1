package repository

import "errors"

// ErrNotFound indicates an entity was not located, or is owned by a
// different user. Callers must not distinguish the two cases.
var ErrNotFound = errors.New("repository: not found")

// ErrConflict indicates a uniqueness violation (duplicate email).
var ErrConflict = errors.New("repository: conflict")

// ErrOwnership indicates a bulk operation referenced at least one todo
// that does not exist or belongs to another user. Nothing was mutated.
var ErrOwnership = errors.New("repository: ownership mismatch")
