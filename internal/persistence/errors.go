package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a write violates a uniqueness constraint.
	ErrDuplicate = errors.New("persistence: duplicate")
	// ErrConstraintViolation is returned when a record fails a CHECK or NOT NULL rule.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrForeignKeyViolation is returned when a write references a missing row or
	// a delete would orphan dependent rows.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
	// ErrStaleVersion is returned when a conditional write observes a newer version
	// than the one the caller read.
	ErrStaleVersion = errors.New("persistence: stale version")
)
