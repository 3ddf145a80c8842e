package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnauthorized is returned when the acting principal's role lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist or is not visible to the principal.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a record with the same natural key is already stored.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrInvalidState is returned when the record's status does not allow the operation.
	ErrInvalidState = errors.New("application: invalid state")
	// ErrConflict is returned when the record changed between read and write.
	ErrConflict = errors.New("application: concurrent modification")
	// ErrUnauthenticated is returned when no valid credential accompanies the request.
	ErrUnauthenticated = errors.New("application: unauthenticated")
	// ErrInvalidCredentials is returned when the e-mail and password do not match.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrAccountPending is returned when an account still awaits approval.
	ErrAccountPending = errors.New("application: account pending approval")
	// ErrAccountRejected is returned when an account was rejected by an administrator.
	ErrAccountRejected = errors.New("application: account rejected")
	// ErrNoRecords is returned when a document is requested for an empty selection.
	ErrNoRecords = fmt.Errorf("%w: no records found", ErrNotFound)
)

// RenderError reports a failure of the document rendering backend. Callers
// may retry.
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string {
	if e == nil || e.Err == nil {
		return "application: render failed"
	}
	return "application: render failed: " + e.Err.Error()
}

func (e *RenderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error. The first message for a field wins.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}
