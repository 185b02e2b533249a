package service

import (
	"errors"
	"fmt"
)

// RowErrorKind classifies why a single import row did not succeed.
type RowErrorKind string

const (
	RowErrValidation   RowErrorKind = "validation"
	RowErrReference    RowErrorKind = "reference"
	RowErrDuplicate    RowErrorKind = "duplicate"
	RowErrProvisioning RowErrorKind = "provisioning"
)

// RowError is a per-row failure. It never escapes the import batch; the orchestrator turns it into
// statistics and a human-readable line.
type RowError struct {
	Kind    RowErrorKind
	Line    int
	Message string
	Err     error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("Row %d: %s", e.Line, e.Message)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// ReferenceNotFoundError is returned when a class or academic year name does not resolve.
type ReferenceNotFoundError struct {
	Entity string
	Value  string
}

func (e *ReferenceNotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.Value)
}

// DuplicateError marks a row whose student already exists.
type DuplicateError struct {
	Field string
	Value string
}

func (e *DuplicateError) Error() string {
	if e.Field == "" {
		return "duplicate - record already exists"
	}
	return fmt.Sprintf("duplicate - %s %q already registered", e.Field, e.Value)
}

// ErrGuardianConflict is returned when a derived guardian email belongs to a different person
// and the conflict policy forbids disambiguation.
var ErrGuardianConflict = errors.New("guardian email conflict")

type guardianConflictError struct {
	email        string
	existingName string
}

func (e *guardianConflictError) Error() string {
	return fmt.Sprintf("guardian email %s already belongs to %q, manual review required", e.email, e.existingName)
}

func (e *guardianConflictError) Is(target error) bool {
	return target == ErrGuardianConflict
}
