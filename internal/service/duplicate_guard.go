package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/noah-isme/tahfidz-admin-api/internal/models"
)

type duplicateReader interface {
	FindStudentByNationalOrLocalID(ctx context.Context, nisn, nis string) (*models.Student, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// DuplicateGuard detects rows whose student or account already exists.
type DuplicateGuard struct{}

// NewDuplicateGuard constructs a DuplicateGuard.
func NewDuplicateGuard() *DuplicateGuard {
	return &DuplicateGuard{}
}

// FindConflict returns a *DuplicateError when a student already holds either identifier.
func (g *DuplicateGuard) FindConflict(ctx context.Context, r duplicateReader, nisn, nis string) (*DuplicateError, error) {
	existing, err := r.FindStudentByNationalOrLocalID(ctx, nisn, nis)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(existing.NISN, nisn) {
		return &DuplicateError{Field: "NISN", Value: nisn}, nil
	}
	return &DuplicateError{Field: "NIS", Value: nis}, nil
}

// FindAccountByEmail returns the account owning email, or nil when none does.
func (g *DuplicateGuard) FindAccountByEmail(ctx context.Context, r duplicateReader, email string) (*models.User, error) {
	user, err := r.FindUserByEmail(ctx, email)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
