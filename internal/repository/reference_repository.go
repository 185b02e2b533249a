package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/noah-isme/tahfidz-admin-api/internal/models"
)

// ClassRepository reads classes.
type ClassRepository struct {
	db DBTX
}

// NewClassRepository constructs a new class repository.
func NewClassRepository(db DBTX) *ClassRepository {
	return &ClassRepository{db: db}
}

// FindByNameExact matches the class name case-insensitively.
func (r *ClassRepository) FindByNameExact(ctx context.Context, name string) (*models.Class, error) {
	const query = `SELECT id, name, created_at, updated_at FROM classes WHERE LOWER(name) = LOWER($1) ORDER BY id LIMIT 1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, name); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find class by name: %w", err)
	}
	return &class, nil
}

// FindByNameContains returns the shortest class name containing the fragment, ties broken by name then id.
func (r *ClassRepository) FindByNameContains(ctx context.Context, fragment string) (*models.Class, error) {
	const query = `SELECT id, name, created_at, updated_at FROM classes WHERE name ILIKE $1 ORDER BY LENGTH(name), name, id LIMIT 1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, containsPattern(fragment)); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find class by fragment: %w", err)
	}
	return &class, nil
}

// AcademicYearRepository reads academic years.
type AcademicYearRepository struct {
	db DBTX
}

// NewAcademicYearRepository constructs an AcademicYearRepository.
func NewAcademicYearRepository(db DBTX) *AcademicYearRepository {
	return &AcademicYearRepository{db: db}
}

// FindByNameContains matches by case-insensitive substring, preferring the active year then the latest name.
func (r *AcademicYearRepository) FindByNameContains(ctx context.Context, fragment string) (*models.AcademicYear, error) {
	const query = `SELECT id, name, active, created_at, updated_at FROM academic_years WHERE name ILIKE $1 ORDER BY active DESC, name DESC, id LIMIT 1`
	var year models.AcademicYear
	if err := r.db.GetContext(ctx, &year, query, containsPattern(fragment)); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find academic year by fragment: %w", err)
	}
	return &year, nil
}
