package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"

	"github.com/noah-isme/tahfidz-admin-api/internal/models"
)

type classReader interface {
	FindByNameExact(ctx context.Context, name string) (*models.Class, error)
	FindByNameContains(ctx context.Context, fragment string) (*models.Class, error)
}

type academicYearReader interface {
	FindByNameContains(ctx context.Context, fragment string) (*models.AcademicYear, error)
}

// ResolvedRefs are the foreign keys a student record needs.
type ResolvedRefs struct {
	Class        *models.Class
	AcademicYear *models.AcademicYear
}

// ReferenceResolver maps free-text class and academic year names onto existing records.
type ReferenceResolver struct {
	classes classReader
	years   academicYearReader
}

// NewReferenceResolver constructs a ReferenceResolver.
func NewReferenceResolver(classes classReader, years academicYearReader) *ReferenceResolver {
	return &ReferenceResolver{classes: classes, years: years}
}

// ResolveClass prefers an exact case-insensitive match and falls back to a substring match.
func (r *ReferenceResolver) ResolveClass(ctx context.Context, name string) (*models.Class, error) {
	name = strings.TrimSpace(name)
	class, err := r.classes.FindByNameExact(ctx, name)
	if err == nil {
		return class, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	class, err = r.classes.FindByNameContains(ctx, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ReferenceNotFoundError{Entity: "class", Value: name}
	}
	return class, err
}

// ResolveAcademicYear matches by substring only.
func (r *ReferenceResolver) ResolveAcademicYear(ctx context.Context, name string) (*models.AcademicYear, error) {
	name = strings.TrimSpace(name)
	year, err := r.years.FindByNameContains(ctx, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ReferenceNotFoundError{Entity: "academic year", Value: name}
	}
	return year, err
}

// batchResolver memoises lookups for the lifetime of one import batch. Transient errors are not cached.
type batchResolver struct {
	resolver *ReferenceResolver

	mu      sync.Mutex
	classes map[string]memo[*models.Class]
	years   map[string]memo[*models.AcademicYear]
}

type memo[T any] struct {
	value T
	err   error
}

func newBatchResolver(resolver *ReferenceResolver) *batchResolver {
	return &batchResolver{
		resolver: resolver,
		classes:  make(map[string]memo[*models.Class]),
		years:    make(map[string]memo[*models.AcademicYear]),
	}
}

func (b *batchResolver) resolve(ctx context.Context, className, yearName string) (ResolvedRefs, error) {
	class, err := lookupMemo(b, b.classes, strings.ToLower(className), func() (*models.Class, error) {
		return b.resolver.ResolveClass(ctx, className)
	})
	if err != nil {
		return ResolvedRefs{}, err
	}
	year, err := lookupMemo(b, b.years, strings.ToLower(yearName), func() (*models.AcademicYear, error) {
		return b.resolver.ResolveAcademicYear(ctx, yearName)
	})
	if err != nil {
		return ResolvedRefs{}, err
	}
	return ResolvedRefs{Class: class, AcademicYear: year}, nil
}

func lookupMemo[T any](b *batchResolver, cache map[string]memo[T], key string, load func() (T, error)) (T, error) {
	b.mu.Lock()
	if m, ok := cache[key]; ok {
		b.mu.Unlock()
		return m.value, m.err
	}
	b.mu.Unlock()

	value, err := load()
	var notFound *ReferenceNotFoundError
	if err == nil || errors.As(err, &notFound) {
		b.mu.Lock()
		cache[key] = memo[T]{value: value, err: err}
		b.mu.Unlock()
	}
	return value, err
}
