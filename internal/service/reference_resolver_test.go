package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tahfidz-admin-api/internal/models"
)

func TestReferenceResolverPrefersExactMatch(t *testing.T) {
	classes := &memoryClasses{classes: []models.Class{
		{ID: "c1", Name: "7A Tahfidz"},
		{ID: "c2", Name: "7a"},
	}}
	r := NewReferenceResolver(classes, defaultYears())

	class, err := r.ResolveClass(context.Background(), " 7A ")
	require.NoError(t, err)
	assert.Equal(t, "c2", class.ID)
}

func TestReferenceResolverFallsBackToSubstring(t *testing.T) {
	r := NewReferenceResolver(defaultClasses(), defaultYears())

	class, err := r.ResolveClass(context.Background(), "tahfidz")
	require.NoError(t, err)
	assert.Equal(t, "class-8a", class.ID)

	year, err := r.ResolveAcademicYear(context.Background(), "2024")
	require.NoError(t, err)
	assert.Equal(t, "year-2024", year.ID)
}

func TestReferenceResolverNotFound(t *testing.T) {
	r := NewReferenceResolver(defaultClasses(), defaultYears())

	_, err := r.ResolveClass(context.Background(), "12 IPA")
	var notFound *ReferenceNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "class", notFound.Entity)
	assert.Equal(t, `class "12 IPA" not found`, err.Error())

	_, err = r.ResolveAcademicYear(context.Background(), "2030")
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "academic year", notFound.Entity)
}

func TestBatchResolverMemoisesLookups(t *testing.T) {
	classes := defaultClasses()
	b := newBatchResolver(NewReferenceResolver(classes, defaultYears()))

	for i := 0; i < 3; i++ {
		refs, err := b.resolve(context.Background(), "7A", "2024/2025")
		require.NoError(t, err)
		assert.Equal(t, "class-7a", refs.Class.ID)
	}
	for i := 0; i < 2; i++ {
		_, err := b.resolve(context.Background(), "9Z", "2024/2025")
		require.Error(t, err)
	}
	assert.Equal(t, 2, classes.lookups)
}
