package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/tahfidz-admin-api/internal/models"
	appErrors "github.com/noah-isme/tahfidz-admin-api/pkg/errors"
)

type mockStudentRepo struct {
	students   []models.StudentDetail
	total      int
	calls      int
	lastFilter models.StudentFilter
	err        error
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	m.calls++
	m.lastFilter = filter
	if m.err != nil {
		return nil, 0, m.err
	}
	return m.students, m.total, nil
}

// memoryCacheRepo is a CacheRepository backed by a map, with glob support limited to a trailing '*'.
type memoryCacheRepo struct {
	mu      sync.Mutex
	entries map[string][]byte
	deleted []string
	failDel bool
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{entries: make(map[string][]byte)}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDel {
		return errors.New("redis down")
	}
	m.deleted = append(m.deleted, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	return nil
}

func (m *memoryCacheRepo) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func TestStudentServiceListDefaultsPagination(t *testing.T) {
	repo := &mockStudentRepo{students: []models.StudentDetail{{FullName: "Ahmad"}}, total: 1}
	svc := NewStudentService(repo, nil, time.Minute, zap.NewNop())

	students, pagination, err := svc.List(context.Background(), models.StudentFilter{})
	require.NoError(t, err)
	assert.Len(t, students, 1)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 1, pagination.TotalCount)
	assert.Equal(t, 20, repo.lastFilter.PageSize)
}

func TestStudentServiceListUsesCache(t *testing.T) {
	repo := &mockStudentRepo{students: []models.StudentDetail{{FullName: "Ahmad"}}, total: 1}
	cache := NewCacheService(newMemoryCacheRepo(), NewMetricsService(), time.Minute, zap.NewNop(), true)
	svc := NewStudentService(repo, cache, time.Minute, zap.NewNop())

	filter := models.StudentFilter{Search: "ahm", Page: 1, PageSize: 10}
	_, _, err := svc.List(context.Background(), filter)
	require.NoError(t, err)
	students, pagination, err := svc.List(context.Background(), filter)
	require.NoError(t, err)

	assert.Equal(t, 1, repo.calls)
	require.Len(t, students, 1)
	assert.Equal(t, "Ahmad", students[0].FullName)
	assert.Equal(t, 1, pagination.TotalCount)
}

func TestStudentServiceListInvalidationForcesReload(t *testing.T) {
	repo := &mockStudentRepo{total: 0}
	cacheRepo := newMemoryCacheRepo()
	cache := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	svc := NewStudentService(repo, cache, time.Minute, zap.NewNop())

	_, _, err := svc.List(context.Background(), models.StudentFilter{})
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(context.Background(), StudentListCachePrefix+"*"))
	assert.Equal(t, 0, cacheRepo.len())

	_, _, err = svc.List(context.Background(), models.StudentFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.calls)
}

func TestStudentServiceListRepositoryError(t *testing.T) {
	svc := NewStudentService(&mockStudentRepo{err: errors.New("boom")}, nil, time.Minute, nil)

	_, _, err := svc.List(context.Background(), models.StudentFilter{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}
