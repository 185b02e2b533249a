package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/tahfidz-admin-api/internal/models"
	appErrors "github.com/noah-isme/tahfidz-admin-api/pkg/errors"
)

// StudentListCachePrefix namespaces cached student listings; imports invalidate StudentListCachePrefix + "*".
const StudentListCachePrefix = "student-list"

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
}

type studentListCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type cachedStudentPage struct {
	Students []models.StudentDetail `json:"students"`
	Total    int                    `json:"total"`
}

// StudentService serves the admin student listing through a read-through cache.
type StudentService struct {
	repo   studentRepository
	cache  studentListCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewStudentService constructs the student service. cache may be nil.
func NewStudentService(repo studentRepository, cache studentListCache, ttl time.Duration, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, *models.Pagination, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	filter.Page, filter.PageSize = page, size

	key := studentListKey(filter)
	var cached cachedStudentPage
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return cached.Students, &models.Pagination{Page: page, PageSize: size, TotalCount: cached.Total}, nil
		}
	}

	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	if students == nil {
		students = []models.StudentDetail{}
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, cachedStudentPage{Students: students, Total: total}, s.ttl); err != nil {
			s.logger.Debug("student list not cached", zap.String("key", key), zap.Error(err))
		}
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

func studentListKey(filter models.StudentFilter) string {
	raw := fmt.Sprintf("%s|%s|%s|%d|%d|%s|%s", filter.Search, filter.ClassID, filter.Status, filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder)
	sum := sha1.Sum([]byte(raw))
	return StudentListCachePrefix + ":" + hex.EncodeToString(sum[:])
}
