package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/tahfidz-admin-api/internal/models"
)

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db DBTX
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db DBTX) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = `s.id, s.user_id, s.nisn, s.nis, s.gender, s.birth_date, s.address, s.phone, s.cohort, s.class_id, s.admission_year_id, s.status, s.created_at, s.updated_at`

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	base := "FROM students s JOIN users u ON u.id = s.user_id JOIN classes c ON c.id = s.class_id JOIN academic_years ay ON ay.id = s.admission_year_id"
	var args []interface{}
	conditions := []string{"1=1"}

	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("s.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("s.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(u.full_name ILIKE $%d OR s.nis ILIKE $%d OR s.nisn ILIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, containsPattern(filter.Search))
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	allowedSorts := map[string]string{
		"full_name":  "u.full_name",
		"nis":        "s.nis",
		"created_at": "s.created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "s.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s,
        u.full_name, u.email, c.name AS class_name, ay.name AS admission_year_name
        %s ORDER BY %s %s, s.id LIMIT %d OFFSET %d`, studentColumns, base, column, order, size, offset)

	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByNationalOrLocalID returns the first student whose NISN or NIS matches either argument.
// It returns sql.ErrNoRows when neither identifier is taken.
func (r *StudentRepository) FindByNationalOrLocalID(ctx context.Context, nisn, nis string) (*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students s WHERE s.nisn = $1 OR s.nis = $2 ORDER BY s.created_at LIMIT 1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, nisn, nis); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student by nisn/nis: %w", err)
	}
	return &student, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, user_id, nisn, nis, gender, birth_date, address, phone, cohort, class_id, admission_year_id, status, created_at, updated_at)
        VALUES (:id, :user_id, :nisn, :nis, :gender, :birth_date, :address, :phone, :cohort, :class_id, :admission_year_id, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}
