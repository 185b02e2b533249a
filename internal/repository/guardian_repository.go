package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/tahfidz-admin-api/internal/models"
)

// GuardianRepository persists guardians and their links to students.
type GuardianRepository struct {
	db DBTX
}

// NewGuardianRepository constructs a GuardianRepository.
func NewGuardianRepository(db DBTX) *GuardianRepository {
	return &GuardianRepository{db: db}
}

// FindByUserID returns the guardian owning the given account.
func (r *GuardianRepository) FindByUserID(ctx context.Context, userID string) (*models.Guardian, error) {
	const query = `SELECT id, user_id, phone, gender, status, created_at, updated_at FROM guardians WHERE user_id = $1 LIMIT 1`
	var guardian models.Guardian
	if err := r.db.GetContext(ctx, &guardian, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find guardian by user: %w", err)
	}
	return &guardian, nil
}

// Create inserts a guardian record.
func (r *GuardianRepository) Create(ctx context.Context, guardian *models.Guardian) error {
	if guardian.ID == "" {
		guardian.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if guardian.CreatedAt.IsZero() {
		guardian.CreatedAt = now
	}
	guardian.UpdatedAt = now
	const query = `INSERT INTO guardians (id, user_id, phone, gender, status, created_at, updated_at)
        VALUES (:id, :user_id, :phone, :gender, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, guardian); err != nil {
		return fmt.Errorf("create guardian: %w", err)
	}
	return nil
}

// CreateLink attaches a guardian to a student.
func (r *GuardianRepository) CreateLink(ctx context.Context, link *models.GuardianStudent) error {
	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO guardian_students (id, guardian_id, student_id, relationship, created_at)
        VALUES (:id, :guardian_id, :student_id, :relationship, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, link); err != nil {
		return fmt.Errorf("create guardian link: %w", err)
	}
	return nil
}
