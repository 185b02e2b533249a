package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tahfidz-admin-api/internal/models"
)

// ProvisioningTx is the set of reads and writes one import row performs atomically.
type ProvisioningTx interface {
	FindStudentByNationalOrLocalID(ctx context.Context, nisn, nis string) (*models.Student, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindGuardianByUserID(ctx context.Context, userID string) (*models.Guardian, error)
	CreateUser(ctx context.Context, user *models.User) error
	CreateStudent(ctx context.Context, student *models.Student) error
	CreateGuardian(ctx context.Context, guardian *models.Guardian) error
	CreateGuardianLink(ctx context.Context, link *models.GuardianStudent) error
	// Savepoint runs fn so that a failure inside it rolls back only fn's writes and leaves
	// the transaction usable.
	Savepoint(ctx context.Context, name string, fn func() error) error
}

// ProvisioningRepository opens one transaction per import row.
type ProvisioningRepository struct {
	db *sqlx.DB
}

// NewProvisioningRepository constructs a ProvisioningRepository.
func NewProvisioningRepository(db *sqlx.DB) *ProvisioningRepository {
	return &ProvisioningRepository{db: db}
}

// WithinTx runs fn inside a transaction, committing when fn returns nil and rolling back otherwise.
func (r *ProvisioningRepository) WithinTx(ctx context.Context, fn func(ProvisioningTx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin provisioning: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(newTxStore(tx)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit provisioning: %w", err)
	}
	return nil
}

type txStore struct {
	db        DBTX
	users     *UserRepository
	students  *StudentRepository
	guardians *GuardianRepository
}

func newTxStore(tx DBTX) *txStore {
	return &txStore{
		db:        tx,
		users:     NewUserRepository(tx),
		students:  NewStudentRepository(tx),
		guardians: NewGuardianRepository(tx),
	}
}

func (s *txStore) FindStudentByNationalOrLocalID(ctx context.Context, nisn, nis string) (*models.Student, error) {
	return s.students.FindByNationalOrLocalID(ctx, nisn, nis)
}

func (s *txStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.users.FindByEmail(ctx, email)
}

func (s *txStore) FindGuardianByUserID(ctx context.Context, userID string) (*models.Guardian, error) {
	return s.guardians.FindByUserID(ctx, userID)
}

func (s *txStore) CreateUser(ctx context.Context, user *models.User) error {
	return s.users.Create(ctx, user)
}

func (s *txStore) CreateStudent(ctx context.Context, student *models.Student) error {
	return s.students.Create(ctx, student)
}

func (s *txStore) CreateGuardian(ctx context.Context, guardian *models.Guardian) error {
	return s.guardians.Create(ctx, guardian)
}

func (s *txStore) CreateGuardianLink(ctx context.Context, link *models.GuardianStudent) error {
	return s.guardians.CreateLink(ctx, link)
}

func (s *txStore) Savepoint(ctx context.Context, name string, fn func() error) error {
	if _, err := s.db.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("savepoint %s: %w", name, err)
	}
	if err := fn(); err != nil {
		if _, rbErr := s.db.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return fmt.Errorf("%w (rollback to savepoint %s: %v)", err, name, rbErr)
		}
		return err
	}
	if _, err := s.db.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("release savepoint %s: %w", name, err)
	}
	return nil
}
