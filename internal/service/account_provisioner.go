package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/tahfidz-admin-api/internal/models"
	"github.com/noah-isme/tahfidz-admin-api/internal/repository"
	"github.com/noah-isme/tahfidz-admin-api/pkg/config"
)

type provisioningRepository interface {
	WithinTx(ctx context.Context, fn func(repository.ProvisioningTx) error) error
}

// GuardianRef is the guardian a student row was linked to. Password is only set for new accounts.
type GuardianRef struct {
	Guardian *models.Guardian
	Account  *models.User
	Created  bool
	Password string
}

// StudentRef is a newly created student together with its plaintext password.
type StudentRef struct {
	Student  *models.Student
	Account  *models.User
	Password string
}

// ProvisionResult is everything one successful row wrote.
type ProvisionResult struct {
	Student     StudentRef
	Guardian    GuardianRef
	LinkCreated bool
}

// AccountProvisioner creates guardian and student accounts for one row inside a single transaction.
type AccountProvisioner struct {
	repo           provisioningRepository
	deriver        *IdentityDeriver
	hasher         PasswordHasher
	guard          *DuplicateGuard
	conflictPolicy string
	token          func() string
	logger         *zap.Logger
}

// NewAccountProvisioner wires a provisioner. conflictPolicy is config.GuardianConflictSuffix or config.GuardianConflictFail.
func NewAccountProvisioner(repo provisioningRepository, deriver *IdentityDeriver, hasher PasswordHasher, conflictPolicy string, logger *zap.Logger) *AccountProvisioner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if conflictPolicy != config.GuardianConflictFail {
		conflictPolicy = config.GuardianConflictSuffix
	}
	return &AccountProvisioner{
		repo:           repo,
		deriver:        deriver,
		hasher:         hasher,
		guard:          NewDuplicateGuard(),
		conflictPolicy: conflictPolicy,
		token:          randomToken,
		logger:         logger,
	}
}

func randomToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
}

// Provision runs the duplicate checks and all writes for row in one transaction.
func (p *AccountProvisioner) Provision(ctx context.Context, row NormalizedRow, refs ResolvedRefs) (*ProvisionResult, error) {
	var result *ProvisionResult
	err := p.repo.WithinTx(ctx, func(tx repository.ProvisioningTx) error {
		if err := p.checkDuplicates(ctx, tx, row); err != nil {
			return err
		}
		guardian, err := p.ProvisionGuardian(ctx, tx, row.Guardian, row.Student)
		if err != nil {
			return err
		}
		student, err := p.ProvisionStudent(ctx, tx, row.Student, refs, guardian, row.Guardian.Relationship)
		if err != nil {
			return err
		}
		result = &ProvisionResult{Student: *student, Guardian: *guardian, LinkCreated: true}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CheckDuplicates runs the same duplicate checks as Provision without writing anything.
func (p *AccountProvisioner) CheckDuplicates(ctx context.Context, row NormalizedRow) error {
	return p.repo.WithinTx(ctx, func(tx repository.ProvisioningTx) error {
		return p.checkDuplicates(ctx, tx, row)
	})
}

func (p *AccountProvisioner) checkDuplicates(ctx context.Context, tx repository.ProvisioningTx, row NormalizedRow) error {
	conflict, err := p.guard.FindConflict(ctx, tx, row.Student.NISN, row.Student.NIS)
	if err != nil {
		return err
	}
	if conflict != nil {
		return conflict
	}
	email := p.deriver.StudentEmail(row.Student.Name, row.Student.NIS)
	account, err := p.guard.FindAccountByEmail(ctx, tx, email)
	if err != nil {
		return err
	}
	if account != nil {
		return &DuplicateError{Field: "email", Value: email}
	}
	return nil
}

// ProvisionGuardian reuses the guardian owning the derived email when the names match, otherwise
// creates a new guardian, disambiguating the email if another person already owns it.
func (p *AccountProvisioner) ProvisionGuardian(ctx context.Context, tx repository.ProvisioningTx, g NormalizedGuardian, s NormalizedStudent) (*GuardianRef, error) {
	email := p.deriver.GuardianEmail(g.Name, s.NIS)
	existing, err := p.guard.FindAccountByEmail(ctx, tx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		reused, err := p.reuseGuardian(ctx, tx, existing, g.Name)
		if err != nil || reused != nil {
			return reused, err
		}
		if p.conflictPolicy == config.GuardianConflictFail {
			return nil, &guardianConflictError{email: email, existingName: existing.FullName}
		}
		disambiguated := WithDisambiguator(email, p.token())
		taken, err := p.guard.FindAccountByEmail(ctx, tx, disambiguated)
		if err != nil {
			return nil, err
		}
		if taken != nil {
			return nil, fmt.Errorf("guardian email %s is taken after disambiguation", disambiguated)
		}
		p.logger.Debug("guardian email disambiguated",
			zap.String("email", email),
			zap.String("disambiguated", disambiguated),
		)
		email = disambiguated
	}

	password := p.deriver.GuardianPassword(s.NISN, s.BirthYear())
	hash, err := p.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	account := &models.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     g.Name,
		Role:         models.RoleGuardian,
		Active:       true,
	}
	guardian := &models.Guardian{
		Phone:  g.Phone,
		Gender: g.Gender,
		Status: models.GuardianStatusActive,
	}
	err = tx.Savepoint(ctx, "guardian_account", func() error {
		if err := tx.CreateUser(ctx, account); err != nil {
			return err
		}
		guardian.UserID = account.ID
		return tx.CreateGuardian(ctx, guardian)
	})
	if err != nil {
		// another import committed the same guardian between our lookup and insert
		if repository.ConstraintName(err) == usersEmailConstraint {
			reused, reuseErr := p.reuseGuardianByEmail(ctx, tx, email, g.Name)
			if reuseErr == nil && reused != nil {
				p.logger.Debug("guardian created concurrently, reusing", zap.String("email", email))
				return reused, nil
			}
		}
		return nil, err
	}
	return &GuardianRef{Guardian: guardian, Account: account, Created: true, Password: password}, nil
}

const usersEmailConstraint = "users_email_key"

// reuseGuardian returns the guardian behind account when it belongs to the same person, or nil.
func (p *AccountProvisioner) reuseGuardian(ctx context.Context, tx repository.ProvisioningTx, account *models.User, name string) (*GuardianRef, error) {
	if account.Role != models.RoleGuardian || !strings.EqualFold(strings.TrimSpace(account.FullName), name) {
		return nil, nil
	}
	guardian, err := tx.FindGuardianByUserID(ctx, account.ID)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &GuardianRef{Guardian: guardian, Account: account}, nil
}

func (p *AccountProvisioner) reuseGuardianByEmail(ctx context.Context, tx repository.ProvisioningTx, email, name string) (*GuardianRef, error) {
	account, err := p.guard.FindAccountByEmail(ctx, tx, email)
	if err != nil || account == nil {
		return nil, err
	}
	return p.reuseGuardian(ctx, tx, account, name)
}

// ProvisionStudent creates the student account, the student record and, when guardian is set, the link.
func (p *AccountProvisioner) ProvisionStudent(ctx context.Context, tx repository.ProvisioningTx, s NormalizedStudent, refs ResolvedRefs, guardian *GuardianRef, relationship string) (*StudentRef, error) {
	password := p.deriver.StudentPassword(s.NISN)
	hash, err := p.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	account := &models.User{
		Email:        p.deriver.StudentEmail(s.Name, s.NIS),
		PasswordHash: hash,
		FullName:     s.Name,
		Role:         models.RoleStudent,
		Active:       true,
	}
	if err := tx.CreateUser(ctx, account); err != nil {
		return nil, err
	}
	student := &models.Student{
		UserID:          account.ID,
		NISN:            s.NISN,
		NIS:             s.NIS,
		Gender:          s.Gender,
		BirthDate:       s.BirthDate,
		Address:         s.Address,
		Phone:           s.Phone,
		Cohort:          s.Cohort,
		ClassID:         refs.Class.ID,
		AdmissionYearID: refs.AcademicYear.ID,
		Status:          models.StudentStatusPendingValidation,
	}
	if err := tx.CreateStudent(ctx, student); err != nil {
		return nil, err
	}
	if guardian != nil {
		link := &models.GuardianStudent{
			GuardianID:   guardian.Guardian.ID,
			StudentID:    student.ID,
			Relationship: relationship,
		}
		if err := tx.CreateGuardianLink(ctx, link); err != nil {
			return nil, err
		}
	}
	return &StudentRef{Student: student, Account: account, Password: password}, nil
}
