package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/lib/pq"

	"github.com/noah-isme/tahfidz-admin-api/internal/dto"
	"github.com/noah-isme/tahfidz-admin-api/internal/models"
	"github.com/noah-isme/tahfidz-admin-api/internal/repository"
)

// memoryStore is an in-memory stand-in for the provisioning tables. WithinTx serialises
// transactions and restores a snapshot when fn fails.
type memoryStore struct {
	mu        sync.Mutex
	seq       int
	users     map[string]*models.User
	students  []*models.Student
	guardians map[string]*models.Guardian
	links     []*models.GuardianStudent

	staleStudentReads bool
	failStudentNIS    string
	txCount           int
	savepoints        int

	// racingGuardians maps an email to a guardian name that another importer commits
	// right before this store's next insert of that email.
	racingGuardians map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:     make(map[string]*models.User),
		guardians: make(map[string]*models.Guardian),
	}
}

type storeSnapshot struct {
	seq       int
	users     map[string]*models.User
	students  []*models.Student
	guardians map[string]*models.Guardian
	links     []*models.GuardianStudent
}

func (m *memoryStore) snapshot() storeSnapshot {
	snap := storeSnapshot{
		seq:       m.seq,
		users:     make(map[string]*models.User, len(m.users)),
		students:  append([]*models.Student(nil), m.students...),
		guardians: make(map[string]*models.Guardian, len(m.guardians)),
		links:     append([]*models.GuardianStudent(nil), m.links...),
	}
	for k, v := range m.users {
		snap.users[k] = v
	}
	for k, v := range m.guardians {
		snap.guardians[k] = v
	}
	return snap
}

func (m *memoryStore) restore(snap storeSnapshot) {
	m.seq = snap.seq
	m.users = snap.users
	m.students = snap.students
	m.guardians = snap.guardians
	m.links = snap.links
}

func (m *memoryStore) WithinTx(ctx context.Context, fn func(repository.ProvisioningTx) error) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	m.txCount++
	snap := m.snapshot()
	defer func() {
		if p := recover(); p != nil {
			m.restore(snap)
			panic(p)
		}
		if err != nil {
			m.restore(snap)
		}
	}()
	return fn(&memoryTx{store: m})
}

func (m *memoryStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memoryStore) seedUser(user *models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user.ID == "" {
		user.ID = m.nextID("user")
	}
	m.users[user.Email] = user
}

func (m *memoryStore) seedGuardian(user *models.User) *models.Guardian {
	m.seedUser(user)
	m.mu.Lock()
	defer m.mu.Unlock()
	guardian := &models.Guardian{ID: m.nextID("guardian"), UserID: user.ID, Status: models.GuardianStatusActive}
	m.guardians[user.ID] = guardian
	return guardian
}

func (m *memoryStore) seedStudent(student *models.Student) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if student.ID == "" {
		student.ID = m.nextID("student")
	}
	m.students = append(m.students, student)
}

func (m *memoryStore) user(email string) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[email]
}

func (m *memoryStore) counts() (users, students, guardians, links int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), len(m.students), len(m.guardians), len(m.links)
}

func (m *memoryStore) linksFor(guardianID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, link := range m.links {
		if link.GuardianID == guardianID {
			n++
		}
	}
	return n
}

type memoryTx struct {
	store *memoryStore
}

func uniqueViolation(constraint string) error {
	return &pq.Error{Code: "23505", Constraint: constraint, Message: "duplicate key value violates unique constraint"}
}

func (t *memoryTx) FindStudentByNationalOrLocalID(ctx context.Context, nisn, nis string) (*models.Student, error) {
	if t.store.staleStudentReads {
		return nil, sql.ErrNoRows
	}
	for _, s := range t.store.students {
		if s.NISN == nisn || s.NIS == nis {
			return s, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (t *memoryTx) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := t.store.users[strings.ToLower(email)]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (t *memoryTx) FindGuardianByUserID(ctx context.Context, userID string) (*models.Guardian, error) {
	if g, ok := t.store.guardians[userID]; ok {
		return g, nil
	}
	return nil, sql.ErrNoRows
}

func (t *memoryTx) CreateUser(ctx context.Context, user *models.User) error {
	email := strings.ToLower(user.Email)
	if name, ok := t.store.racingGuardians[email]; ok {
		delete(t.store.racingGuardians, email)
		other := &models.User{ID: t.store.nextID("user"), Email: email, FullName: name, Role: models.RoleGuardian, Active: true}
		t.store.users[email] = other
		t.store.guardians[other.ID] = &models.Guardian{ID: t.store.nextID("guardian"), UserID: other.ID, Status: models.GuardianStatusActive}
	}
	if _, ok := t.store.users[email]; ok {
		return fmt.Errorf("create user: %w", uniqueViolation("users_email_key"))
	}
	user.ID = t.store.nextID("user")
	user.Email = email
	t.store.users[email] = user
	return nil
}

func (t *memoryTx) CreateStudent(ctx context.Context, student *models.Student) error {
	if t.store.failStudentNIS != "" && student.NIS == t.store.failStudentNIS {
		return errors.New("create student: connection reset by peer")
	}
	for _, s := range t.store.students {
		if s.NISN == student.NISN {
			return fmt.Errorf("create student: %w", uniqueViolation("students_nisn_key"))
		}
		if s.NIS == student.NIS {
			return fmt.Errorf("create student: %w", uniqueViolation("students_nis_key"))
		}
	}
	student.ID = t.store.nextID("student")
	t.store.students = append(t.store.students, student)
	return nil
}

func (t *memoryTx) CreateGuardian(ctx context.Context, guardian *models.Guardian) error {
	guardian.ID = t.store.nextID("guardian")
	t.store.guardians[guardian.UserID] = guardian
	return nil
}

// Savepoint only runs fn: every fake write validates before mutating, so a failed fn left nothing behind.
func (t *memoryTx) Savepoint(ctx context.Context, name string, fn func() error) error {
	t.store.savepoints++
	return fn()
}

func (t *memoryTx) CreateGuardianLink(ctx context.Context, link *models.GuardianStudent) error {
	link.ID = t.store.nextID("link")
	t.store.links = append(t.store.links, link)
	return nil
}

type memoryClasses struct {
	classes []models.Class
	lookups int
	mu      sync.Mutex
}

func (m *memoryClasses) FindByNameExact(ctx context.Context, name string) (*models.Class, error) {
	m.mu.Lock()
	m.lookups++
	m.mu.Unlock()
	for i := range m.classes {
		if strings.EqualFold(m.classes[i].Name, name) {
			return &m.classes[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryClasses) FindByNameContains(ctx context.Context, fragment string) (*models.Class, error) {
	matches := make([]models.Class, 0)
	for _, c := range m.classes {
		if strings.Contains(strings.ToLower(c.Name), strings.ToLower(fragment)) {
			matches = append(matches, c)
		}
	}
	if len(matches) == 0 {
		return nil, sql.ErrNoRows
	}
	sort.Slice(matches, func(i, j int) bool {
		if len(matches[i].Name) != len(matches[j].Name) {
			return len(matches[i].Name) < len(matches[j].Name)
		}
		return matches[i].Name < matches[j].Name
	})
	return &matches[0], nil
}

type memoryYears struct {
	years []models.AcademicYear
}

func (m *memoryYears) FindByNameContains(ctx context.Context, fragment string) (*models.AcademicYear, error) {
	for i := range m.years {
		if strings.Contains(strings.ToLower(m.years[i].Name), strings.ToLower(fragment)) {
			return &m.years[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func defaultClasses() *memoryClasses {
	return &memoryClasses{classes: []models.Class{
		{ID: "class-7a", Name: "7A"},
		{ID: "class-7b", Name: "7B"},
		{ID: "class-8a", Name: "8A Tahfidz"},
	}}
}

func defaultYears() *memoryYears {
	return &memoryYears{years: []models.AcademicYear{
		{ID: "year-2024", Name: "2024/2025", Active: true},
	}}
}

func importRow(name, nisn, nis, guardian string) dto.ImportRow {
	return dto.ImportRow{
		Student: dto.StudentInput{
			Name:              dto.FlexString(name),
			NISN:              dto.FlexString(nisn),
			NIS:               dto.FlexString(nis),
			Gender:            "L",
			Cohort:            "2024",
			ClassName:         "7A",
			AdmissionYearName: "2024/2025",
		},
		Guardian: dto.GuardianInput{
			Relationship: "Ayah",
			Name:         dto.FlexString(guardian),
			Gender:       "L",
			Phone:        "0800000",
		},
	}
}
