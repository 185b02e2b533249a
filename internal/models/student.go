package models

import "time"

// Gender is the two-valued enum stored for students and guardians.
type Gender string

const (
	GenderMale   Gender = "LAKI_LAKI"
	GenderFemale Gender = "PEREMPUAN"
)

// StudentStatusPendingValidation marks records created by bulk import until an admin reviews them.
const StudentStatusPendingValidation = "PENDING_VALIDATION"

// Student represents a learner registered in the institution.
type Student struct {
	ID              string    `db:"id" json:"id"`
	UserID          string    `db:"user_id" json:"user_id"`
	NISN            string    `db:"nisn" json:"nisn"`
	NIS             string    `db:"nis" json:"nis"`
	Gender          Gender    `db:"gender" json:"gender"`
	BirthDate       time.Time `db:"birth_date" json:"birth_date"`
	Address         string    `db:"address" json:"address"`
	Phone           string    `db:"phone" json:"phone"`
	Cohort          string    `db:"cohort" json:"cohort"`
	ClassID         string    `db:"class_id" json:"class_id"`
	AdmissionYearID string    `db:"admission_year_id" json:"admission_year_id"`
	Status          string    `db:"status" json:"status"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	ClassID   string
	Status    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// StudentDetail is the listing projection joining account, class and admission year.
type StudentDetail struct {
	Student
	FullName          string `db:"full_name" json:"full_name"`
	Email             string `db:"email" json:"email"`
	ClassName         string `db:"class_name" json:"class_name"`
	AdmissionYearName string `db:"admission_year_name" json:"admission_year_name"`
}
