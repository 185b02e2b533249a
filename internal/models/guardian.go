package models

import "time"

// GuardianStatusActive is assigned to guardians created by import.
const GuardianStatusActive = "ACTIVE"

// Guardian is a parent or legal guardian. One guardian may be linked to many students.
type Guardian struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Phone     string    `db:"phone" json:"phone"`
	Gender    Gender    `db:"gender" json:"gender"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// GuardianStudent links a guardian to a student with a free-text relationship label.
type GuardianStudent struct {
	ID           string    `db:"id" json:"id"`
	GuardianID   string    `db:"guardian_id" json:"guardian_id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	Relationship string    `db:"relationship" json:"relationship"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
