package models

import "time"

// Student represents a roster entry. The username doubles as the student's
// login identifier; the secret is stored as a bcrypt hash.
type Student struct {
	ID            string    `db:"id" json:"id"`
	Username      string    `db:"username" json:"username"`
	SecretHash    string    `db:"secret_hash" json:"-"`
	FullName      string    `db:"full_name" json:"full_name"`
	RollNumber    string    `db:"roll_number" json:"roll_number"`
	Class         string    `db:"class" json:"class"`
	Section       string    `db:"section" json:"section"`
	Phone         string    `db:"phone" json:"phone"`
	GuardianPhone string    `db:"guardian_phone" json:"guardian_phone"`
	Active        bool      `db:"active" json:"active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter captures filtering criteria for listing the roster.
type StudentFilter struct {
	Class     string
	Section   string
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
