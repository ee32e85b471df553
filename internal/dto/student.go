package dto

// CreateStudentRequest holds the payload for registering a roster entry.
type CreateStudentRequest struct {
	Username      string `json:"username" validate:"required,min=3"`
	Password      string `json:"password" validate:"required,min=6"`
	FullName      string `json:"full_name" validate:"required"`
	RollNumber    string `json:"roll_number" validate:"required"`
	Class         string `json:"class" validate:"required"`
	Section       string `json:"section"`
	Phone         string `json:"phone"`
	GuardianPhone string `json:"guardian_phone"`
}

// UpdateStudentRequest holds the payload for editing a roster entry.
type UpdateStudentRequest struct {
	FullName      string `json:"full_name" validate:"required"`
	RollNumber    string `json:"roll_number" validate:"required"`
	Class         string `json:"class" validate:"required"`
	Section       string `json:"section"`
	Phone         string `json:"phone"`
	GuardianPhone string `json:"guardian_phone"`
	Active        *bool  `json:"active"`
}

// ResetStudentSecretRequest replaces a student's login secret.
type ResetStudentSecretRequest struct {
	Password string `json:"password" validate:"required,min=6"`
}
