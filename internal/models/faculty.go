package models

// Faculty is a teaching staff member.
type Faculty struct {
	Base
	Name        string   `json:"name" validate:"required"`
	Email       string   `json:"email" validate:"required,email"`
	Phone       string   `json:"phone,omitempty"`
	Department  string   `json:"department,omitempty"`
	Designation string   `json:"designation,omitempty"`
	Subjects    []string `json:"subjects,omitempty"`
	Status      string   `json:"status,omitempty" validate:"omitempty,oneof=Active Inactive"`
}

// Tutor assigns a faculty member as the class tutor of a batch section.
type Tutor struct {
	Base
	FacultyID   string `json:"facultyId" validate:"required"`
	FacultyName string `json:"facultyName"`
	Batch       string `json:"batch" validate:"required"`
	Section     string `json:"section,omitempty"`
}
