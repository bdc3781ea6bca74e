package models

// StudentStatus is the enrolment state of a student.
type StudentStatus string

const (
	StudentActive    StudentStatus = "Active"
	StudentGraduated StudentStatus = "Graduated"
	StudentDismissed StudentStatus = "Dismissed"
	StudentOnLeave   StudentStatus = "On Leave"
)

// Student represents a learner registered in the department.
type Student struct {
	Base
	Name       string        `json:"name" validate:"required"`
	RollNumber string        `json:"rollNumber" validate:"required"`
	Email      string        `json:"email,omitempty" validate:"omitempty,email"`
	Phone      string        `json:"phone,omitempty"`
	Batch      string        `json:"batch" validate:"required"`
	Year       int           `json:"year,omitempty" validate:"gte=0,lte=4"`
	Semester   int           `json:"semester,omitempty" validate:"gte=0,lte=8"`
	Section    string        `json:"section,omitempty"`
	Status     StudentStatus `json:"status" validate:"omitempty,oneof=Active Graduated Dismissed 'On Leave'"`
	Attendance float64       `json:"attendance" validate:"gte=0,lte=100"`
	CGPA       float64       `json:"cgpa" validate:"gte=0,lte=10"`
}

// StudentFilter narrows student listings.
type StudentFilter struct {
	Batch   string
	Section string
	Status  StudentStatus
}

// Matches reports whether s satisfies every non-empty filter field.
func (f StudentFilter) Matches(s Student) bool {
	if f.Batch != "" && s.Batch != f.Batch {
		return false
	}
	if f.Section != "" && s.Section != f.Section {
		return false
	}
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	return true
}
