package models

import "time"

// MarkStatus tracks a mark entry through the approval workflow.
type MarkStatus string

const (
	MarkSaved     MarkStatus = "saved"
	MarkSubmitted MarkStatus = "submitted"
	MarkVerified  MarkStatus = "verified"
	MarkApproved  MarkStatus = "approved"
	MarkRejected  MarkStatus = "rejected"
)

// MarkEntry is one student's score for one exam of one subject. The triple
// (StudentID, SubjectCode, ExamType) is unique within the marks sequence.
type MarkEntry struct {
	Base
	StudentID   string     `json:"studentId" validate:"required"`
	StudentName string     `json:"studentName,omitempty"`
	RollNumber  string     `json:"rollNumber,omitempty"`
	SubjectCode string     `json:"subjectCode" validate:"required"`
	SubjectName string     `json:"subjectName,omitempty"`
	ExamType    string     `json:"examType" validate:"required"`
	Marks       float64    `json:"marks" validate:"gte=0"`
	MaxMarks    float64    `json:"maxMarks,omitempty" validate:"gte=0"`
	Semester    int        `json:"semester,omitempty"`
	Batch       string     `json:"batch,omitempty"`
	Section     string     `json:"section,omitempty"`
	EnteredBy   string     `json:"enteredBy,omitempty"`
	Status      MarkStatus `json:"status"`
	VerifiedBy  string     `json:"verifiedBy,omitempty"`
	Remarks     string     `json:"remarks,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// SameKey reports whether both entries share the composite natural key.
func (m MarkEntry) SameKey(other MarkEntry) bool {
	return m.StudentID == other.StudentID && m.SubjectCode == other.SubjectCode && m.ExamType == other.ExamType
}

// MarkFilter narrows mark listings.
type MarkFilter struct {
	StudentID   string
	SubjectCode string
	ExamType    string
	Batch       string
	Section     string
	Status      MarkStatus
}

// Matches reports whether m satisfies every non-empty filter field.
func (f MarkFilter) Matches(m MarkEntry) bool {
	switch {
	case f.StudentID != "" && m.StudentID != f.StudentID:
		return false
	case f.SubjectCode != "" && m.SubjectCode != f.SubjectCode:
		return false
	case f.ExamType != "" && m.ExamType != f.ExamType:
		return false
	case f.Batch != "" && m.Batch != f.Batch:
		return false
	case f.Section != "" && m.Section != f.Section:
		return false
	case f.Status != "" && m.Status != f.Status:
		return false
	}
	return true
}

var markTransitions = map[MarkStatus][]MarkStatus{
	MarkSaved:     {MarkSubmitted},
	MarkSubmitted: {MarkVerified, MarkRejected},
	MarkVerified:  {MarkApproved, MarkRejected},
	MarkRejected:  {MarkSaved, MarkSubmitted},
}

// Valid reports whether s is a known workflow status.
func (s MarkStatus) Valid() bool {
	switch s {
	case MarkSaved, MarkSubmitted, MarkVerified, MarkApproved, MarkRejected:
		return true
	}
	return false
}

// CanTransitionTo reports whether the workflow allows moving from s to next.
// Approved marks are final.
func (s MarkStatus) CanTransitionTo(next MarkStatus) bool {
	for _, allowed := range markTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
