package models

import "time"

// AchievementStatus is the review state of an extra-curricular achievement.
type AchievementStatus string

const (
	AchievementPending  AchievementStatus = "pending"
	AchievementApproved AchievementStatus = "approved"
	AchievementRejected AchievementStatus = "rejected"
)

// Achievement is an ECA record claimed by a student and reviewed by staff.
type Achievement struct {
	Base
	StudentID   string            `json:"studentId" validate:"required"`
	StudentName string            `json:"studentName,omitempty"`
	Title       string            `json:"title" validate:"required"`
	Category    string            `json:"category,omitempty"`
	Description string            `json:"description,omitempty"`
	Date        string            `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Status      AchievementStatus `json:"status"`
	Points      int               `json:"points"`
	Remarks     string            `json:"remarks,omitempty"`
	ReviewedBy  string            `json:"reviewedBy,omitempty"`
}

// ResumeProject is a project listed on a resume.
type ResumeProject struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Resume is a student's placement profile.
type Resume struct {
	Base
	StudentID string          `json:"studentId" validate:"required"`
	Summary   string          `json:"summary,omitempty"`
	Skills    []string        `json:"skills,omitempty"`
	Projects  []ResumeProject `json:"projects,omitempty"`
	Education string          `json:"education,omitempty"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Resolution reports whether s is a terminal review decision.
func (s AchievementStatus) Resolution() bool {
	return s == AchievementApproved || s == AchievementRejected
}
