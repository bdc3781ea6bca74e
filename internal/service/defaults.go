package service

import (
	"time"

	"github.com/noah-isme/dept-portal-api/internal/models"
)

// StudentDefaults marks new students as active unless a status was given.
func StudentDefaults(s *models.Student) {
	if s.Status == "" {
		s.Status = models.StudentActive
	}
}

// LeaveDefaults opens every new leave request as pending.
func LeaveDefaults(l *models.LeaveRequest) {
	l.Status = models.LeavePending
	l.ProcessedBy = ""
	l.ProcessedDate = ""
}

// AchievementDefaults opens every new achievement as pending review.
func AchievementDefaults(a *models.Achievement) {
	a.Status = models.AchievementPending
	a.Points = 0
	a.Remarks = ""
	a.ReviewedBy = ""
}

// SubmissionDefaults stamps a submission with the time it was received.
func SubmissionDefaults(now func() time.Time) func(*models.Submission) {
	return func(s *models.Submission) {
		if s.SubmittedAt.IsZero() {
			s.SubmittedAt = now().UTC()
		}
		if s.Status == "" {
			s.Status = "submitted"
		}
	}
}

// ResumeDefaults stamps the resume with its last edit time.
func ResumeDefaults(now func() time.Time) func(*models.Resume) {
	return func(r *models.Resume) {
		r.UpdatedAt = now().UTC()
	}
}

// QuizResultDefaults stamps a quiz attempt with the time it was received.
func QuizResultDefaults(now func() time.Time) func(*models.QuizResult) {
	return func(r *models.QuizResult) {
		if r.SubmittedAt.IsZero() {
			r.SubmittedAt = now().UTC()
		}
	}
}
