package models

import "time"

// Assignment is coursework published by a faculty member.
type Assignment struct {
	Base
	Title       string  `json:"title" validate:"required"`
	Description string  `json:"description,omitempty"`
	SubjectCode string  `json:"subjectCode,omitempty"`
	SubjectName string  `json:"subjectName,omitempty"`
	FacultyID   string  `json:"facultyId,omitempty"`
	FacultyName string  `json:"facultyName,omitempty"`
	Batch       string  `json:"batch,omitempty"`
	Section     string  `json:"section,omitempty"`
	DueDate     string  `json:"dueDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	MaxMarks    float64 `json:"maxMarks,omitempty" validate:"gte=0"`
}

// Submission is a student's answer to an assignment.
type Submission struct {
	Base
	AssignmentID string    `json:"assignmentId" validate:"required"`
	StudentID    string    `json:"studentId" validate:"required"`
	StudentName  string    `json:"studentName,omitempty"`
	Content      string    `json:"content,omitempty"`
	SubmittedAt  time.Time `json:"submittedAt"`
	Status       string    `json:"status,omitempty" validate:"omitempty,oneof=submitted graded"`
	Grade        *float64  `json:"grade,omitempty"`
	Feedback     string    `json:"feedback,omitempty"`
}

// Resource is study material shared with a batch.
type Resource struct {
	Base
	Title       string `json:"title" validate:"required"`
	Description string `json:"description,omitempty"`
	SubjectCode string `json:"subjectCode,omitempty"`
	Kind        string `json:"kind,omitempty"`
	URL         string `json:"url,omitempty" validate:"omitempty,url"`
	UploadedBy  string `json:"uploadedBy,omitempty"`
	Batch       string `json:"batch,omitempty"`
}

// QuizQuestion is a single multiple-choice question.
type QuizQuestion struct {
	Question string   `json:"question" validate:"required"`
	Options  []string `json:"options" validate:"min=2"`
	Answer   int      `json:"answer" validate:"gte=0"`
}

// Quiz is a timed multiple-choice test.
type Quiz struct {
	Base
	Title           string         `json:"title" validate:"required"`
	SubjectCode     string         `json:"subjectCode,omitempty"`
	FacultyID       string         `json:"facultyId,omitempty"`
	Batch           string         `json:"batch,omitempty"`
	DurationMinutes int            `json:"durationMinutes,omitempty" validate:"gte=0"`
	Questions       []QuizQuestion `json:"questions,omitempty" validate:"dive"`
}

// QuizResult is a student's score on a quiz.
type QuizResult struct {
	Base
	QuizID      string    `json:"quizId" validate:"required"`
	StudentID   string    `json:"studentId" validate:"required"`
	StudentName string    `json:"studentName,omitempty"`
	Score       float64   `json:"score" validate:"gte=0"`
	Total       float64   `json:"total" validate:"gte=0"`
	SubmittedAt time.Time `json:"submittedAt"`
}
