package repository

import (
	"github.com/noah-isme/dept-portal-api/internal/kv"
	"github.com/noah-isme/dept-portal-api/internal/models"
)

// Repositories groups the typed collection of every stored entity.
type Repositories struct {
	Students     *StudentRepository
	Faculty      *Collection[models.Faculty, *models.Faculty]
	Tutors       *Collection[models.Tutor, *models.Tutor]
	Batches      *BatchRepository
	Marks        *MarkRepository
	Timetable    *Collection[models.TimetableSlot, *models.TimetableSlot]
	Assignments  *Collection[models.Assignment, *models.Assignment]
	Submissions  *Collection[models.Submission, *models.Submission]
	Resources    *Collection[models.Resource, *models.Resource]
	Circulars    *Collection[models.Circular, *models.Circular]
	Leave        *LeaveRepository
	Quizzes      *Collection[models.Quiz, *models.Quiz]
	QuizResults  *Collection[models.QuizResult, *models.QuizResult]
	Achievements *AchievementRepository
	Resumes      *Collection[models.Resume, *models.Resume]
	Users        *UserRepository
}

// New wires every repository against one store.
func New(store *kv.Store, opts ...Option) *Repositories {
	return &Repositories{
		Students:     NewStudentRepository(store, opts...),
		Faculty:      NewCollection[models.Faculty](store, models.KeyFaculty, opts...),
		Tutors:       NewCollection[models.Tutor](store, models.KeyTutors, opts...),
		Batches:      NewBatchRepository(store, opts...),
		Marks:        NewMarkRepository(store, opts...),
		Timetable:    NewCollection[models.TimetableSlot](store, models.KeyTimetable, opts...),
		Assignments:  NewCollection[models.Assignment](store, models.KeyAssignments, opts...),
		Submissions:  NewCollection[models.Submission](store, models.KeySubmissions, opts...),
		Resources:    NewCollection[models.Resource](store, models.KeyResources, opts...),
		Circulars:    NewCollection[models.Circular](store, models.KeyCirculars, opts...),
		Leave:        NewLeaveRepository(store, opts...),
		Quizzes:      NewCollection[models.Quiz](store, models.KeyQuizzes, opts...),
		QuizResults:  NewCollection[models.QuizResult](store, models.KeyQuizResults, opts...),
		Achievements: NewAchievementRepository(store, opts...),
		Resumes:      NewCollection[models.Resume](store, models.KeyResumes, opts...),
		Users:        NewUserRepository(store, opts...),
	}
}
