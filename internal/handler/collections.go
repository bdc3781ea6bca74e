package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/dept-portal-api/internal/models"
	"github.com/noah-isme/dept-portal-api/internal/repository"
	"github.com/noah-isme/dept-portal-api/internal/service"
)

var (
	academic = []models.UserRole{models.RoleFaculty}
	staff    = []models.UserRole{models.RoleFaculty, models.RoleTutor}
	students = []models.UserRole{models.RoleStudent}
	tutors   = []models.UserRole{models.RoleTutor}
)

func route[T any](path string, svc *service.EntityService[T], filter QueryFilter[T], create, modify []models.UserRole) CollectionRoute {
	return CollectionRoute{Path: path, Handler: NewEntityHandler(svc, filter), Create: create, Modify: modify}
}

// studentRoute serves a collection whose records belong to one student each.
func studentRoute[T any](path string, svc *service.EntityService[T], filter QueryFilter[T], create, modify []models.UserRole, studentID func(T) string) CollectionRoute {
	h := NewEntityHandler(svc, filter).OwnedBy(Owner[T]{Field: "studentId", Of: studentID})
	return CollectionRoute{Path: path, Handler: h, Create: create, Modify: modify}
}

// Collections builds the CRUD routes of every generic collection. Marks are
// served by MarkHandler.
func Collections(repos *repository.Repositories, validate *validator.Validate, logger *zap.Logger, now func() time.Time) []CollectionRoute {
	if now == nil {
		now = time.Now
	}
	return []CollectionRoute{
		route("students",
			service.NewEntityService[models.Student]("student", repos.Students, validate, logger, service.WithDefaults(service.StudentDefaults)),
			func(c *gin.Context) func(models.Student) bool {
				f := studentFilterFromQuery(c)
				if f == (models.StudentFilter{}) {
					return nil
				}
				return f.Matches
			}, nil, nil),
		route("faculty",
			service.NewEntityService[models.Faculty]("faculty", repos.Faculty, validate, logger),
			FieldFilter(map[string]func(models.Faculty) string{
				"department": func(f models.Faculty) string { return f.Department },
				"status":     func(f models.Faculty) string { return f.Status },
			}), nil, nil),
		route("tutors",
			service.NewEntityService[models.Tutor]("tutor", repos.Tutors, validate, logger),
			FieldFilter(map[string]func(models.Tutor) string{
				"facultyId": func(t models.Tutor) string { return t.FacultyID },
				"batch":     func(t models.Tutor) string { return t.Batch },
				"section":   func(t models.Tutor) string { return t.Section },
			}), nil, nil),
		route("batches",
			service.NewEntityService[models.Batch]("batch", repos.Batches, validate, logger),
			FieldFilter(map[string]func(models.Batch) string{
				"label":      func(b models.Batch) string { return b.Label },
				"department": func(b models.Batch) string { return b.Department },
			}), nil, nil),
		route("timetable",
			service.NewEntityService[models.TimetableSlot]("timetable slot", repos.Timetable, validate, logger),
			FieldFilter(map[string]func(models.TimetableSlot) string{
				"batch":     func(s models.TimetableSlot) string { return s.Batch },
				"section":   func(s models.TimetableSlot) string { return s.Section },
				"day":       func(s models.TimetableSlot) string { return s.Day },
				"facultyId": func(s models.TimetableSlot) string { return s.FacultyID },
			}), academic, academic),
		route("assignments",
			service.NewEntityService[models.Assignment]("assignment", repos.Assignments, validate, logger),
			FieldFilter(map[string]func(models.Assignment) string{
				"batch":       func(a models.Assignment) string { return a.Batch },
				"subjectCode": func(a models.Assignment) string { return a.SubjectCode },
				"facultyId":   func(a models.Assignment) string { return a.FacultyID },
			}), academic, academic),
		studentRoute("submissions",
			service.NewEntityService[models.Submission]("submission", repos.Submissions, validate, logger, service.WithDefaults(service.SubmissionDefaults(now))),
			FieldFilter(map[string]func(models.Submission) string{
				"assignmentId": func(s models.Submission) string { return s.AssignmentID },
				"studentId":    func(s models.Submission) string { return s.StudentID },
				"status":       func(s models.Submission) string { return s.Status },
			}), students, academic, func(s models.Submission) string { return s.StudentID }),
		route("resources",
			service.NewEntityService[models.Resource]("resource", repos.Resources, validate, logger),
			FieldFilter(map[string]func(models.Resource) string{
				"batch":       func(r models.Resource) string { return r.Batch },
				"subjectCode": func(r models.Resource) string { return r.SubjectCode },
			}), academic, academic),
		route("circulars",
			service.NewEntityService[models.Circular]("circular", repos.Circulars, validate, logger),
			FieldFilter(map[string]func(models.Circular) string{
				"audience": func(n models.Circular) string { return n.Audience },
				"priority": func(n models.Circular) string { return n.Priority },
			}), staff, staff),
		studentRoute("leave-requests",
			service.NewEntityService[models.LeaveRequest]("leave request", repos.Leave, validate, logger,
				service.WithDefaults(service.LeaveDefaults),
				service.WithLockedFields[models.LeaveRequest]("status", "processedBy", "processedDate")),
			FieldFilter(map[string]func(models.LeaveRequest) string{
				"studentId": func(l models.LeaveRequest) string { return l.StudentID },
				"status":    func(l models.LeaveRequest) string { return string(l.Status) },
			}), students, tutors, func(l models.LeaveRequest) string { return l.StudentID }),
		route("quizzes",
			service.NewEntityService[models.Quiz]("quiz", repos.Quizzes, validate, logger),
			FieldFilter(map[string]func(models.Quiz) string{
				"batch":       func(q models.Quiz) string { return q.Batch },
				"subjectCode": func(q models.Quiz) string { return q.SubjectCode },
			}), academic, academic),
		studentRoute("quiz-results",
			service.NewEntityService[models.QuizResult]("quiz result", repos.QuizResults, validate, logger, service.WithDefaults(service.QuizResultDefaults(now))),
			FieldFilter(map[string]func(models.QuizResult) string{
				"quizId":    func(r models.QuizResult) string { return r.QuizID },
				"studentId": func(r models.QuizResult) string { return r.StudentID },
			}), students, academic, func(r models.QuizResult) string { return r.StudentID }),
		studentRoute("achievements",
			service.NewEntityService[models.Achievement]("achievement", repos.Achievements, validate, logger,
				service.WithDefaults(service.AchievementDefaults),
				service.WithLockedFields[models.Achievement]("status", "points", "reviewedBy", "remarks")),
			FieldFilter(map[string]func(models.Achievement) string{
				"studentId": func(a models.Achievement) string { return a.StudentID },
				"status":    func(a models.Achievement) string { return string(a.Status) },
				"category":  func(a models.Achievement) string { return a.Category },
			}), students, tutors, func(a models.Achievement) string { return a.StudentID }),
		studentRoute("resumes",
			service.NewEntityService[models.Resume]("resume", repos.Resumes, validate, logger, service.WithDefaults(service.ResumeDefaults(now))),
			FieldFilter(map[string]func(models.Resume) string{
				"studentId": func(r models.Resume) string { return r.StudentID },
			}), students, students, func(r models.Resume) string { return r.StudentID }),
	}
}
