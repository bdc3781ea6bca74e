package models

// Storage keys. Each key holds the full JSON array of one entity type;
// renaming a key orphans the data stored under the old name.
const (
	KeyStudents         = "students"
	KeyFaculty          = "faculty"
	KeyTutors           = "tutors"
	KeyBatches          = "batches"
	KeyMarks            = "marks"
	KeyTimetable        = "timetable"
	KeyAssignments      = "assignments"
	KeySubmissions      = "submissions"
	KeyResources        = "resources"
	KeyCirculars        = "circulars"
	KeyLeaveRequests    = "leaveRequests"
	KeyQuizzes          = "quizzes"
	KeyQuizResults      = "quizResults"
	KeyAchievements     = "achievements"
	KeyResumes          = "resumes"
	KeyUsers            = "users"
	KeySchemaMigrations = "schemaMigrations"
)

// StorageKeys lists every key seeded at initialization.
var StorageKeys = []string{
	KeyStudents,
	KeyFaculty,
	KeyTutors,
	KeyBatches,
	KeyMarks,
	KeyTimetable,
	KeyAssignments,
	KeySubmissions,
	KeyResources,
	KeyCirculars,
	KeyLeaveRequests,
	KeyQuizzes,
	KeyQuizResults,
	KeyAchievements,
	KeyResumes,
	KeyUsers,
	KeySchemaMigrations,
}
