package models

// TimetableSlot places a subject and faculty member in one period of a day.
type TimetableSlot struct {
	Base
	Batch       string `json:"batch" validate:"required"`
	Section     string `json:"section,omitempty"`
	Day         string `json:"day" validate:"required,oneof=Monday Tuesday Wednesday Thursday Friday Saturday"`
	Period      int    `json:"period" validate:"gte=1,lte=10"`
	StartTime   string `json:"startTime,omitempty"`
	EndTime     string `json:"endTime,omitempty"`
	SubjectCode string `json:"subjectCode,omitempty"`
	SubjectName string `json:"subjectName,omitempty"`
	FacultyID   string `json:"facultyId,omitempty"`
	FacultyName string `json:"facultyName,omitempty"`
	Room        string `json:"room,omitempty"`
}
