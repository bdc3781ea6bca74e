package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/dept-portal-api/internal/models"
	appErrors "github.com/noah-isme/dept-portal-api/pkg/errors"
	"github.com/noah-isme/dept-portal-api/pkg/export"
)

type exportMarkSource interface {
	ListFiltered(ctx context.Context, filter models.MarkFilter) ([]models.MarkEntry, error)
}

type exportStudentSource interface {
	ListFiltered(ctx context.Context, filter models.StudentFilter) ([]models.Student, error)
}

// ExportResult is a rendered document ready for download.
type ExportResult struct {
	Filename    string
	ContentType string
	Body        []byte
	Rows        int
}

// ExportService renders marks sheets and student rosters.
type ExportService struct {
	marks    exportMarkSource
	students exportStudentSource
	logger   *zap.Logger
	now      func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(marks exportMarkSource, students exportStudentSource, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{marks: marks, students: students, logger: logger, now: time.Now}
}

// Marks renders the marks accepted by filter, ordered by subject, exam and
// roll number.
func (s *ExportService) Marks(ctx context.Context, filter models.MarkFilter, format export.Format) (*ExportResult, error) {
	marks, err := s.marks.ListFiltered(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load marks")
	}
	sort.SliceStable(marks, func(i, j int) bool {
		a, b := marks[i], marks[j]
		if a.SubjectCode != b.SubjectCode {
			return a.SubjectCode < b.SubjectCode
		}
		if a.ExamType != b.ExamType {
			return a.ExamType < b.ExamType
		}
		return a.RollNumber < b.RollNumber
	})

	table := export.Table{
		Title:   markSheetTitle(filter),
		Headers: []string{"Roll No", "Student", "Subject", "Exam", "Marks", "Max", "Status", "Entered By"},
	}
	for _, m := range marks {
		subject := m.SubjectCode
		if m.SubjectName != "" {
			subject = m.SubjectCode + " " + m.SubjectName
		}
		table.AddRow(m.RollNumber, m.StudentName, subject, m.ExamType,
			formatScore(m.Marks), formatScore(m.MaxMarks), string(m.Status), m.EnteredBy)
	}
	return s.render(table, format, "marks", filter.Batch, filter.SubjectCode)
}

// Students renders the roster accepted by filter with a closing summary row.
func (s *ExportService) Students(ctx context.Context, filter models.StudentFilter, format export.Format) (*ExportResult, error) {
	students, err := s.students.ListFiltered(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load students")
	}
	sort.SliceStable(students, func(i, j int) bool { return students[i].RollNumber < students[j].RollNumber })

	title := "Student Roster"
	if filter.Batch != "" {
		title = fmt.Sprintf("Student Roster %s", filter.Batch)
	}
	table := export.Table{
		Title:   title,
		Headers: []string{"Roll No", "Name", "Batch", "Section", "Semester", "Status", "Attendance (%)", "CGPA"},
	}
	for _, st := range students {
		table.AddRow(st.RollNumber, st.Name, st.Batch, st.Section, strconv.Itoa(st.Semester),
			string(st.Status), fmt.Sprintf("%.2f", st.Attendance), fmt.Sprintf("%.2f", st.CGPA))
	}
	if len(students) > 0 {
		attendance, cgpa := averages(students)
		table.AddRow("", fmt.Sprintf("Average of %d", len(students)), "", "", "", "",
			fmt.Sprintf("%.2f", attendance), fmt.Sprintf("%.2f", cgpa))
	}
	return s.render(table, format, "students", filter.Batch, filter.Section)
}

func (s *ExportService) render(table export.Table, format export.Format, kind string, parts ...string) (*ExportResult, error) {
	renderer, err := export.For(format)
	if err != nil {
		return nil, appErrors.Invalid(err, err.Error())
	}
	body, err := renderer.Render(table)
	if err != nil {
		return nil, appErrors.Internal(err, fmt.Sprintf("failed to render %s export", kind))
	}
	s.logger.Debug("export rendered", zap.String("kind", kind), zap.String("format", string(format)), zap.Int("rows", len(table.Rows)))
	return &ExportResult{
		Filename:    s.buildFilename(kind, format, parts...),
		ContentType: format.ContentType(),
		Body:        body,
		Rows:        len(table.Rows),
	}, nil
}

func (s *ExportService) buildFilename(kind string, format export.Format, parts ...string) string {
	name := kind
	for _, part := range parts {
		if part != "" {
			name += "_" + sanitizeFilename(part)
		}
	}
	return fmt.Sprintf("%s_%s.%s", name, s.now().UTC().Format("20060102_150405"), format)
}

func sanitizeFilename(raw string) string {
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", `"`, "")
	result := replacer.Replace(raw)
	if len(result) > 60 {
		return result[:60]
	}
	return result
}

func markSheetTitle(filter models.MarkFilter) string {
	parts := []string{"Marks Sheet"}
	for _, p := range []string{filter.Batch, filter.Section, filter.SubjectCode, filter.ExamType} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func averages(students []models.Student) (attendance, cgpa float64) {
	for _, st := range students {
		attendance += st.Attendance
		cgpa += st.CGPA
	}
	n := float64(len(students))
	return attendance / n, cgpa / n
}
