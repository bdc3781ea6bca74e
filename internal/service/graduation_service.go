package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/dept-portal-api/internal/models"
	"github.com/noah-isme/dept-portal-api/internal/repository"
	appErrors "github.com/noah-isme/dept-portal-api/pkg/errors"
)

type graduationStudents interface {
	Apply(ctx context.Context, fn func([]models.Student) ([]models.Student, bool, error)) (bool, error)
}

type graduationBatches interface {
	List(ctx context.Context) ([]models.Batch, error)
}

type graduationRecorder interface {
	StudentsGraduated(n int)
}

// GraduationReport summarises one recompute pass.
type GraduationReport struct {
	Checked    int       `json:"checked"`
	Graduated  []string  `json:"graduated"`
	Persisted  bool      `json:"persisted"`
	ComputedAt time.Time `json:"computedAt"`
}

// GraduationService flips students to Graduated once their batch's terminal
// semester has ended. It never demotes a graduated student.
type GraduationService struct {
	students graduationStudents
	batches  graduationBatches
	logger   *zap.Logger
	metrics  graduationRecorder
}

// NewGraduationService constructs a GraduationService.
func NewGraduationService(students graduationStudents, batches graduationBatches, logger *zap.Logger, metrics graduationRecorder) *GraduationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraduationService{students: students, batches: batches, logger: logger, metrics: metrics}
}

// Recompute evaluates every student against now. The student sequence is
// written only when at least one status changed.
func (s *GraduationService) Recompute(ctx context.Context, now time.Time) (GraduationReport, error) {
	report := GraduationReport{Graduated: []string{}, ComputedAt: now.UTC()}

	batches, err := s.batches.List(ctx)
	if err != nil {
		return report, appErrors.Internal(err, "failed to load batches")
	}
	ended := endedBatches(batches, now)

	persisted, err := s.students.Apply(ctx, func(students []models.Student) ([]models.Student, bool, error) {
		report.Checked = len(students)
		for i := range students {
			st := &students[i]
			if st.Status == models.StudentGraduated {
				continue
			}
			if _, ok := ended[st.Batch]; !ok {
				continue
			}
			st.Status = models.StudentGraduated
			report.Graduated = append(report.Graduated, st.ID)
		}
		return students, len(report.Graduated) > 0, nil
	})
	if err != nil {
		return report, appErrors.Internal(err, "failed to update student status")
	}
	report.Persisted = persisted

	if persisted {
		if s.metrics != nil {
			s.metrics.StudentsGraduated(len(report.Graduated))
		}
		s.logger.Info("graduation recompute", zap.Int("checked", report.Checked), zap.Int("graduated", len(report.Graduated)))
	}
	return report, nil
}

// Run recomputes on every tick of interval until ctx is cancelled.
func (s *GraduationService) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			if _, err := s.Recompute(ctx, t); err != nil {
				s.logger.Error("scheduled graduation recompute failed", zap.Error(err))
			}
		}
	}
}

// endedBatches returns the labels of batches whose sem8EndDate is a
// calendar day strictly before now. Unparseable dates never match.
func endedBatches(batches []models.Batch, now time.Time) map[string]struct{} {
	y, m, d := now.UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	out := make(map[string]struct{})
	for label, b := range repository.ByLabel(batches) {
		if b.Sem8EndDate == "" {
			continue
		}
		end, err := time.Parse(models.DateLayout, b.Sem8EndDate)
		if err != nil {
			continue
		}
		if end.Before(today) {
			out[label] = struct{}{}
		}
	}
	return out
}
