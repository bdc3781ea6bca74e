package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/dept-portal-api/internal/models"
	"github.com/noah-isme/dept-portal-api/internal/repository"
	appErrors "github.com/noah-isme/dept-portal-api/pkg/errors"
)

type markRepository interface {
	Upsert(ctx context.Context, fields map[string]any, checks ...func(*models.MarkEntry) error) (models.MarkEntry, repository.Outcome, error)
	Transition(ctx context.Context, id string, status models.MarkStatus, actor string) (models.MarkEntry, repository.Outcome, error)
	Patch(ctx context.Context, id string, fields map[string]any, checks ...func(*models.MarkEntry) error) (models.MarkEntry, repository.Outcome, error)
	ListFiltered(ctx context.Context, filter models.MarkFilter) ([]models.MarkEntry, error)
	Find(ctx context.Context, id string) (models.MarkEntry, bool, error)
	Delete(ctx context.Context, id string) (repository.Outcome, error)
}

// TransitionRequest asks for a workflow status change.
type TransitionRequest struct {
	Status string `json:"status" validate:"required"`
}

// MarkService runs the mark entry and approval workflow.
type MarkService struct {
	repo      markRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMarkService constructs a MarkService.
func NewMarkService(repo markRepository, validate *validator.Validate, logger *zap.Logger) *MarkService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MarkService{repo: repo, validator: validate, logger: logger}
}

// List returns marks accepted by filter.
func (s *MarkService) List(ctx context.Context, filter models.MarkFilter) ([]models.MarkEntry, error) {
	marks, err := s.repo.ListFiltered(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list marks")
	}
	return marks, nil
}

// Get returns one mark entry.
func (s *MarkService) Get(ctx context.Context, id string) (models.MarkEntry, error) {
	m, ok, err := s.repo.Find(ctx, id)
	if err != nil {
		return m, appErrors.Internal(err, "failed to load mark")
	}
	if !ok {
		return m, appErrors.Clone(appErrors.ErrNotFound, "mark not found")
	}
	return m, nil
}

// Upsert records a score by (studentId, subjectCode, examType). Only the
// fields present are written over an existing entry; enteredBy defaults to
// actor. It reports whether a new entry was created.
func (s *MarkService) Upsert(ctx context.Context, fields map[string]any, actor string) (models.MarkEntry, bool, error) {
	if _, ok := fields["enteredBy"]; !ok && actor != "" {
		fields["enteredBy"] = actor
	}
	saved, outcome, err := s.repo.Upsert(ctx, fields, s.checkMark)
	if err != nil {
		return saved, false, mapRepositoryError(err, "failed to save mark")
	}
	return saved, outcome == repository.OutcomeCreated, nil
}

func (s *MarkService) checkMark(m *models.MarkEntry) error {
	if err := s.validator.Struct(m); err != nil {
		return err
	}
	if m.MaxMarks > 0 && m.Marks > m.MaxMarks {
		return appErrors.Clone(appErrors.ErrValidation, "marks exceed maxMarks")
	}
	return nil
}

// Patch edits score fields of an existing entry.
func (s *MarkService) Patch(ctx context.Context, id string, fields map[string]any) (models.MarkEntry, error) {
	updated, outcome, err := s.repo.Patch(ctx, id, fields, s.checkMark)
	if err != nil {
		return updated, mapRepositoryError(err, "failed to update mark")
	}
	if outcome == repository.OutcomeNotFound {
		return updated, appErrors.Clone(appErrors.ErrNotFound, "mark not found")
	}
	return updated, nil
}

// Transition moves a mark through the approval workflow.
func (s *MarkService) Transition(ctx context.Context, id string, status models.MarkStatus, actor string) (models.MarkEntry, error) {
	status = models.MarkStatus(strings.ToLower(strings.TrimSpace(string(status))))
	m, outcome, err := s.repo.Transition(ctx, id, status, actor)
	if err != nil {
		return m, mapRepositoryError(err, "failed to change mark status")
	}
	if outcome == repository.OutcomeNotFound {
		return m, appErrors.Clone(appErrors.ErrNotFound, "mark not found")
	}
	if outcome == repository.OutcomeUpdated {
		s.logger.Info("mark status changed", zap.String("mark_id", id), zap.String("status", string(status)), zap.String("actor", actor))
	}
	return m, nil
}

// Delete removes a mark entry.
func (s *MarkService) Delete(ctx context.Context, id string) error {
	outcome, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Internal(err, "failed to delete mark")
	}
	if outcome == repository.OutcomeNotFound {
		return appErrors.Clone(appErrors.ErrNotFound, "mark not found")
	}
	return nil
}

type leaveResolver interface {
	Resolve(ctx context.Context, id string, status models.LeaveStatus, actor string) (models.LeaveRequest, repository.Outcome, error)
}

// LeaveService resolves leave requests.
type LeaveService struct {
	repo   leaveResolver
	logger *zap.Logger
}

// NewLeaveService constructs a LeaveService.
func NewLeaveService(repo leaveResolver, logger *zap.Logger) *LeaveService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeaveService{repo: repo, logger: logger}
}

// Resolve approves or rejects a pending leave request.
func (s *LeaveService) Resolve(ctx context.Context, id string, status models.LeaveStatus, actor string) (models.LeaveRequest, error) {
	l, outcome, err := s.repo.Resolve(ctx, id, status, actor)
	if err != nil {
		return l, mapRepositoryError(err, "failed to resolve leave request")
	}
	if outcome == repository.OutcomeNotFound {
		return l, appErrors.Clone(appErrors.ErrNotFound, "leave request not found")
	}
	s.logger.Info("leave request resolved", zap.String("leave_id", id), zap.String("status", string(status)), zap.String("actor", actor))
	return l, nil
}

// ResolveAchievementRequest carries a review decision.
type ResolveAchievementRequest struct {
	Status  models.AchievementStatus `json:"status" validate:"required,oneof=approved rejected"`
	Points  int                      `json:"points" validate:"gte=0,lte=100"`
	Remarks string                   `json:"remarks"`
}

type achievementResolver interface {
	Resolve(ctx context.Context, id string, status models.AchievementStatus, actor string, points int, remarks string) (models.Achievement, repository.Outcome, error)
}

// AchievementService reviews ECA achievements.
type AchievementService struct {
	repo      achievementResolver
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAchievementService constructs an AchievementService.
func NewAchievementService(repo achievementResolver, validate *validator.Validate, logger *zap.Logger) *AchievementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AchievementService{repo: repo, validator: validate, logger: logger}
}

// Resolve records the review decision.
func (s *AchievementService) Resolve(ctx context.Context, id string, req ResolveAchievementRequest, actor string) (models.Achievement, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.Achievement{}, appErrors.Invalid(err, "invalid review payload")
	}
	a, outcome, err := s.repo.Resolve(ctx, id, req.Status, actor, req.Points, req.Remarks)
	if err != nil {
		return a, mapRepositoryError(err, "failed to resolve achievement")
	}
	if outcome == repository.OutcomeNotFound {
		return a, appErrors.Clone(appErrors.ErrNotFound, "achievement not found")
	}
	return a, nil
}
