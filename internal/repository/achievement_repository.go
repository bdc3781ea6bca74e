package repository

import (
	"context"
	"fmt"

	"github.com/noah-isme/dept-portal-api/internal/kv"
	"github.com/noah-isme/dept-portal-api/internal/models"
)

// AchievementRepository stores ECA achievements.
type AchievementRepository struct {
	*Collection[models.Achievement, *models.Achievement]
}

// NewAchievementRepository constructs an AchievementRepository.
func NewAchievementRepository(store *kv.Store, opts ...Option) *AchievementRepository {
	return &AchievementRepository{Collection: NewCollection[models.Achievement](store, models.KeyAchievements, opts...)}
}

// Resolve records the review decision for a pending achievement. Rejected
// achievements always carry zero points.
func (r *AchievementRepository) Resolve(ctx context.Context, id string, status models.AchievementStatus, actor string, points int, remarks string) (models.Achievement, Outcome, error) {
	if !status.Resolution() {
		return models.Achievement{}, OutcomeNotFound, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if points < 0 {
		points = 0
	}
	return r.modify(ctx, id, func(a *models.Achievement) (bool, error) {
		if a.Status != "" && a.Status != models.AchievementPending {
			return false, fmt.Errorf("%w: achievement is %s", ErrAlreadyResolved, a.Status)
		}
		a.Status = status
		a.Points = points
		if status == models.AchievementRejected {
			a.Points = 0
		}
		a.Remarks = remarks
		a.ReviewedBy = actor
		return true, nil
	})
}

// ListByStudent returns the achievements claimed by one student.
func (r *AchievementRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Achievement, error) {
	return r.Filter(ctx, func(a models.Achievement) bool { return a.StudentID == studentID })
}
