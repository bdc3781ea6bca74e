package repository

import (
	"context"
	"fmt"

	"github.com/noah-isme/dept-portal-api/internal/kv"
	"github.com/noah-isme/dept-portal-api/internal/models"
)

// LeaveRepository stores leave requests.
type LeaveRepository struct {
	*Collection[models.LeaveRequest, *models.LeaveRequest]
}

// NewLeaveRepository constructs a LeaveRepository.
func NewLeaveRepository(store *kv.Store, opts ...Option) *LeaveRepository {
	return &LeaveRepository{Collection: NewCollection[models.LeaveRequest](store, models.KeyLeaveRequests, opts...)}
}

// Resolve approves or rejects a pending request and stamps who processed it
// and on which day.
func (r *LeaveRepository) Resolve(ctx context.Context, id string, status models.LeaveStatus, actor string) (models.LeaveRequest, Outcome, error) {
	if !status.Resolution() {
		return models.LeaveRequest{}, OutcomeNotFound, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return r.modify(ctx, id, func(l *models.LeaveRequest) (bool, error) {
		if l.Status != "" && l.Status != models.LeavePending {
			return false, fmt.Errorf("%w: leave request is %s", ErrAlreadyResolved, l.Status)
		}
		l.Status = status
		l.ProcessedBy = actor
		l.ProcessedDate = r.now().UTC().Format(models.DateLayout)
		return true, nil
	})
}

// ListByStudent returns the requests filed by one student.
func (r *LeaveRepository) ListByStudent(ctx context.Context, studentID string) ([]models.LeaveRequest, error) {
	return r.Filter(ctx, func(l models.LeaveRequest) bool { return l.StudentID == studentID })
}
