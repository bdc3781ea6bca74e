package repository

import (
	"context"

	"github.com/noah-isme/dept-portal-api/internal/kv"
	"github.com/noah-isme/dept-portal-api/internal/models"
)

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	*Collection[models.Student, *models.Student]
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(store *kv.Store, opts ...Option) *StudentRepository {
	return &StudentRepository{Collection: NewCollection[models.Student](store, models.KeyStudents, opts...)}
}

// ListFiltered returns students matching the provided filters.
func (r *StudentRepository) ListFiltered(ctx context.Context, filter models.StudentFilter) ([]models.Student, error) {
	return r.Filter(ctx, filter.Matches)
}

// ListByBatch returns the students whose batch label equals batch.
func (r *StudentRepository) ListByBatch(ctx context.Context, batch string) ([]models.Student, error) {
	return r.ListFiltered(ctx, models.StudentFilter{Batch: batch})
}
