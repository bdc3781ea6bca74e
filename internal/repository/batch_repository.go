package repository

import (
	"context"

	"github.com/noah-isme/dept-portal-api/internal/kv"
	"github.com/noah-isme/dept-portal-api/internal/models"
)

// BatchRepository stores batches with their classes and sections.
type BatchRepository struct {
	*Collection[models.Batch, *models.Batch]
}

// NewBatchRepository constructs a BatchRepository.
func NewBatchRepository(store *kv.Store, opts ...Option) *BatchRepository {
	return &BatchRepository{Collection: NewCollection[models.Batch](store, models.KeyBatches, opts...)}
}

// FindByLabel returns the first batch whose canonical label equals label.
func (r *BatchRepository) FindByLabel(ctx context.Context, label string) (models.Batch, bool, error) {
	batches, err := r.List(ctx)
	if err != nil {
		return models.Batch{}, false, err
	}
	for _, b := range batches {
		if b.Label == label {
			return b, true, nil
		}
	}
	return models.Batch{}, false, nil
}

// ByLabel indexes batches by label; the first batch wins on duplicates.
func ByLabel(batches []models.Batch) map[string]models.Batch {
	out := make(map[string]models.Batch, len(batches))
	for _, b := range batches {
		if _, ok := out[b.Label]; !ok && b.Label != "" {
			out[b.Label] = b
		}
	}
	return out
}
