package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/noah-isme/dept-portal-api/internal/kv"
	"github.com/noah-isme/dept-portal-api/internal/models"
)

// MarkRepository stores mark entries keyed by (studentId, subjectCode, examType).
type MarkRepository struct {
	*Collection[models.MarkEntry, *models.MarkEntry]
}

// NewMarkRepository constructs a MarkRepository.
func NewMarkRepository(store *kv.Store, opts ...Option) *MarkRepository {
	return &MarkRepository{Collection: NewCollection[models.MarkEntry](store, models.KeyMarks, opts...)}
}

// AddOrUpdate upserts entry by its composite key, merging the fields of
// entry that are set. See Upsert.
func (r *MarkRepository) AddOrUpdate(ctx context.Context, entry models.MarkEntry) (models.MarkEntry, Outcome, error) {
	fields, err := setFields(entry)
	if err != nil {
		return models.MarkEntry{}, OutcomeNotFound, err
	}
	return r.Upsert(ctx, fields)
}

// Upsert finds the mark matching the composite key carried in fields. A
// match gets the remaining fields merged over it and keeps its id,
// createdAt, status and verifiedBy; status moves go through Transition. With
// no match a new record is built from fields and starts as saved unless
// submitted directly. checks run on the resulting record before it is
// written.
func (r *MarkRepository) Upsert(ctx context.Context, fields map[string]any, checks ...func(*models.MarkEntry) error) (models.MarkEntry, Outcome, error) {
	var key models.MarkEntry
	if err := mergeFields(&key, fields); err != nil {
		return models.MarkEntry{}, OutcomeNotFound, err
	}
	if key.StudentID == "" || key.SubjectCode == "" || key.ExamType == "" {
		return models.MarkEntry{}, OutcomeNotFound, fmt.Errorf("%w: studentId, subjectCode and examType are required", ErrInvalidPatch)
	}
	mutable := make(map[string]any, len(fields))
	for k, v := range fields {
		switch k {
		case "status", "verifiedBy", "updatedAt":
		default:
			mutable[k] = v
		}
	}
	check := func(m *models.MarkEntry) error {
		for _, fn := range checks {
			if err := fn(m); err != nil {
				return err
			}
		}
		return nil
	}

	var (
		result  models.MarkEntry
		outcome Outcome
	)
	_, err := r.Apply(ctx, func(items []models.MarkEntry) ([]models.MarkEntry, bool, error) {
		now := r.now().UTC()
		for i := range items {
			if !items[i].SameKey(key) {
				continue
			}
			existing := items[i]
			updated := existing
			if err := mergeFields(&updated, mutable); err != nil {
				return nil, false, err
			}
			updated.Base = existing.Base
			updated.Status = existing.Status
			updated.VerifiedBy = existing.VerifiedBy
			if err := check(&updated); err != nil {
				return nil, false, err
			}
			updated.UpdatedAt = advance(existing.UpdatedAt, now)
			items[i] = updated
			result, outcome = updated, OutcomeUpdated
			return items, true, nil
		}

		entry := key
		switch entry.Status {
		case "":
			entry.Status = models.MarkSaved
		case models.MarkSaved, models.MarkSubmitted:
		default:
			return nil, false, fmt.Errorf("%w: new mark cannot start as %s", ErrInvalidTransition, entry.Status)
		}
		entry.VerifiedBy = ""
		if err := check(&entry); err != nil {
			return nil, false, err
		}
		entry.ID = r.newID()
		entry.CreatedAt = now
		entry.UpdatedAt = now
		result, outcome = entry, OutcomeCreated
		return append(items, entry), true, nil
	})
	if err != nil {
		return models.MarkEntry{}, OutcomeNotFound, err
	}
	return result, outcome, nil
}

// setFields lists the JSON fields of entry that carry a value. Fields
// without omitempty are always listed.
func setFields(entry models.MarkEntry) (map[string]any, error) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("encode mark: %w", err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode mark: %w", err)
	}
	for _, k := range []string{"id", "createdAt", "updatedAt"} {
		delete(fields, k)
	}
	if entry.Status == "" {
		delete(fields, "status")
	}
	return fields, nil
}

// Transition moves the mark with id to status on behalf of actor. Moving to
// the current status is a successful no-op reported as OutcomeUnchanged.
func (r *MarkRepository) Transition(ctx context.Context, id string, status models.MarkStatus, actor string) (models.MarkEntry, Outcome, error) {
	if !status.Valid() {
		return models.MarkEntry{}, OutcomeNotFound, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return r.modify(ctx, id, func(m *models.MarkEntry) (bool, error) {
		current := m.Status
		if current == "" {
			current = models.MarkSaved
		}
		if current == status {
			return false, nil
		}
		if !current.CanTransitionTo(status) {
			return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, status)
		}
		m.Status = status
		if status == models.MarkVerified {
			m.VerifiedBy = actor
		}
		m.UpdatedAt = advance(m.UpdatedAt, r.now().UTC())
		return true, nil
	})
}

// ListFiltered returns marks accepted by filter.
func (r *MarkRepository) ListFiltered(ctx context.Context, filter models.MarkFilter) ([]models.MarkEntry, error) {
	return r.Filter(ctx, filter.Matches)
}

// ListByStudent returns every mark of one student.
func (r *MarkRepository) ListByStudent(ctx context.Context, studentID string) ([]models.MarkEntry, error) {
	return r.ListFiltered(ctx, models.MarkFilter{StudentID: studentID})
}

// ListBySubject returns every mark recorded for one subject.
func (r *MarkRepository) ListBySubject(ctx context.Context, subjectCode string) ([]models.MarkEntry, error) {
	return r.ListFiltered(ctx, models.MarkFilter{SubjectCode: subjectCode})
}

// advance returns now, or the instant right after prev when the clock has
// not moved past it.
func advance(prev, now time.Time) time.Time {
	if now.After(prev) {
		return now
	}
	return prev.Add(time.Nanosecond)
}

// Patch merges fields into the mark with id and refreshes updatedAt. The
// composite key and workflow fields cannot be patched.
func (r *MarkRepository) Patch(ctx context.Context, id string, fields map[string]any, checks ...func(*models.MarkEntry) error) (models.MarkEntry, Outcome, error) {
	for _, locked := range []string{"studentId", "subjectCode", "examType", "status", "verifiedBy", "updatedAt"} {
		if _, ok := fields[locked]; ok {
			return models.MarkEntry{}, OutcomeNotFound, fmt.Errorf("%w: %s cannot be patched", ErrInvalidPatch, locked)
		}
	}
	return r.modify(ctx, id, func(m *models.MarkEntry) (bool, error) {
		if err := mergeFields(m, fields); err != nil {
			return false, err
		}
		for _, check := range checks {
			if err := check(m); err != nil {
				return false, err
			}
		}
		m.UpdatedAt = advance(m.UpdatedAt, r.now().UTC())
		return true, nil
	})
}
