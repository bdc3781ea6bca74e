package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dept-portal-api/internal/models"
)

func mark(studentID, subject, exam string, score float64) models.MarkEntry {
	return models.MarkEntry{StudentID: studentID, SubjectCode: subject, ExamType: exam, Marks: score, MaxMarks: 100, EnteredBy: "fac-1"}
}

func TestMarkAddOrUpdateKeepsOneRecordPerKey(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	repo := NewMarkRepository(newTestStore(), WithIDGenerator(sequentialIDs()), WithClock(fixedClock(now)))

	first, outcome, err := repo.AddOrUpdate(ctx, mark("s1", "CS301", "CAT1", 42))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)
	assert.Equal(t, models.MarkSaved, first.Status)
	assert.Equal(t, now, first.CreatedAt)
	assert.Equal(t, now, first.UpdatedAt)

	second, outcome, err := repo.AddOrUpdate(ctx, mark("s1", "CS301", "CAT1", 47))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))

	_, _, err = repo.AddOrUpdate(ctx, mark("s1", "CS301", "CAT2", 38))
	require.NoError(t, err)

	marks, err := repo.ListByStudent(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, marks, 2)
	assert.Equal(t, 47.0, marks[0].Marks)
}

func TestMarkAddOrUpdateKeepsWorkflowFields(t *testing.T) {
	ctx := context.Background()
	repo := NewMarkRepository(newTestStore())

	created, _, err := repo.AddOrUpdate(ctx, models.MarkEntry{StudentID: "s1", SubjectCode: "CS301", ExamType: "CAT1", Marks: 40, Status: models.MarkSubmitted})
	require.NoError(t, err)
	_, _, err = repo.Transition(ctx, created.ID, models.MarkVerified, "hod")
	require.NoError(t, err)

	entry := mark("s1", "CS301", "CAT1", 44)
	entry.Status = models.MarkApproved
	entry.VerifiedBy = "someone-else"
	updated, _, err := repo.AddOrUpdate(ctx, entry)
	require.NoError(t, err)
	assert.Equal(t, models.MarkVerified, updated.Status)
	assert.Equal(t, "hod", updated.VerifiedBy)
	assert.Equal(t, 44.0, updated.Marks)
}

func TestMarkUpsertMergesOnlySentFields(t *testing.T) {
	ctx := context.Background()
	repo := NewMarkRepository(newTestStore())

	first := mark("s1", "CS301", "CAT1", 40)
	first.MaxMarks = 50
	first.SubjectName = "Compiler Design"
	first.RollNumber = "21CS001"
	first.Remarks = "late script"
	created, _, err := repo.AddOrUpdate(ctx, first)
	require.NoError(t, err)

	updated, outcome, err := repo.Upsert(ctx, map[string]any{
		"studentId": "s1", "subjectCode": "CS301", "examType": "CAT1", "marks": 45,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, 45.0, updated.Marks)
	assert.Equal(t, 50.0, updated.MaxMarks)
	assert.Equal(t, "Compiler Design", updated.SubjectName)
	assert.Equal(t, "21CS001", updated.RollNumber)
	assert.Equal(t, "late script", updated.Remarks)
	assert.Equal(t, "fac-1", updated.EnteredBy)

	cleared, _, err := repo.Upsert(ctx, map[string]any{
		"studentId": "s1", "subjectCode": "CS301", "examType": "CAT1", "remarks": "",
	})
	require.NoError(t, err)
	assert.Empty(t, cleared.Remarks)
	assert.Equal(t, 45.0, cleared.Marks)
}

func TestMarkUpsertValidation(t *testing.T) {
	ctx := context.Background()
	repo := NewMarkRepository(newTestStore())

	_, _, err := repo.Upsert(ctx, map[string]any{"studentId": "s1", "subjectCode": "CS301", "marks": 10})
	require.ErrorIs(t, err, ErrInvalidPatch)

	_, _, err = repo.Upsert(ctx, map[string]any{"studentId": "s1", "subjectCode": "CS301", "examType": "CAT1", "marks": "ten"})
	require.ErrorIs(t, err, ErrInvalidPatch)

	tooHigh := errors.New("too high")
	_, _, err = repo.Upsert(ctx, map[string]any{"studentId": "s1", "subjectCode": "CS301", "examType": "CAT1", "marks": 120},
		func(m *models.MarkEntry) error {
			if m.Marks > 100 {
				return tooHigh
			}
			return nil
		})
	require.ErrorIs(t, err, tooHigh)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMarkAddOrUpdateRejectsAdvancedInitialStatus(t *testing.T) {
	repo := NewMarkRepository(newTestStore())
	entry := mark("s1", "CS301", "CAT1", 40)
	entry.Status = models.MarkApproved

	_, _, err := repo.AddOrUpdate(context.Background(), entry)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestMarkTransitionTable(t *testing.T) {
	cases := []struct {
		from    models.MarkStatus
		to      models.MarkStatus
		allowed bool
	}{
		{models.MarkSaved, models.MarkSubmitted, true},
		{models.MarkSaved, models.MarkVerified, false},
		{models.MarkSaved, models.MarkApproved, false},
		{models.MarkSubmitted, models.MarkVerified, true},
		{models.MarkSubmitted, models.MarkRejected, true},
		{models.MarkSubmitted, models.MarkApproved, false},
		{models.MarkVerified, models.MarkApproved, true},
		{models.MarkVerified, models.MarkRejected, true},
		{models.MarkVerified, models.MarkSaved, false},
		{models.MarkRejected, models.MarkSaved, true},
		{models.MarkRejected, models.MarkSubmitted, true},
		{models.MarkApproved, models.MarkRejected, false},
		{models.MarkApproved, models.MarkSaved, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to))
		})
	}
}

func TestMarkTransition(t *testing.T) {
	ctx := context.Background()
	repo := NewMarkRepository(newTestStore())
	created, _, err := repo.AddOrUpdate(ctx, mark("s1", "CS301", "CAT1", 40))
	require.NoError(t, err)

	submitted, outcome, err := repo.Transition(ctx, created.ID, models.MarkSubmitted, "fac-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)
	assert.Empty(t, submitted.VerifiedBy)
	assert.True(t, submitted.UpdatedAt.After(created.UpdatedAt))

	_, outcome, err = repo.Transition(ctx, created.ID, models.MarkSubmitted, "fac-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, outcome)

	_, _, err = repo.Transition(ctx, created.ID, models.MarkApproved, "hod")
	require.ErrorIs(t, err, ErrInvalidTransition)

	verified, _, err := repo.Transition(ctx, created.ID, models.MarkVerified, "tutor-9")
	require.NoError(t, err)
	assert.Equal(t, "tutor-9", verified.VerifiedBy)

	approved, _, err := repo.Transition(ctx, created.ID, models.MarkApproved, "hod")
	require.NoError(t, err)
	assert.Equal(t, models.MarkApproved, approved.Status)
	assert.Equal(t, "tutor-9", approved.VerifiedBy)
}

func TestMarkTransitionMissingAndUnknown(t *testing.T) {
	ctx := context.Background()
	repo := NewMarkRepository(newTestStore())

	_, outcome, err := repo.Transition(ctx, "missing", models.MarkSubmitted, "fac-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, outcome)

	_, _, err = repo.Transition(ctx, "missing", models.MarkStatus("graded"), "fac-1")
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestMarkListFiltered(t *testing.T) {
	ctx := context.Background()
	repo := NewMarkRepository(newTestStore())
	for _, m := range []models.MarkEntry{
		{StudentID: "s1", SubjectCode: "CS301", ExamType: "CAT1", Batch: "2021-2025"},
		{StudentID: "s2", SubjectCode: "CS301", ExamType: "CAT1", Batch: "2021-2025"},
		{StudentID: "s1", SubjectCode: "CS302", ExamType: "CAT1", Batch: "2021-2025"},
		{StudentID: "s3", SubjectCode: "CS301", ExamType: "CAT1", Batch: "2022-2026"},
	} {
		_, _, err := repo.AddOrUpdate(ctx, m)
		require.NoError(t, err)
	}

	bySubject, err := repo.ListBySubject(ctx, "CS301")
	require.NoError(t, err)
	assert.Len(t, bySubject, 3)

	filtered, err := repo.ListFiltered(ctx, models.MarkFilter{SubjectCode: "CS301", Batch: "2021-2025"})
	require.NoError(t, err)
	assert.Len(t, filtered, 2)
}

func TestMarkPatch(t *testing.T) {
	ctx := context.Background()
	repo := NewMarkRepository(newTestStore())
	created, _, err := repo.AddOrUpdate(ctx, mark("s1", "CS301", "CAT1", 40))
	require.NoError(t, err)

	patched, outcome, err := repo.Patch(ctx, created.ID, map[string]any{"marks": 45, "remarks": "recounted"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)
	assert.Equal(t, 45.0, patched.Marks)
	assert.Equal(t, "recounted", patched.Remarks)
	assert.True(t, patched.UpdatedAt.After(created.UpdatedAt))

	_, _, err = repo.Patch(ctx, created.ID, map[string]any{"status": "approved"})
	require.ErrorIs(t, err, ErrInvalidPatch)

	_, outcome, err = repo.Patch(ctx, "missing", map[string]any{"marks": 1})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, outcome)
}
