package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dept-portal-api/internal/kv"
	"github.com/noah-isme/dept-portal-api/internal/models"
)

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestStore() *kv.Store {
	return kv.NewStore(kv.NewMemoryBackend())
}

func TestCollectionAddListRoundTrip(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	students := NewCollection[models.Student](newTestStore(), models.KeyStudents, WithIDGenerator(sequentialIDs()), WithClock(fixedClock(now)))

	added, err := students.Add(ctx, models.Student{Name: "Kavya", RollNumber: "21CS001", Batch: "2021-2025", Status: models.StudentActive, Attendance: 91.5, CGPA: 8.4})
	require.NoError(t, err)
	assert.Equal(t, "id-1", added.ID)
	assert.Equal(t, now, added.CreatedAt)

	list, err := students.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, added, list[0])
}

func TestCollectionAddIgnoresCallerIdentity(t *testing.T) {
	ctx := context.Background()
	circulars := NewCollection[models.Circular](newTestStore(), models.KeyCirculars, WithIDGenerator(sequentialIDs()))

	in := models.Circular{Title: "Exam schedule", Content: "See notice board"}
	in.ID = "client-chosen"
	added, err := circulars.Add(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "id-1", added.ID)
}

func TestCollectionUpdatePreservesOtherFieldsAndRecords(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	students := NewCollection[models.Student](store, models.KeyStudents, WithIDGenerator(sequentialIDs()))

	first, err := students.Add(ctx, models.Student{Name: "Kavya", RollNumber: "21CS001", Batch: "2021-2025", CGPA: 8.4})
	require.NoError(t, err)
	second, err := students.Add(ctx, models.Student{Name: "Rahul", RollNumber: "21CS002", Batch: "2021-2025", CGPA: 7.1})
	require.NoError(t, err)

	before, err := store.ReadRaw(ctx, models.KeyStudents)
	require.NoError(t, err)

	updated, outcome, err := students.Update(ctx, first.ID, func(s *models.Student) error {
		s.Section = "B"
		s.ID = "tampered"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)
	assert.Equal(t, first.ID, updated.ID)
	assert.Equal(t, first.CreatedAt, updated.CreatedAt)

	want := first
	want.Section = "B"
	assert.Equal(t, want, updated)

	after, err := store.ReadRaw(ctx, models.KeyStudents)
	require.NoError(t, err)
	require.Len(t, after, 2)
	assert.Equal(t, before[1], after[1])

	got, ok, err := students.Find(ctx, second.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, second, got)
}

func TestCollectionUpdateMissingIsNotFound(t *testing.T) {
	ctx := context.Background()
	students := NewCollection[models.Student](newTestStore(), models.KeyStudents)

	called := false
	_, outcome, err := students.Update(ctx, "missing", func(*models.Student) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, outcome)
	assert.False(t, called)
}

func TestCollectionUpdateErrorAbortsWrite(t *testing.T) {
	ctx := context.Background()
	students := NewCollection[models.Student](newTestStore(), models.KeyStudents)
	added, err := students.Add(ctx, models.Student{Name: "Kavya"})
	require.NoError(t, err)

	boom := fmt.Errorf("boom")
	_, _, err = students.Update(ctx, added.ID, func(s *models.Student) error {
		s.Name = "changed"
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, _, err := students.Find(ctx, added.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kavya", got.Name)
}

func TestCollectionMerge(t *testing.T) {
	ctx := context.Background()
	students := NewCollection[models.Student](newTestStore(), models.KeyStudents, WithIDGenerator(sequentialIDs()))
	added, err := students.Add(ctx, models.Student{Name: "Kavya", RollNumber: "21CS001", Batch: "2021-2025", Year: 3, CGPA: 8.4})
	require.NoError(t, err)

	merged, outcome, err := students.Merge(ctx, added.ID, map[string]any{
		"section":   "A",
		"cgpa":      8.9,
		"id":        "other",
		"createdAt": "2000-01-01T00:00:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)
	assert.Equal(t, added.ID, merged.ID)
	assert.Equal(t, added.CreatedAt, merged.CreatedAt)
	assert.Equal(t, "A", merged.Section)
	assert.Equal(t, 8.9, merged.CGPA)
	assert.Equal(t, "21CS001", merged.RollNumber)
	assert.Equal(t, 3, merged.Year)
}

func TestCollectionMergeRejectsWrongShape(t *testing.T) {
	ctx := context.Background()
	students := NewCollection[models.Student](newTestStore(), models.KeyStudents)
	added, err := students.Add(ctx, models.Student{Name: "Kavya", Year: 2})
	require.NoError(t, err)

	_, _, err = students.Merge(ctx, added.ID, map[string]any{"year": "third"})
	require.ErrorIs(t, err, ErrInvalidPatch)

	got, _, err := students.Find(ctx, added.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Year)
}

func TestCollectionMergeRunsChecks(t *testing.T) {
	ctx := context.Background()
	students := NewCollection[models.Student](newTestStore(), models.KeyStudents)
	added, err := students.Add(ctx, models.Student{Name: "Kavya"})
	require.NoError(t, err)

	rejected := fmt.Errorf("rejected")
	_, _, err = students.Merge(ctx, added.ID, map[string]any{"cgpa": 12}, func(s *models.Student) error {
		if s.CGPA > 10 {
			return rejected
		}
		return nil
	})
	require.ErrorIs(t, err, rejected)
}

func TestCollectionDelete(t *testing.T) {
	ctx := context.Background()
	faculty := NewCollection[models.Faculty](newTestStore(), models.KeyFaculty)
	a, err := faculty.Add(ctx, models.Faculty{Name: "Dr. Meena", Email: "meena@college.edu"})
	require.NoError(t, err)
	_, err = faculty.Add(ctx, models.Faculty{Name: "Dr. Ravi", Email: "ravi@college.edu"})
	require.NoError(t, err)

	outcome, err := faculty.Delete(ctx, "nonexistent-id")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, outcome)
	list, err := faculty.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	outcome, err = faculty.Delete(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeleted, outcome)
	list, err = faculty.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Dr. Ravi", list[0].Name)
}

func TestCollectionConcurrentAddsKeepEveryRecord(t *testing.T) {
	ctx := context.Background()
	circulars := NewCollection[models.Circular](newTestStore(), models.KeyCirculars)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := circulars.Add(ctx, models.Circular{Title: fmt.Sprintf("notice %d", i), Content: "body"})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	list, err := circulars.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 40)
	seen := map[string]struct{}{}
	for _, c := range list {
		seen[c.ID] = struct{}{}
	}
	assert.Len(t, seen, 40)
}

func TestCollectionApplySkipsUnchangedWrite(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	students := NewCollection[models.Student](store, models.KeyStudents)

	changed, err := students.Apply(ctx, func(items []models.Student) ([]models.Student, bool, error) {
		return items, false, nil
	})
	require.NoError(t, err)
	assert.False(t, changed)

	exists, err := store.Exists(ctx, models.KeyStudents)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "not_found", OutcomeNotFound.String())
	assert.Equal(t, "deleted", OutcomeDeleted.String())
	assert.True(t, OutcomeUnchanged.Found())
	assert.False(t, OutcomeNotFound.Found())
}

func TestCollectionKeepsRecordsThatDoNotDecode(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	stored := `[{"id":"1","name":"Kavya","rollNumber":"21CS001","batch":"2021-2025","year":"3"},` +
		`{"id":"2","name":"Rahul","rollNumber":"21CS002","batch":"2021-2025","createdAt":""},` +
		`{"id":"3","name":"Meena","rollNumber":"21CS003","batch":"2021-2025"}]`
	require.NoError(t, store.Backend().Save(ctx, models.KeyStudents, []byte(stored)))
	students := NewCollection[models.Student](store, models.KeyStudents, WithIDGenerator(sequentialIDs()))

	list, err := students.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "3", list[0].ID)

	_, err = students.Add(ctx, models.Student{Name: "New", RollNumber: "21CS004", Batch: "2021-2025"})
	require.NoError(t, err)
	outcome, err := students.Delete(ctx, "3")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeleted, outcome)

	raw, err := store.Backend().Load(ctx, models.KeyStudents)
	require.NoError(t, err)
	var elems []json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &elems))
	require.Len(t, elems, 3)
	assert.Equal(t, `{"id":"1","name":"Kavya","rollNumber":"21CS001","batch":"2021-2025","year":"3"}`, string(elems[0]))
	assert.Equal(t, `{"id":"2","name":"Rahul","rollNumber":"21CS002","batch":"2021-2025","createdAt":""}`, string(elems[1]))
	assert.Contains(t, string(elems[2]), `"name":"New"`)
}

func TestCollectionUpdateKeepsStoredFieldsUnknownToTheModel(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	first := `{"id":"1","name":"Kavya","rollNumber":"21CS001","batch":"2021-2025","dob":"2003-04-12","parentPhone":"98400 00000"}`
	second := `{"id":"2","name":"Rahul","rollNumber":"21CS002","batch":"2021-2025","section":"A","hostel":"North"}`
	require.NoError(t, store.Backend().Save(ctx, models.KeyStudents, []byte("["+first+",\n "+second+"]")))
	students := NewCollection[models.Student](store, models.KeyStudents)

	_, outcome, err := students.Merge(ctx, "2", map[string]any{"section": "B"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)

	raw, err := store.Backend().Load(ctx, models.KeyStudents)
	require.NoError(t, err)
	var elems []json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &elems))
	require.Len(t, elems, 2)
	assert.Equal(t, first, string(elems[0]))

	var updated map[string]any
	require.NoError(t, json.Unmarshal(elems[1], &updated))
	assert.Equal(t, "B", updated["section"])
	assert.Equal(t, "North", updated["hostel"])
	assert.NotContains(t, updated, "createdAt")

	_, _, err = students.Update(ctx, "2", func(s *models.Student) error {
		s.Section = ""
		return nil
	})
	require.NoError(t, err)
	raw, err = store.Backend().Load(ctx, models.KeyStudents)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &elems))
	updated = nil
	require.NoError(t, json.Unmarshal(elems[1], &updated))
	assert.NotContains(t, updated, "section")
	assert.Equal(t, "North", updated["hostel"])
}
