package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dept-portal-api/internal/kv"
	"github.com/noah-isme/dept-portal-api/internal/models"
	"github.com/noah-isme/dept-portal-api/internal/repository"
)

type countingBackend struct {
	kv.Backend
	saves map[string]int
}

func (c *countingBackend) Save(ctx context.Context, key string, value []byte) error {
	c.saves[key]++
	return c.Backend.Save(ctx, key, value)
}

func newGraduationFixture(t *testing.T) (*GraduationService, *repository.Repositories, *countingBackend) {
	t.Helper()
	backend := &countingBackend{Backend: kv.NewMemoryBackend(), saves: map[string]int{}}
	repos := repository.New(kv.NewStore(backend))
	return NewGraduationService(repos.Students, repos.Batches, nil, nil), repos, backend
}

func TestGraduationScenario(t *testing.T) {
	ctx := context.Background()
	svc, repos, backend := newGraduationFixture(t)

	require.NoError(t, repos.Batches.Replace(ctx, []models.Batch{{Base: models.Base{ID: "1"}, Label: "2021-2025", Sem8EndDate: "2024-05-30"}}))
	student, err := repos.Students.Add(ctx, models.Student{Name: "Kavya", Batch: "2021-2025", Status: models.StudentActive})
	require.NoError(t, err)
	savesBefore := backend.saves[models.KeyStudents]

	report, err := svc.Recompute(ctx, time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, report.Persisted)
	assert.Equal(t, []string{student.ID}, report.Graduated)
	assert.Equal(t, savesBefore+1, backend.saves[models.KeyStudents])

	list, err := repos.Students.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.StudentGraduated, list[0].Status)
}

func TestGraduationSkipsWriteWhenNothingChanges(t *testing.T) {
	ctx := context.Background()
	svc, repos, backend := newGraduationFixture(t)

	require.NoError(t, repos.Batches.Replace(ctx, []models.Batch{
		{Label: "2021-2025", Sem8EndDate: "2025-05-30"},
		{Label: "2022-2026"},
		{Label: "2023-2027", Sem8EndDate: "not a date"},
	}))
	for _, b := range []string{"2021-2025", "2022-2026", "2023-2027", "unknown"} {
		_, err := repos.Students.Add(ctx, models.Student{Name: b, Batch: b, Status: models.StudentActive})
		require.NoError(t, err)
	}
	savesBefore := backend.saves[models.KeyStudents]

	report, err := svc.Recompute(ctx, time.Date(2025, 5, 30, 23, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, report.Persisted)
	assert.Empty(t, report.Graduated)
	assert.Equal(t, 4, report.Checked)
	assert.Equal(t, savesBefore, backend.saves[models.KeyStudents])
}

func TestGraduationIsMonotone(t *testing.T) {
	ctx := context.Background()
	svc, repos, _ := newGraduationFixture(t)

	require.NoError(t, repos.Batches.Replace(ctx, []models.Batch{{Label: "2020-2024", Sem8EndDate: "2024-05-30"}}))
	st, err := repos.Students.Add(ctx, models.Student{Name: "Rahul", Batch: "2020-2024", Status: models.StudentOnLeave})
	require.NoError(t, err)

	now := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	_, err = svc.Recompute(ctx, now)
	require.NoError(t, err)

	require.NoError(t, repos.Batches.Replace(ctx, []models.Batch{{Label: "2020-2024", Sem8EndDate: "2030-05-30"}}))
	report, err := svc.Recompute(ctx, now)
	require.NoError(t, err)
	assert.False(t, report.Persisted)

	got, _, err := repos.Students.Find(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StudentGraduated, got.Status)
}

func TestGraduationComparesCalendarDaysInUTC(t *testing.T) {
	batches := []models.Batch{{Label: "2021-2025", Sem8EndDate: "2024-05-30"}}

	// 02:00 on the 31st in IST is still the 30th in UTC.
	ist := time.FixedZone("IST", 5*60*60+30*60)
	assert.Empty(t, endedBatches(batches, time.Date(2024, 5, 31, 2, 0, 0, 0, ist)))

	// 22:00 on the 30th five hours west of UTC is already the 31st.
	west := time.FixedZone("UTC-5", -5*60*60)
	assert.Contains(t, endedBatches(batches, time.Date(2024, 5, 30, 22, 0, 0, 0, west)), "2021-2025")
}

func TestGraduationRunStopsWithContext(t *testing.T) {
	svc, _, _ := newGraduationFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx, time.Millisecond)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
