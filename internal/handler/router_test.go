package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dept-portal-api/internal/kv"
	"github.com/noah-isme/dept-portal-api/internal/models"
	"github.com/noah-isme/dept-portal-api/internal/repository"
	"github.com/noah-isme/dept-portal-api/internal/service"
	"github.com/noah-isme/dept-portal-api/pkg/blob"
)

type testAPI struct {
	t         *testing.T
	engine    *gin.Engine
	bootstrap *service.Bootstrapper
	repos     *repository.Repositories
	tokens    map[models.UserRole]string
}

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *struct{ Code string } `json:"error"`
	Meta  map[string]any         `json:"meta"`
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	ctx := context.Background()
	store := kv.NewStore(kv.NewMemoryBackend())
	repos := repository.New(store)
	validate := validator.New()

	migrations, err := service.DefaultMigrations()
	require.NoError(t, err)
	bootstrap := service.NewBootstrapper(store, models.StorageKeys, migrations, nil, nil)

	auth := service.NewAuthService(repos.Users, validate, nil, service.AuthConfig{AccessTokenSecret: "test-secret", Issuer: "test"})
	signer := blob.NewLinkSigner("test-secret")
	blobs, err := blob.NewFilesystem(t.TempDir(), signer, "/api/v1/backups/download")
	require.NoError(t, err)
	backups := service.NewBackupService(store, blobs, service.BackupConfig{Workers: 1}, nil, nil)
	backups.Start(ctx)
	t.Cleanup(backups.Stop)

	h := Handlers{
		Auth:        NewAuthHandler(auth),
		Marks:       NewMarkHandler(service.NewMarkService(repos.Marks, validate, nil)),
		Workflow:    NewWorkflowHandler(service.NewLeaveService(repos.Leave, nil), service.NewAchievementService(repos.Achievements, validate, nil)),
		Exports:     NewExportHandler(service.NewExportService(repos.Marks, repos.Students, nil)),
		Admin:       NewAdminHandler(bootstrap, service.NewGraduationService(repos.Students, repos.Batches, nil, nil), backups, signer, nil),
		System:      NewMetricsHandler(service.NewMetricsService(), bootstrap, "memory"),
		Collections: Collections(repos, validate, nil, nil),
		Tokens:      auth,
		Readiness:   bootstrap,
	}
	engine := gin.New()
	Register(engine, RouterConfig{APIPrefix: "/api/v1"}, h)

	api := &testAPI{t: t, engine: engine, bootstrap: bootstrap, repos: repos, tokens: map[models.UserRole]string{}}
	return api
}

func (a *testAPI) ready() *testAPI {
	a.t.Helper()
	ctx := context.Background()
	require.NoError(a.t, a.bootstrap.Initialize(ctx))
	auth := service.NewAuthService(a.repos.Users, nil, nil, service.AuthConfig{AccessTokenSecret: "test-secret", Issuer: "test"})
	for _, role := range []models.UserRole{models.RoleAdmin, models.RoleFaculty, models.RoleTutor, models.RoleStudent} {
		email := string(role) + "@dept.test"
		req := service.RegisterUserRequest{Email: email, Name: "The " + string(role), Password: "password123", Role: role}
		if role == models.RoleStudent {
			req.RefID = "s1"
		}
		_, err := auth.Register(ctx, req)
		require.NoError(a.t, err)
		res, err := auth.Login(ctx, models.LoginRequest{Email: email, Password: "password123"})
		require.NoError(a.t, err)
		a.tokens[role] = res.AccessToken
	}
	return a
}

func (a *testAPI) do(role models.UserRole, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token := a.tokens[role]; token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestReadinessGate(t *testing.T) {
	api := newTestAPI(t)

	w, _ := api.do("", http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env := api.do("", http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "NOT_READY", env.Error.Code)

	w, _ = api.do("", http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "a@b.c", "password": "x"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	api.ready()
	w, _ = api.do("", http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLoginAndMe(t *testing.T) {
	api := newTestAPI(t).ready()

	w, env := api.do("", http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "tutor@dept.test", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", env.Error.Code)

	w, _ = api.do("", http.MethodGet, "/api/v1/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env = api.do(models.RoleTutor, http.MethodGet, "/api/v1/auth/me", nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[models.UserInfo](t, env.Data)
	assert.Equal(t, models.RoleTutor, me.Role)
	assert.Equal(t, "tutor@dept.test", me.Email)
}

func TestStudentCollectionEndpoints(t *testing.T) {
	api := newTestAPI(t).ready()
	payload := map[string]any{"name": "Anu", "rollNumber": "21CS001", "batch": "2021-2025", "section": "A", "id": "client-id"}

	w, _ := api.do(models.RoleStudent, http.MethodPost, "/api/v1/students", payload)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env := api.do(models.RoleAdmin, http.MethodPost, "/api/v1/students", payload)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[models.Student](t, env.Data)
	assert.NotEqual(t, "client-id", created.ID)
	assert.Equal(t, models.StudentActive, created.Status)

	w, env = api.do(models.RoleStudent, http.MethodGet, "/api/v1/students?section=A", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Student](t, env.Data), 1)
	assert.EqualValues(t, 1, env.Meta["total"])

	w, env = api.do(models.RoleAdmin, http.MethodPatch, "/api/v1/students/"+created.ID, map[string]any{"cgpa": 9.1})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 9.1, decode[models.Student](t, env.Data).CGPA)

	w, _ = api.do(models.RoleAdmin, http.MethodPatch, "/api/v1/students/"+created.ID, "[1,2]")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = api.do(models.RoleAdmin, http.MethodPatch, "/api/v1/students/"+created.ID, map[string]any{"attendance": 140})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = api.do(models.RoleAdmin, http.MethodDelete, "/api/v1/students/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, env = api.do(models.RoleAdmin, http.MethodGet, "/api/v1/students/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestMarkEndpoints(t *testing.T) {
	api := newTestAPI(t).ready()
	entry := map[string]any{"studentId": "s1", "subjectCode": "CS301", "examType": "CAT1", "marks": 40, "maxMarks": 50, "batch": "2021-2025"}

	w, env := api.do(models.RoleFaculty, http.MethodPut, "/api/v1/marks", entry)
	require.Equal(t, http.StatusCreated, w.Code)
	mark := decode[models.MarkEntry](t, env.Data)
	assert.Equal(t, "The faculty", mark.EnteredBy)

	entry["marks"] = 44
	w, env = api.do(models.RoleFaculty, http.MethodPut, "/api/v1/marks", entry)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, mark.ID, decode[models.MarkEntry](t, env.Data).ID)

	w, _ = api.do(models.RoleStudent, http.MethodPut, "/api/v1/marks", entry)
	assert.Equal(t, http.StatusForbidden, w.Code)

	status := "/api/v1/marks/" + mark.ID + "/status"
	w, env = api.do(models.RoleFaculty, http.MethodPost, status, map[string]string{"status": "verified"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_TRANSITION", env.Error.Code)

	w, _ = api.do(models.RoleFaculty, http.MethodPost, status, map[string]string{"status": "submitted"})
	require.Equal(t, http.StatusOK, w.Code)
	w, env = api.do(models.RoleTutor, http.MethodPost, status, map[string]string{"status": "verified"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "The tutor", decode[models.MarkEntry](t, env.Data).VerifiedBy)

	w, _ = api.do(models.RoleTutor, http.MethodPost, status, map[string]string{"status": "approved"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, env = api.do(models.RoleAdmin, http.MethodPost, status, map[string]string{"status": "approved"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.MarkApproved, decode[models.MarkEntry](t, env.Data).Status)

	w, env = api.do(models.RoleStudent, http.MethodGet, "/api/v1/marks?status=approved&subjectCode=CS301", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.MarkEntry](t, env.Data), 1)

	w, _ = api.do(models.RoleFaculty, http.MethodPost, "/api/v1/marks/missing/status", map[string]string{"status": "submitted"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLeaveResolveEndpoint(t *testing.T) {
	api := newTestAPI(t).ready()
	w, env := api.do(models.RoleStudent, http.MethodPost, "/api/v1/leave-requests", map[string]any{
		"studentId": "s1", "fromDate": "2024-03-01", "toDate": "2024-03-02", "reason": "Medical", "status": "approved",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	leave := decode[models.LeaveRequest](t, env.Data)
	assert.Equal(t, models.LeavePending, leave.Status)

	resolve := "/api/v1/leave-requests/" + leave.ID + "/resolve"
	w, _ = api.do(models.RoleStudent, http.MethodPost, resolve, map[string]string{"status": "approved"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = api.do(models.RoleTutor, http.MethodPatch, "/api/v1/leave-requests/"+leave.ID, map[string]string{"status": "approved"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = api.do(models.RoleTutor, http.MethodPost, resolve, map[string]string{"status": "Approved"})
	require.Equal(t, http.StatusOK, w.Code)
	resolved := decode[models.LeaveRequest](t, env.Data)
	assert.Equal(t, models.LeaveApproved, resolved.Status)
	assert.Equal(t, "The tutor", resolved.ProcessedBy)

	w, env = api.do(models.RoleTutor, http.MethodPost, resolve, map[string]string{"status": "rejected"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONFLICT", env.Error.Code)
}

func TestStudentWritesOwnRecordsOnly(t *testing.T) {
	api := newTestAPI(t).ready()

	w, env := api.do(models.RoleStudent, http.MethodPost, "/api/v1/resumes", map[string]any{"studentId": "s2", "summary": "Not mine"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	w, _ = api.do(models.RoleStudent, http.MethodPost, "/api/v1/achievements", map[string]any{"studentId": "s2", "title": "Hackathon"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env = api.do(models.RoleStudent, http.MethodPost, "/api/v1/resumes", map[string]any{"studentId": "s1", "summary": "Backend developer"})
	require.Equal(t, http.StatusCreated, w.Code)
	own := decode[models.Resume](t, env.Data)

	w, env = api.do(models.RoleAdmin, http.MethodPost, "/api/v1/resumes", map[string]any{"studentId": "s2", "summary": "Data engineer"})
	require.Equal(t, http.StatusCreated, w.Code)
	other := decode[models.Resume](t, env.Data)

	w, _ = api.do(models.RoleStudent, http.MethodPatch, "/api/v1/resumes/"+other.ID, map[string]any{"summary": "Taken over"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = api.do(models.RoleStudent, http.MethodDelete, "/api/v1/resumes/"+other.ID, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = api.do(models.RoleStudent, http.MethodPatch, "/api/v1/resumes/"+own.ID, map[string]any{"studentId": "s2"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = api.do(models.RoleStudent, http.MethodPatch, "/api/v1/resumes/missing", map[string]any{"summary": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = api.do(models.RoleStudent, http.MethodPatch, "/api/v1/resumes/"+own.ID, map[string]any{"summary": "Go developer"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Go developer", decode[models.Resume](t, env.Data).Summary)

	w, env = api.do(models.RoleAdmin, http.MethodGet, "/api/v1/resumes/"+other.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Data engineer", decode[models.Resume](t, env.Data).Summary)

	w, _ = api.do(models.RoleAdmin, http.MethodPatch, "/api/v1/resumes/"+other.ID, map[string]any{"summary": "Edited by admin"})
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = api.do(models.RoleStudent, http.MethodDelete, "/api/v1/resumes/"+own.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestAchievementReviewFieldsLocked(t *testing.T) {
	api := newTestAPI(t).ready()
	w, env := api.do(models.RoleStudent, http.MethodPost, "/api/v1/achievements", map[string]any{
		"studentId": "s1", "title": "Hackathon", "remarks": "self approved", "points": 50,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	a := decode[models.Achievement](t, env.Data)
	assert.Empty(t, a.Remarks)
	assert.Zero(t, a.Points)

	w, _ = api.do(models.RoleTutor, http.MethodPatch, "/api/v1/achievements/"+a.ID, map[string]any{"remarks": "looks fine"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = api.do(models.RoleTutor, http.MethodPatch, "/api/v1/achievements/"+a.ID, map[string]any{"category": "technical"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[models.Achievement](t, env.Data).Remarks)
}

func TestExportEndpoint(t *testing.T) {
	api := newTestAPI(t).ready()
	_, _, err := api.repos.Marks.AddOrUpdate(context.Background(), models.MarkEntry{StudentID: "s1", RollNumber: "21CS001", SubjectCode: "CS301", ExamType: "CAT1", Marks: 40, Batch: "2021-2025"})
	require.NoError(t, err)

	w, _ := api.do(models.RoleFaculty, http.MethodGet, "/api/v1/exports/marks.csv?batch=2021-2025", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "marks_2021-2025_")
	assert.Contains(t, w.Body.String(), "21CS001")

	w, _ = api.do(models.RoleFaculty, http.MethodGet, "/api/v1/exports/students.pdf", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))

	w, _ = api.do(models.RoleFaculty, http.MethodGet, "/api/v1/exports/marks.xlsx", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = api.do(models.RoleFaculty, http.MethodGet, "/api/v1/exports/grades.csv", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = api.do(models.RoleStudent, http.MethodGet, "/api/v1/exports/marks.csv", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminEndpoints(t *testing.T) {
	api := newTestAPI(t).ready()

	w, _ := api.do(models.RoleFaculty, http.MethodGet, "/api/v1/admin/migrations", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env := api.do(models.RoleAdmin, http.MethodGet, "/api/v1/admin/migrations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.MigrationRecord](t, env.Data), 2)
	assert.Equal(t, "READY", env.Meta["state"])

	w, env = api.do(models.RoleAdmin, http.MethodGet, "/api/v1/admin/users", nil)
	require.Equal(t, http.StatusOK, w.Code)
	users := decode[[]map[string]any](t, env.Data)
	require.Len(t, users, 4)
	assert.NotContains(t, users[0], "passwordHash")

	w, env = api.do(models.RoleAdmin, http.MethodPost, "/api/v1/admin/graduation/recompute", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[service.GraduationReport](t, env.Data).Graduated)

	w, env = api.do(models.RoleAdmin, http.MethodPost, "/api/v1/admin/backups", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	ticket := decode[service.BackupTicket](t, env.Data)
	assert.NotEmpty(t, ticket.JobID)

	var items []blob.Info
	require.Eventually(t, func() bool {
		w, env = api.do(models.RoleAdmin, http.MethodGet, "/api/v1/admin/backups", nil)
		if w.Code != http.StatusOK {
			return false
		}
		items = decode[[]blob.Info](t, env.Data)
		return len(items) == 1
	}, 2*time.Second, 20*time.Millisecond)

	w, _ = api.do("", http.MethodGet, items[0].URL, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var snap service.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Contains(t, snap.Keys, models.KeyUsers)

	w, _ = api.do("", http.MethodGet, "/api/v1/backups/download?token=forged", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
