package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dept-portal-api/internal/kv"
	"github.com/noah-isme/dept-portal-api/internal/models"
	"github.com/noah-isme/dept-portal-api/internal/repository"
	appErrors "github.com/noah-isme/dept-portal-api/pkg/errors"
)

func newAuthFixture(t *testing.T) (*AuthService, *repository.UserRepository) {
	t.Helper()
	users := repository.NewUserRepository(kv.NewStore(kv.NewMemoryBackend()))
	svc := NewAuthService(users, nil, nil, AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, Issuer: "dept-portal"})
	return svc, users
}

func TestAuthEnsureAdminThenLogin(t *testing.T) {
	ctx := context.Background()
	svc, users := newAuthFixture(t)

	created, err := svc.EnsureAdmin(ctx, "hod@college.edu", "changeme123", "")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.EnsureAdmin(ctx, "other@college.edu", "changeme123", "Other")
	require.NoError(t, err)
	assert.False(t, created)

	stored, ok, err := users.FindByEmail(ctx, "hod@college.edu")
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEqual(t, "changeme123", stored.PasswordHash)

	resp, err := svc.Login(ctx, models.LoginRequest{Email: "HOD@college.edu", Password: "changeme123"})
	require.NoError(t, err)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, models.RoleAdmin, resp.User.Role)
	assert.Equal(t, "Administrator", resp.User.Name)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.Equal(t, "dept-portal", claims.Issuer)
}

func TestAuthLoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAuthFixture(t)
	_, err := svc.Register(ctx, RegisterUserRequest{Email: "fac@college.edu", Name: "Meena", Password: "password1", Role: models.RoleFaculty})
	require.NoError(t, err)

	_, err = svc.Login(ctx, models.LoginRequest{Email: "fac@college.edu", Password: "wrong-password"})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))

	_, err = svc.Login(ctx, models.LoginRequest{Email: "nobody@college.edu", Password: "password1"})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))

	_, err = svc.Login(ctx, models.LoginRequest{Email: "not-an-email", Password: "x"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestAuthRegisterConflict(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAuthFixture(t)
	req := RegisterUserRequest{Email: "stu@college.edu", Name: "Kavya", Password: "password1", Role: models.RoleStudent, RefID: "s1"}
	info, err := svc.Register(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "s1", info.RefID)

	_, err = svc.Register(ctx, req)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	req.Email = "x@college.edu"
	req.Role = models.UserRole("dean")
	_, err = svc.Register(ctx, req)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestAuthValidateTokenRejectsExpiredAndForeign(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAuthFixture(t)
	_, err := svc.Register(ctx, RegisterUserRequest{Email: "fac@college.edu", Name: "Meena", Password: "password1", Role: models.RoleFaculty})
	require.NoError(t, err)
	resp, err := svc.Login(ctx, models.LoginRequest{Email: "fac@college.edu", Password: "password1"})
	require.NoError(t, err)

	other := NewAuthService(nil, nil, nil, AuthConfig{AccessTokenSecret: "different"})
	_, err = other.ValidateToken(resp.AccessToken)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.ValidateToken(resp.AccessToken)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}
