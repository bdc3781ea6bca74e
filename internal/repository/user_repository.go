package repository

import (
	"context"
	"strings"

	"github.com/noah-isme/dept-portal-api/internal/kv"
	"github.com/noah-isme/dept-portal-api/internal/models"
)

// UserRepository stores login accounts.
type UserRepository struct {
	*Collection[models.User, *models.User]
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(store *kv.Store, opts ...Option) *UserRepository {
	return &UserRepository{Collection: NewCollection[models.User](store, models.KeyUsers, opts...)}
}

// FindByEmail looks an account up by email, ignoring case.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (models.User, bool, error) {
	users, err := r.List(ctx)
	if err != nil {
		return models.User{}, false, err
	}
	for _, u := range users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			return u, true, nil
		}
	}
	return models.User{}, false, nil
}

// CountByRole returns how many accounts hold role.
func (r *UserRepository) CountByRole(ctx context.Context, role models.UserRole) (int, error) {
	users, err := r.Filter(ctx, func(u models.User) bool { return u.Role == role })
	if err != nil {
		return 0, err
	}
	return len(users), nil
}
