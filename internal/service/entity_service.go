package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/dept-portal-api/internal/repository"
	appErrors "github.com/noah-isme/dept-portal-api/pkg/errors"
)

type entityRepository[T any] interface {
	List(ctx context.Context) ([]T, error)
	Filter(ctx context.Context, keep func(T) bool) ([]T, error)
	Find(ctx context.Context, id string) (T, bool, error)
	Add(ctx context.Context, item T) (T, error)
	Merge(ctx context.Context, id string, fields map[string]any, checks ...func(*T) error) (T, repository.Outcome, error)
	Delete(ctx context.Context, id string) (repository.Outcome, error)
}

// EntityService exposes validated CRUD over one stored collection.
type EntityService[T any] struct {
	name      string
	repo      entityRepository[T]
	validator *validator.Validate
	logger    *zap.Logger
	defaults  func(*T)
	locked    []string
}

// EntityOption customises an EntityService.
type EntityOption[T any] func(*EntityService[T])

// WithDefaults fills server-owned fields of a record before it is created.
func WithDefaults[T any](fn func(*T)) EntityOption[T] {
	return func(s *EntityService[T]) { s.defaults = fn }
}

// WithLockedFields rejects patches that touch the named fields. Workflow
// fields change only through their dedicated operations.
func WithLockedFields[T any](fields ...string) EntityOption[T] {
	return func(s *EntityService[T]) { s.locked = append(s.locked, fields...) }
}

// NewEntityService constructs an EntityService named after the entity.
func NewEntityService[T any](name string, repo entityRepository[T], validate *validator.Validate, logger *zap.Logger, opts ...EntityOption[T]) *EntityService[T] {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &EntityService[T]{name: name, repo: repo, validator: validate, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the entity name used in messages.
func (s *EntityService[T]) Name() string { return s.name }

// List returns every record accepted by keep; a nil keep returns all.
func (s *EntityService[T]) List(ctx context.Context, keep func(T) bool) ([]T, error) {
	var (
		items []T
		err   error
	)
	if keep == nil {
		items, err = s.repo.List(ctx)
	} else {
		items, err = s.repo.Filter(ctx, keep)
	}
	if err != nil {
		return nil, appErrors.Internal(err, fmt.Sprintf("failed to list %s", s.name))
	}
	return items, nil
}

// Get returns one record or ErrNotFound.
func (s *EntityService[T]) Get(ctx context.Context, id string) (T, error) {
	item, ok, err := s.repo.Find(ctx, id)
	if err != nil {
		return item, appErrors.Internal(err, fmt.Sprintf("failed to load %s", s.name))
	}
	if !ok {
		return item, s.notFound()
	}
	return item, nil
}

// Create validates item, applies defaults and stores it.
func (s *EntityService[T]) Create(ctx context.Context, item T) (T, error) {
	if s.defaults != nil {
		s.defaults(&item)
	}
	if err := s.validator.Struct(item); err != nil {
		return item, appErrors.Invalid(err, fmt.Sprintf("invalid %s payload", s.name))
	}
	created, err := s.repo.Add(ctx, item)
	if err != nil {
		return created, appErrors.Internal(err, fmt.Sprintf("failed to create %s", s.name))
	}
	return created, nil
}

// Patch shallow-merges fields into the record and validates the result.
func (s *EntityService[T]) Patch(ctx context.Context, id string, fields map[string]any) (T, error) {
	for _, name := range s.locked {
		if _, ok := fields[name]; ok {
			var zero T
			return zero, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s cannot be patched", name))
		}
	}
	updated, outcome, err := s.repo.Merge(ctx, id, fields, func(item *T) error {
		return s.validator.Struct(item)
	})
	if err != nil {
		return updated, mapRepositoryError(err, fmt.Sprintf("failed to update %s", s.name))
	}
	if outcome == repository.OutcomeNotFound {
		return updated, s.notFound()
	}
	return updated, nil
}

// Delete removes the record or reports ErrNotFound.
func (s *EntityService[T]) Delete(ctx context.Context, id string) error {
	outcome, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Internal(err, fmt.Sprintf("failed to delete %s", s.name))
	}
	if outcome == repository.OutcomeNotFound {
		return s.notFound()
	}
	return nil
}

func (s *EntityService[T]) notFound() error {
	return appErrors.Clone(appErrors.ErrNotFound, s.name+" not found")
}

// mapRepositoryError translates repository sentinels into API errors.
func mapRepositoryError(err error, fallback string) error {
	var verrs validator.ValidationErrors
	var appErr *appErrors.Error
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.As(err, &verrs):
		return appErrors.Invalid(err, verrs.Error())
	case errors.Is(err, repository.ErrInvalidPatch), errors.Is(err, repository.ErrInvalidStatus):
		return appErrors.Invalid(err, err.Error())
	case errors.Is(err, repository.ErrInvalidTransition):
		return appErrors.Wrap(err, appErrors.ErrInvalidTransition.Code, appErrors.ErrInvalidTransition.Status, err.Error())
	case errors.Is(err, repository.ErrAlreadyResolved):
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, err.Error())
	default:
		return appErrors.Internal(err, fallback)
	}
}
