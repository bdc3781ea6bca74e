package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/dept-portal-api/internal/kv"
	"github.com/noah-isme/dept-portal-api/internal/models"
)

type entityPtr[T any] interface {
	*T
	models.Entity
}

type settings struct {
	newID func() string
	now   func() time.Time
}

// Option customises id and clock sources of a collection.
type Option func(*settings)

// WithIDGenerator overrides the default UUIDv4 id source.
func WithIDGenerator(fn func() string) Option {
	return func(s *settings) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithClock overrides time.Now.
func WithClock(fn func() time.Time) Option {
	return func(s *settings) {
		if fn != nil {
			s.now = fn
		}
	}
}

func newSettings(opts []Option) settings {
	s := settings{newID: uuid.NewString, now: time.Now}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Collection is typed CRUD over the JSON array stored under one key. Every
// mutation holds the key lock for its whole read-modify-write cycle.
type Collection[T any, PT entityPtr[T]] struct {
	store *kv.Store
	key   string
	settings
}

// NewCollection binds T to key.
func NewCollection[T any, PT entityPtr[T]](store *kv.Store, key string, opts ...Option) *Collection[T, PT] {
	return &Collection[T, PT]{store: store, key: key, settings: newSettings(opts)}
}

// Key returns the storage key backing the collection.
func (c *Collection[T, PT]) Key() string { return c.key }

// Now returns the collection clock reading.
func (c *Collection[T, PT]) Now() time.Time { return c.now() }

// List returns every record in stored order.
func (c *Collection[T, PT]) List(ctx context.Context) ([]T, error) {
	items, err := kv.Read[T](ctx, c.store, c.key)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c.key, err)
	}
	return items, nil
}

// Filter returns the records accepted by keep.
func (c *Collection[T, PT]) Filter(ctx context.Context, keep func(T) bool) ([]T, error) {
	items, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out, nil
}

// Find returns the first record with id.
func (c *Collection[T, PT]) Find(ctx context.Context, id string) (T, bool, error) {
	var zero T
	items, err := c.List(ctx)
	if err != nil {
		return zero, false, err
	}
	if idx := indexOf[T, PT](items, id); idx >= 0 {
		return items[idx], true, nil
	}
	return zero, false, nil
}

// Add assigns a fresh id and creation time, appends and persists item.
func (c *Collection[T, PT]) Add(ctx context.Context, item T) (T, error) {
	var zero T
	unlock := c.store.Lock(c.key)
	defer unlock()

	recs, err := kv.Load[T](ctx, c.store, c.key)
	if err != nil {
		return zero, fmt.Errorf("add %s: %w", c.key, err)
	}
	PT(&item).SetID(c.newID())
	PT(&item).SetCreatedAt(c.now().UTC())
	recs.Append(item)
	if err := kv.Save(ctx, c.store, recs); err != nil {
		return zero, fmt.Errorf("add %s: %w", c.key, err)
	}
	return item, nil
}

// Update applies fn to the record with id and persists it. The record keeps
// its id and createdAt whatever fn does; an error from fn aborts the write.
func (c *Collection[T, PT]) Update(ctx context.Context, id string, fn func(*T) error) (T, Outcome, error) {
	return c.modify(ctx, id, func(item *T) (bool, error) {
		if err := fn(item); err != nil {
			return false, err
		}
		return true, nil
	})
}

// Merge overlays fields onto the record with id, one JSON field at a time.
// The id and createdAt fields cannot be patched. checks run on the merged
// record before it is written.
func (c *Collection[T, PT]) Merge(ctx context.Context, id string, fields map[string]any, checks ...func(*T) error) (T, Outcome, error) {
	return c.Update(ctx, id, func(item *T) error {
		if err := mergeFields(item, fields); err != nil {
			return err
		}
		for _, check := range checks {
			if err := check(item); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes the first record with id.
func (c *Collection[T, PT]) Delete(ctx context.Context, id string) (Outcome, error) {
	unlock := c.store.Lock(c.key)
	defer unlock()

	recs, err := kv.Load[T](ctx, c.store, c.key)
	if err != nil {
		return OutcomeNotFound, fmt.Errorf("delete %s: %w", c.key, err)
	}
	idx := indexOf[T, PT](recs.Items(), id)
	if idx < 0 {
		return OutcomeNotFound, nil
	}
	recs.Remove(idx)
	if err := kv.Save(ctx, c.store, recs); err != nil {
		return OutcomeNotFound, fmt.Errorf("delete %s: %w", c.key, err)
	}
	return OutcomeDeleted, nil
}

// Replace makes items the decodable content of the sequence. Records are
// paired with stored ones by id, so fields unknown to T survive, and stored
// elements that never decoded are kept.
func (c *Collection[T, PT]) Replace(ctx context.Context, items []T) error {
	unlock := c.store.Lock(c.key)
	defer unlock()

	recs, err := kv.Load[T](ctx, c.store, c.key)
	if err != nil {
		return fmt.Errorf("replace %s: %w", c.key, err)
	}
	recs.Reconcile(items, idOf[T, PT])
	if err := kv.Save(ctx, c.store, recs); err != nil {
		return fmt.Errorf("replace %s: %w", c.key, err)
	}
	return nil
}

// Apply runs fn over the whole sequence under the key lock and persists the
// result only when fn reports a change. The result is paired with the stored
// records by id as Replace does.
func (c *Collection[T, PT]) Apply(ctx context.Context, fn func([]T) ([]T, bool, error)) (bool, error) {
	unlock := c.store.Lock(c.key)
	defer unlock()

	recs, err := kv.Load[T](ctx, c.store, c.key)
	if err != nil {
		return false, fmt.Errorf("apply %s: %w", c.key, err)
	}
	next, changed, err := fn(recs.Items())
	if err != nil || !changed {
		return false, err
	}
	recs.Reconcile(next, idOf[T, PT])
	if err := kv.Save(ctx, c.store, recs); err != nil {
		return false, fmt.Errorf("apply %s: %w", c.key, err)
	}
	return true, nil
}

// modify locates id and applies fn. fn returning false leaves storage
// untouched and yields OutcomeUnchanged.
func (c *Collection[T, PT]) modify(ctx context.Context, id string, fn func(*T) (bool, error)) (T, Outcome, error) {
	var zero T
	unlock := c.store.Lock(c.key)
	defer unlock()

	recs, err := kv.Load[T](ctx, c.store, c.key)
	if err != nil {
		return zero, OutcomeNotFound, fmt.Errorf("update %s: %w", c.key, err)
	}
	items := recs.Items()
	idx := indexOf[T, PT](items, id)
	if idx < 0 {
		return zero, OutcomeNotFound, nil
	}

	item := items[idx]
	createdAt := PT(&item).GetCreatedAt()
	changed, err := fn(&item)
	if err != nil {
		return zero, OutcomeNotFound, err
	}
	if !changed {
		return items[idx], OutcomeUnchanged, nil
	}
	PT(&item).SetID(id)
	PT(&item).SetCreatedAt(createdAt)
	recs.Set(idx, item)

	if err := kv.Save(ctx, c.store, recs); err != nil {
		return zero, OutcomeNotFound, fmt.Errorf("update %s: %w", c.key, err)
	}
	return item, OutcomeUpdated, nil
}

func idOf[T any, PT entityPtr[T]](item *T) string {
	return PT(item).GetID()
}

func indexOf[T any, PT entityPtr[T]](items []T, id string) int {
	for i := range items {
		if PT(&items[i]).GetID() == id {
			return i
		}
	}
	return -1
}

var protectedFields = map[string]struct{}{"id": {}, "createdAt": {}}

func mergeFields(dst any, fields map[string]any) error {
	raw, err := json.Marshal(dst)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	doc := map[string]any{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	for k, v := range fields {
		if _, ok := protectedFields[k]; ok {
			continue
		}
		doc[k] = v
	}
	merged, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	if err := json.Unmarshal(merged, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	return nil
}
