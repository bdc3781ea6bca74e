package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Store is the substrate handle shared by every repository. Reads never fail
// on malformed documents: a value that does not decode is treated as empty.
type Store struct {
	backend  Backend
	logger   *zap.Logger
	observer Observer

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for decode warnings.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithObserver wires substrate metrics.
func WithObserver(o Observer) Option {
	return func(s *Store) {
		if o != nil {
			s.observer = o
		}
	}
}

// NewStore wraps a backend.
func NewStore(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:  backend,
		logger:   zap.NewNop(),
		observer: nopObserver{},
		locks:    make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Backend exposes the underlying backend.
func (s *Store) Backend() Backend { return s.backend }

// Lock serializes read-modify-write cycles on key within this process and
// returns the matching unlock function.
func (s *Store) Lock(key string) func() {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Exists reports whether key has ever been written.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.load(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Keys lists every key present in the backend.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	start := time.Now()
	keys, err := s.backend.Keys(ctx)
	s.observer.ObserveKV(s.backend.Name(), "keys", time.Since(start), err)
	return keys, err
}

// ReadRaw returns the document at key as loosely typed records, tolerating
// schema drift between releases.
func (s *Store) ReadRaw(ctx context.Context, key string) ([]map[string]any, error) {
	return Read[map[string]any](ctx, s, key)
}

// WriteRaw replaces the document at key with loosely typed records.
func (s *Store) WriteRaw(ctx context.Context, key string, items []map[string]any) error {
	return Write(ctx, s, key, items)
}

// ReadBytes returns the stored JSON exactly as persisted; absent keys yield "[]".
func (s *Store) ReadBytes(ctx context.Context, key string) (json.RawMessage, error) {
	raw, err := s.load(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return json.RawMessage("[]"), nil
	}
	if err != nil {
		return nil, err
	}
	if !json.Valid(raw) {
		s.decodeFailed(key, errors.New("invalid json"))
		return json.RawMessage("[]"), nil
	}
	return json.RawMessage(raw), nil
}

// Read decodes the sequence stored at key. Missing keys and undecodable
// documents both yield an empty, non-nil slice; an element that does not
// decode is skipped and the rest are returned.
func Read[T any](ctx context.Context, s *Store, key string) ([]T, error) {
	recs, err := Load[T](ctx, s, key)
	if err != nil {
		return nil, err
	}
	return recs.Items(), nil
}

// Write serializes items and replaces the document at key.
func Write[T any](ctx context.Context, s *Store, key string, items []T) error {
	if items == nil {
		items = []T{}
	}
	raw, err := encode(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.save(ctx, key, raw)
}

func (s *Store) load(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	raw, err := s.backend.Load(ctx, key)
	observed := err
	if errors.Is(err, ErrNotFound) {
		observed = nil
	}
	s.observer.ObserveKV(s.backend.Name(), "load", time.Since(start), observed)
	return raw, err
}

func (s *Store) save(ctx context.Context, key string, raw []byte) error {
	start := time.Now()
	err := s.backend.Save(ctx, key, raw)
	s.observer.ObserveKV(s.backend.Name(), "save", time.Since(start), err)
	return err
}

func (s *Store) decodeFailed(key string, err error) {
	s.observer.KVDecodeFailure(s.backend.Name(), key)
	s.logger.Warn("discarding undecodable document", zap.String("key", key), zap.Error(err))
}
