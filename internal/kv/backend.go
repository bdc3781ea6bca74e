// Package kv is the key/value substrate of the entity store. Every key holds
// one JSON array; writes replace the whole array.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by a Backend when the key has never been written.
var ErrNotFound = errors.New("kv: key not found")

// Backend persists raw JSON documents by key.
type Backend interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	// Load returns the stored bytes or ErrNotFound.
	Load(ctx context.Context, key string) ([]byte, error)
	// Save replaces the value at key.
	Save(ctx context.Context, key string, value []byte) error
	// Keys lists every stored key in ascending order.
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// Observer receives substrate instrumentation.
type Observer interface {
	ObserveKV(backend, op string, duration time.Duration, err error)
	KVDecodeFailure(backend, key string)
}

type nopObserver struct{}

func (nopObserver) ObserveKV(string, string, time.Duration, error) {}
func (nopObserver) KVDecodeFailure(string, string)                 {}
