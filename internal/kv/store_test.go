package kv

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type recordingObserver struct {
	mu             sync.Mutex
	ops            []string
	decodeFailures []string
}

func (o *recordingObserver) ObserveKV(_ string, op string, _ time.Duration, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ops = append(o.ops, op)
}

func (o *recordingObserver) KVDecodeFailure(_ string, key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.decodeFailures = append(o.decodeFailures, key)
}

func TestReadMissingKeyReturnsEmpty(t *testing.T) {
	store := NewStore(NewMemoryBackend())

	items, err := Read[record](context.Background(), store, "students")
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestWriteThenRead(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryBackend())

	require.NoError(t, Write(ctx, store, "students", []record{{ID: "1", Name: "Asha"}, {ID: "2", Name: "Bala"}}))

	items, err := Read[record](ctx, store, "students")
	require.NoError(t, err)
	assert.Equal(t, []record{{ID: "1", Name: "Asha"}, {ID: "2", Name: "Bala"}}, items)
}

func TestWriteNilStoresEmptyArray(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	store := NewStore(backend)

	require.NoError(t, Write[record](ctx, store, "marks", nil))

	raw, err := backend.Load(ctx, "marks")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}

func TestReadCorruptDocumentIsEmpty(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	obs := &recordingObserver{}
	store := NewStore(backend, WithObserver(obs))
	require.NoError(t, backend.Save(ctx, "faculty", []byte("{not json")))

	items, err := Read[record](ctx, store, "faculty")
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, []string{"faculty"}, obs.decodeFailures)

	raw, err := store.ReadBytes(ctx, "faculty")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(raw))
}

func TestReadWrongShapeIsEmpty(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	store := NewStore(backend)
	require.NoError(t, backend.Save(ctx, "batches", []byte(`{"id":"1"}`)))

	items, err := Read[record](ctx, store, "batches")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestExists(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryBackend())

	ok, err := store.Exists(ctx, "tutors")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, Write(ctx, store, "tutors", []record{}))
	ok, err = store.Exists(ctx, "tutors")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRawRoundTripKeepsUnknownFields(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryBackend())
	require.NoError(t, store.WriteRaw(ctx, "students", []map[string]any{{"id": "1", "legacy": "x"}}))

	items, err := store.ReadRaw(ctx, "students")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "x", items[0]["legacy"])
}

func TestLockSerializesWriters(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryBackend())
	require.NoError(t, Write(ctx, store, "counter", []int{0}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := store.Lock("counter")
			defer unlock()
			values, err := Read[int](ctx, store, "counter")
			if err != nil || len(values) != 1 {
				return
			}
			_ = Write(ctx, store, "counter", []int{values[0] + 1})
		}()
	}
	wg.Wait()

	values, err := Read[int](ctx, store, "counter")
	require.NoError(t, err)
	assert.Equal(t, []int{50}, values)
}

func TestKeysSorted(t *testing.T) {
	ctx := context.Background()
	obs := &recordingObserver{}
	store := NewStore(NewMemoryBackend(), WithObserver(obs))
	require.NoError(t, Write(ctx, store, "students", []record{}))
	require.NoError(t, Write(ctx, store, "batches", []record{}))

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"batches", "students"}, keys)
	assert.Contains(t, obs.ops, "keys")
}
