package kv

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Records is a decoded sequence that remembers the stored bytes of every
// element. Elements that do not decode as T stay hidden from Items but are
// written back untouched by Save, and elements whose decoded value did not
// change keep their exact stored bytes.
type Records[T any] struct {
	key     string
	entries []entry[T]
}

type entry[T any] struct {
	raw     json.RawMessage
	base    []byte
	item    T
	decoded bool
}

// Load reads key as a sequence of T, decoding each element on its own. A
// missing key or a document that is not a JSON array yields an empty set.
func Load[T any](ctx context.Context, s *Store, key string) (*Records[T], error) {
	recs := &Records[T]{key: key}
	raw, err := s.load(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return recs, nil
	}
	if err != nil {
		return nil, err
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		s.decodeFailed(key, err)
		return recs, nil
	}
	recs.entries = make([]entry[T], 0, len(elems))
	for i, elem := range elems {
		e := entry[T]{raw: elem}
		if err := json.Unmarshal(elem, &e.item); err != nil {
			s.decodeFailed(key, fmt.Errorf("element %d: %w", i, err))
		} else if base, err := encode(e.item); err == nil {
			e.base = base
			e.decoded = true
		}
		recs.entries = append(recs.entries, e)
	}
	return recs, nil
}

// Key returns the storage key the records were loaded from.
func (r *Records[T]) Key() string { return r.key }

// Items returns the decoded elements in stored order.
func (r *Records[T]) Items() []T {
	out := make([]T, 0, len(r.entries))
	for _, e := range r.entries {
		if e.decoded {
			out = append(out, e.item)
		}
	}
	return out
}

// Skipped counts the elements that could not be decoded.
func (r *Records[T]) Skipped() int {
	n := 0
	for _, e := range r.entries {
		if !e.decoded {
			n++
		}
	}
	return n
}

// Set replaces the i-th decoded element.
func (r *Records[T]) Set(i int, item T) {
	if pos := r.position(i); pos >= 0 {
		r.entries[pos].item = item
	}
}

// Remove drops the i-th decoded element.
func (r *Records[T]) Remove(i int) {
	if pos := r.position(i); pos >= 0 {
		r.entries = append(r.entries[:pos], r.entries[pos+1:]...)
	}
}

// Append adds a new element at the end.
func (r *Records[T]) Append(item T) {
	r.entries = append(r.entries, entry[T]{item: item, decoded: true})
}

// Reconcile makes next the decoded content of the sequence. Elements are
// paired with stored ones by id: paired elements keep their position, stored
// elements without a partner are dropped, and unpaired elements of next are
// appended in order. Undecodable elements keep their position.
func (r *Records[T]) Reconcile(next []T, id func(*T) string) {
	pending := make(map[string][]int, len(next))
	for i := range next {
		k := id(&next[i])
		pending[k] = append(pending[k], i)
	}
	used := make([]bool, len(next))

	out := make([]entry[T], 0, len(r.entries)+len(next))
	for _, e := range r.entries {
		if !e.decoded {
			out = append(out, e)
			continue
		}
		k := id(&e.item)
		queue := pending[k]
		if len(queue) == 0 {
			continue
		}
		i := queue[0]
		pending[k] = queue[1:]
		used[i] = true
		e.item = next[i]
		out = append(out, e)
	}
	for i := range next {
		if !used[i] {
			out = append(out, entry[T]{item: next[i], decoded: true})
		}
	}
	r.entries = out
}

func (r *Records[T]) position(i int) int {
	seen := 0
	for pos, e := range r.entries {
		if !e.decoded {
			continue
		}
		if seen == i {
			return pos
		}
		seen++
	}
	return -1
}

// Save writes the records back to their key. Unchanged and undecodable
// elements are written byte for byte; a changed element is patched over its
// stored object so fields unknown to T survive.
func Save[T any](ctx context.Context, s *Store, r *Records[T]) error {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, e := range r.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		elem, err := e.marshal()
		if err != nil {
			return fmt.Errorf("encode %s: %w", r.key, err)
		}
		buf.Write(elem)
	}
	buf.WriteByte(']')
	return s.save(ctx, r.key, buf.Bytes())
}

func (e entry[T]) marshal() ([]byte, error) {
	if !e.decoded {
		return e.raw, nil
	}
	next, err := encode(e.item)
	if err != nil {
		return nil, err
	}
	if e.raw == nil {
		return next, nil
	}
	if bytes.Equal(next, e.base) {
		return e.raw, nil
	}
	return patchObject(e.raw, e.base, next)
}

// patchObject applies the field-level difference between base and next to
// the stored object raw. Fields of raw that T does not know are kept, and
// fields whose value did not change keep their stored form, including
// being absent.
func patchObject(raw, base, next []byte) ([]byte, error) {
	var doc, before, after map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(base, &before); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(next, &after); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = make(map[string]json.RawMessage, len(after))
	}
	for k := range before {
		if _, ok := after[k]; !ok {
			delete(doc, k)
		}
	}
	for k, v := range after {
		if prev, ok := before[k]; ok && bytes.Equal(prev, v) {
			continue
		}
		doc[k] = v
	}
	return encode(doc)
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
