package kv

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sort"
)

// KeyDiff is the comparison of one key across two backends.
type KeyDiff struct {
	Key      string
	Critical bool
	InLeft   bool
	InRight  bool
	Match    bool
	Left     int
	Right    int
}

// Compare loads every key present in either backend, plus each critical key,
// and reports whether the documents are equal as JSON. Record counts are
// reported for array documents.
func Compare(ctx context.Context, left, right Backend, critical []string) ([]KeyDiff, error) {
	want := make(map[string]bool)
	for _, key := range critical {
		want[key] = true
	}
	keys := make(map[string]struct{})
	for _, b := range []Backend{left, right} {
		list, err := b.Keys(ctx)
		if err != nil {
			return nil, err
		}
		for _, key := range list {
			keys[key] = struct{}{}
		}
	}
	for key := range want {
		keys[key] = struct{}{}
	}

	ordered := make([]string, 0, len(keys))
	for key := range keys {
		ordered = append(ordered, key)
	}
	sort.Strings(ordered)

	diffs := make([]KeyDiff, 0, len(ordered))
	for _, key := range ordered {
		a, inLeft, err := loadOptional(ctx, left, key)
		if err != nil {
			return nil, err
		}
		b, inRight, err := loadOptional(ctx, right, key)
		if err != nil {
			return nil, err
		}
		diffs = append(diffs, KeyDiff{
			Key:      key,
			Critical: want[key],
			InLeft:   inLeft,
			InRight:  inRight,
			Match:    inLeft == inRight && documentsEqual(a, b),
			Left:     count(a),
			Right:    count(b),
		})
	}
	return diffs, nil
}

func loadOptional(ctx context.Context, b Backend, key string) ([]byte, bool, error) {
	raw, err := b.Load(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	return raw, err == nil, err
}

func documentsEqual(a, b []byte) bool {
	if bytes.Equal(bytes.TrimSpace(a), bytes.TrimSpace(b)) {
		return true
	}
	var av, bv any
	if json.Unmarshal(a, &av) != nil || json.Unmarshal(b, &bv) != nil {
		return false
	}
	return reflect.DeepEqual(av, bv)
}

func count(raw []byte) int {
	var items []json.RawMessage
	if json.Unmarshal(raw, &items) != nil {
		return 0
	}
	return len(items)
}
