package service

import (
	"context"
	_ "embed"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/dept-portal-api/internal/kv"
	"github.com/noah-isme/dept-portal-api/internal/models"
)

//go:embed fixtures/fingerprints.yaml
var fingerprintDocument []byte

// Migration is one ordered, versioned change to stored data.
type Migration struct {
	Version int
	Name    string
	Up      func(ctx context.Context, store *kv.Store, logger *zap.Logger) error
}

// Fingerprint identifies a demo dataset by exact size and one sample value.
type Fingerprint struct {
	Key   string `yaml:"key"`
	Count int    `yaml:"count"`
	Field string `yaml:"field"`
	Value string `yaml:"value"`
}

// Matches reports whether items is exactly the fingerprinted dataset.
func (f Fingerprint) Matches(items []map[string]any) bool {
	if len(items) != f.Count {
		return false
	}
	for _, item := range items {
		if v, ok := item[f.Field].(string); ok && v == f.Value {
			return true
		}
	}
	return false
}

// LoadFingerprints parses a fingerprint document.
func LoadFingerprints(doc []byte) ([]Fingerprint, error) {
	var parsed struct {
		Fixtures []Fingerprint `yaml:"fixtures"`
	}
	if err := yaml.Unmarshal(doc, &parsed); err != nil {
		return nil, fmt.Errorf("parse fingerprints: %w", err)
	}
	for i, f := range parsed.Fixtures {
		if f.Key == "" || f.Field == "" || f.Count <= 0 {
			return nil, fmt.Errorf("fingerprint %d is incomplete", i)
		}
	}
	return parsed.Fixtures, nil
}

// DefaultMigrations returns the built-in migration chain.
func DefaultMigrations() ([]Migration, error) {
	fps, err := LoadFingerprints(fingerprintDocument)
	if err != nil {
		return nil, err
	}
	return []Migration{
		{Version: 1, Name: "purge-demo-fixtures", Up: PurgeFixtures(fps)},
		{Version: 2, Name: "canonical-batch-label", Up: CanonicalBatchLabel},
	}, nil
}

// PurgeFixtures empties every key whose content matches its fingerprint.
func PurgeFixtures(fps []Fingerprint) func(context.Context, *kv.Store, *zap.Logger) error {
	return func(ctx context.Context, store *kv.Store, logger *zap.Logger) error {
		for _, fp := range fps {
			if err := purgeOne(ctx, store, logger, fp); err != nil {
				return err
			}
		}
		return nil
	}
}

func purgeOne(ctx context.Context, store *kv.Store, logger *zap.Logger, fp Fingerprint) error {
	unlock := store.Lock(fp.Key)
	defer unlock()

	items, err := store.ReadRaw(ctx, fp.Key)
	if err != nil {
		return fmt.Errorf("read %s: %w", fp.Key, err)
	}
	if !fp.Matches(items) {
		return nil
	}
	if err := store.WriteRaw(ctx, fp.Key, nil); err != nil {
		return fmt.Errorf("purge %s: %w", fp.Key, err)
	}
	logger.Warn("purged demo dataset", zap.String("key", fp.Key), zap.Int("records", len(items)))
	return nil
}

// CanonicalBatchLabel copies the legacy batch name into an empty label and
// drops the legacy field, leaving label as the only batch identifier.
func CanonicalBatchLabel(ctx context.Context, store *kv.Store, logger *zap.Logger) error {
	unlock := store.Lock(models.KeyBatches)
	defer unlock()

	batches, err := store.ReadRaw(ctx, models.KeyBatches)
	if err != nil {
		return fmt.Errorf("read batches: %w", err)
	}
	changed := 0
	for _, b := range batches {
		name, hasName := b["name"]
		if !hasName {
			continue
		}
		label, _ := b["label"].(string)
		if legacy, ok := name.(string); ok && label == "" && legacy != "" {
			b["label"] = legacy
		}
		delete(b, "name")
		changed++
	}
	if changed == 0 {
		return nil
	}
	if err := store.WriteRaw(ctx, models.KeyBatches, batches); err != nil {
		return fmt.Errorf("write batches: %w", err)
	}
	logger.Info("canonicalised batch labels", zap.Int("batches", changed))
	return nil
}
