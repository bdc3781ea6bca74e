package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/dept-portal-api/internal/kv"
	"github.com/noah-isme/dept-portal-api/internal/models"
	appErrors "github.com/noah-isme/dept-portal-api/pkg/errors"
)

// BootstrapState tracks store initialization progress.
type BootstrapState string

const (
	StateUninitialized BootstrapState = "UNINITIALIZED"
	StateKeysSeeded    BootstrapState = "KEYS_SEEDED"
	StateMigrated      BootstrapState = "MIGRATED"
	StateReady         BootstrapState = "READY"
)

type migrationRecorder interface {
	MigrationApplied(version int, name string)
}

// Bootstrapper seeds storage keys and applies pending migrations once per process.
type Bootstrapper struct {
	store      *kv.Store
	keys       []string
	migrations []Migration
	logger     *zap.Logger
	metrics    migrationRecorder
	now        func() time.Time

	run     sync.Mutex
	stateMu sync.RWMutex
	state   BootstrapState
}

// NewBootstrapper constructs a Bootstrapper over the given keys and migrations.
func NewBootstrapper(store *kv.Store, keys []string, migrations []Migration, logger *zap.Logger, metrics migrationRecorder) *Bootstrapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	ordered := append([]Migration(nil), migrations...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Version < ordered[j].Version })
	return &Bootstrapper{
		store:      store,
		keys:       keys,
		migrations: ordered,
		logger:     logger,
		metrics:    metrics,
		now:        time.Now,
		state:      StateUninitialized,
	}
}

// State returns the current initialization state.
func (b *Bootstrapper) State() BootstrapState {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.state
}

// Ready reports whether Initialize has completed.
func (b *Bootstrapper) Ready() bool { return b.State() == StateReady }

func (b *Bootstrapper) setState(s BootstrapState) {
	b.stateMu.Lock()
	b.state = s
	b.stateMu.Unlock()
	b.logger.Debug("store bootstrap state", zap.String("state", string(s)))
}

// Initialize seeds missing keys with empty arrays and runs migrations absent
// from the ledger. Concurrent callers wait for the first; later calls are no-ops.
func (b *Bootstrapper) Initialize(ctx context.Context) error {
	b.run.Lock()
	defer b.run.Unlock()
	if b.Ready() {
		return nil
	}

	if err := b.seed(ctx); err != nil {
		return err
	}
	b.setState(StateKeysSeeded)

	if err := b.migrate(ctx); err != nil {
		return err
	}
	b.setState(StateMigrated)

	b.setState(StateReady)
	b.logger.Info("entity store ready", zap.String("backend", b.store.Backend().Name()))
	return nil
}

// Applied returns the migration ledger.
func (b *Bootstrapper) Applied(ctx context.Context) ([]models.MigrationRecord, error) {
	records, err := kv.Read[models.MigrationRecord](ctx, b.store, models.KeySchemaMigrations)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to read migration ledger")
	}
	return records, nil
}

func (b *Bootstrapper) seed(ctx context.Context) error {
	seeded := 0
	for _, key := range b.keys {
		created, err := b.seedKey(ctx, key)
		if err != nil {
			return err
		}
		if created {
			seeded++
		}
	}
	if seeded > 0 {
		b.logger.Info("seeded storage keys", zap.Int("keys", seeded))
	}
	return nil
}

func (b *Bootstrapper) seedKey(ctx context.Context, key string) (bool, error) {
	unlock := b.store.Lock(key)
	defer unlock()

	exists, err := b.store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("seed %s: %w", key, err)
	}
	if exists {
		return false, nil
	}
	if err := b.store.WriteRaw(ctx, key, nil); err != nil {
		return false, fmt.Errorf("seed %s: %w", key, err)
	}
	return true, nil
}

func (b *Bootstrapper) migrate(ctx context.Context) error {
	ledger, err := kv.Read[models.MigrationRecord](ctx, b.store, models.KeySchemaMigrations)
	if err != nil {
		return fmt.Errorf("read migration ledger: %w", err)
	}
	applied := make(map[int]struct{}, len(ledger))
	for _, rec := range ledger {
		applied[rec.Version] = struct{}{}
	}

	for _, m := range b.migrations {
		if _, done := applied[m.Version]; done {
			continue
		}
		log := b.logger.With(zap.Int("version", m.Version), zap.String("migration", m.Name))
		if err := m.Up(ctx, b.store, log); err != nil {
			return fmt.Errorf("migration %d %s: %w", m.Version, m.Name, err)
		}
		ledger = append(ledger, models.MigrationRecord{Version: m.Version, Name: m.Name, AppliedAt: b.now().UTC()})
		if err := b.writeLedger(ctx, ledger); err != nil {
			return err
		}
		applied[m.Version] = struct{}{}
		if b.metrics != nil {
			b.metrics.MigrationApplied(m.Version, m.Name)
		}
		log.Info("migration applied")
	}
	return nil
}

func (b *Bootstrapper) writeLedger(ctx context.Context, ledger []models.MigrationRecord) error {
	unlock := b.store.Lock(models.KeySchemaMigrations)
	defer unlock()
	if err := kv.Write(ctx, b.store, models.KeySchemaMigrations, ledger); err != nil {
		return fmt.Errorf("write migration ledger: %w", err)
	}
	return nil
}
