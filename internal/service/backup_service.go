package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/dept-portal-api/pkg/blob"
	appErrors "github.com/noah-isme/dept-portal-api/pkg/errors"
	"github.com/noah-isme/dept-portal-api/pkg/jobs"
)

const (
	backupPrefix  = "backups/"
	backupJobKind = "store_backup"
)

type snapshotSource interface {
	Keys(ctx context.Context) ([]string, error)
	ReadBytes(ctx context.Context, key string) (json.RawMessage, error)
}

type backupRecorder interface {
	BackupFinished(outcome string)
}

// Snapshot is the persisted backup document.
type Snapshot struct {
	TakenAt time.Time                  `json:"takenAt"`
	Keys    map[string]json.RawMessage `json:"keys"`
}

// BackupTicket acknowledges an accepted backup request.
type BackupTicket struct {
	JobID       string    `json:"jobId"`
	RequestedBy string    `json:"requestedBy"`
	RequestedAt time.Time `json:"requestedAt"`
}

// BackupConfig tunes the backup worker pool.
type BackupConfig struct {
	Workers    int
	Retries    int
	RetryDelay time.Duration
	LinkTTL    time.Duration
}

// BackupService writes full-store JSON snapshots to a blob store from a
// background queue.
type BackupService struct {
	source  snapshotSource
	blobs   blob.Store
	queue   *jobs.Queue
	cfg     BackupConfig
	logger  *zap.Logger
	metrics backupRecorder
	now     func() time.Time
	newID   func() string
}

// NewBackupService constructs a BackupService. A nil blob store disables
// backups.
func NewBackupService(source snapshotSource, blobs blob.Store, cfg BackupConfig, logger *zap.Logger, metrics backupRecorder) *BackupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LinkTTL <= 0 {
		cfg.LinkTTL = 15 * time.Minute
	}
	s := &BackupService{
		source:  source,
		blobs:   blobs,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	s.queue = jobs.NewQueue("backups", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.Retries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
		OnGiveUp: func(job jobs.Job, err error) {
			s.record("failed")
		},
	})
	return s
}

// Enabled reports whether a blob store is configured.
func (s *BackupService) Enabled() bool { return s.blobs != nil }

// Start launches the worker pool.
func (s *BackupService) Start(ctx context.Context) {
	if s.Enabled() {
		s.queue.Start(ctx)
	}
}

// Stop drains nothing and waits for workers to exit.
func (s *BackupService) Stop() { s.queue.Stop() }

// Pending reports accepted backups that have not finished.
func (s *BackupService) Pending() int64 { return s.queue.Pending() }

// Request enqueues a snapshot and returns immediately.
func (s *BackupService) Request(_ context.Context, actor string) (BackupTicket, error) {
	if !s.Enabled() {
		return BackupTicket{}, appErrors.Clone(appErrors.ErrUnavailable, "backups are disabled")
	}
	ticket := BackupTicket{JobID: s.newID(), RequestedBy: actor, RequestedAt: s.now().UTC()}
	job := jobs.Job{ID: ticket.JobID, Kind: backupJobKind, Payload: ticket, Enqueued: ticket.RequestedAt}
	if err := s.queue.Enqueue(job); err != nil {
		if errors.Is(err, jobs.ErrNotStarted) {
			return BackupTicket{}, appErrors.Clone(appErrors.ErrUnavailable, "backup queue is not running")
		}
		return BackupTicket{}, appErrors.Internal(err, "failed to enqueue backup")
	}
	s.logger.Info("backup requested", zap.String("job_id", ticket.JobID), zap.String("actor", actor))
	return ticket, nil
}

// Snapshot reads every stored key and writes one backup document.
func (s *BackupService) Snapshot(ctx context.Context, id string) (blob.Info, error) {
	if !s.Enabled() {
		return blob.Info{}, appErrors.Clone(appErrors.ErrUnavailable, "backups are disabled")
	}
	keys, err := s.source.Keys(ctx)
	if err != nil {
		return blob.Info{}, fmt.Errorf("list keys: %w", err)
	}
	snap := Snapshot{TakenAt: s.now().UTC(), Keys: make(map[string]json.RawMessage, len(keys))}
	for _, key := range keys {
		raw, err := s.source.ReadBytes(ctx, key)
		if err != nil {
			return blob.Info{}, fmt.Errorf("read %s: %w", key, err)
		}
		snap.Keys[key] = raw
	}
	body, err := json.Marshal(snap)
	if err != nil {
		return blob.Info{}, fmt.Errorf("encode snapshot: %w", err)
	}
	key := fmt.Sprintf("%s%s-%s.json", backupPrefix, snap.TakenAt.Format("20060102T150405Z"), id)
	info, err := s.blobs.Put(ctx, key, body, "application/json")
	if err != nil {
		return blob.Info{}, fmt.Errorf("store snapshot: %w", err)
	}
	return info, nil
}

// List returns stored snapshots, newest first, with download links.
func (s *BackupService) List(ctx context.Context) ([]blob.Info, error) {
	if !s.Enabled() {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "backups are disabled")
	}
	items, err := s.blobs.List(ctx, backupPrefix)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list backups")
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Key > items[j].Key })
	for i := range items {
		link, err := s.blobs.URL(ctx, items[i].Key, s.cfg.LinkTTL)
		if err != nil {
			s.logger.Warn("failed to sign backup link", zap.String("key", items[i].Key), zap.Error(err))
			continue
		}
		items[i].URL = link
	}
	return items, nil
}

// Open streams one stored snapshot.
func (s *BackupService) Open(ctx context.Context, key string) (blob.Info, io.ReadCloser, error) {
	if !s.Enabled() {
		return blob.Info{}, nil, appErrors.Clone(appErrors.ErrUnavailable, "backups are disabled")
	}
	if !strings.HasPrefix(key, backupPrefix) {
		return blob.Info{}, nil, appErrors.Clone(appErrors.ErrNotFound, "backup not found")
	}
	info, body, err := s.blobs.Get(ctx, key)
	switch {
	case errors.Is(err, blob.ErrNotFound), errors.Is(err, blob.ErrInvalidKey):
		return blob.Info{}, nil, appErrors.Clone(appErrors.ErrNotFound, "backup not found")
	case err != nil:
		return blob.Info{}, nil, appErrors.Internal(err, "failed to open backup")
	}
	return info, body, nil
}

func (s *BackupService) handle(ctx context.Context, job jobs.Job) error {
	info, err := s.Snapshot(ctx, job.ID)
	if err != nil {
		return err
	}
	s.record("succeeded")
	s.logger.Info("backup written", zap.String("job_id", job.ID), zap.String("key", info.Key), zap.Int64("size", info.Size))
	return nil
}

func (s *BackupService) record(outcome string) {
	if s.metrics != nil {
		s.metrics.BackupFinished(outcome)
	}
}
