package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/diploma-checker-api/pkg/jobs"
)

const jobRemoveWorkspace = "remove_workspace"

type uploadStore interface {
	CleanupOlderThan(ttl time.Duration) ([]string, error)
	Remove(dir string) error
}

// UploadJanitor reclaims upload workspaces: it retries failed per-request cleanups
// and sweeps directories left behind by crashed processes.
type UploadJanitor struct {
	storage  uploadStore
	interval time.Duration
	ttl      time.Duration
	logger   *zap.Logger
	queue    *jobs.Queue
}

// NewUploadJanitor constructs a janitor. A non-positive interval disables the periodic sweep.
func NewUploadJanitor(storage uploadStore, interval, ttl time.Duration, logger *zap.Logger) *UploadJanitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	j := &UploadJanitor{storage: storage, interval: interval, ttl: ttl, logger: logger}
	j.queue = jobs.NewQueue("upload-reclaim", j.handle, jobs.QueueConfig{
		Workers:    1,
		BufferSize: 64,
		MaxRetries: 3,
		RetryDelay: 2 * time.Second,
		Logger:     logger,
	})
	return j
}

// Start runs the reclaim queue and, when enabled, the periodic sweep until ctx is cancelled.
func (j *UploadJanitor) Start(ctx context.Context) {
	j.queue.Start(ctx)
	if j.interval <= 0 {
		return
	}
	ticker := time.NewTicker(j.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				j.Sweep()
			}
		}
	}()
}

// Stop drains the reclaim workers.
func (j *UploadJanitor) Stop() {
	j.queue.Stop()
}

// Reclaim schedules removal of a workspace whose inline cleanup failed.
func (j *UploadJanitor) Reclaim(id, dir string) {
	if err := j.queue.Enqueue(jobs.Job{ID: id, Type: jobRemoveWorkspace, Payload: dir}); err != nil {
		j.logger.Warn("workspace left for the periodic sweep", zap.String("workspace_id", id), zap.Error(err))
	}
}

// Sweep removes stale workspaces once and returns how many were deleted.
func (j *UploadJanitor) Sweep() int {
	deleted, err := j.storage.CleanupOlderThan(j.ttl)
	if err != nil {
		j.logger.Warn("upload sweep failed", zap.Error(err))
	}
	if len(deleted) > 0 {
		j.logger.Info("removed stale upload workspaces", zap.Int("count", len(deleted)))
	}
	return len(deleted)
}

func (j *UploadJanitor) handle(ctx context.Context, job jobs.Job) error {
	dir, _ := job.Payload.(string)
	if dir == "" {
		return nil
	}
	if err := j.storage.Remove(dir); err != nil {
		return err
	}
	j.logger.Info("workspace reclaimed", zap.String("workspace_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}
