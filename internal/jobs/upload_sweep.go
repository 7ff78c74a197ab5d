// Package jobs defines River Queue job types for background maintenance.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"autohaus.io/cms/internal/pkg/logger"
)

// DefaultPendingUploadTTL is how long an unclaimed upload is kept.
const DefaultPendingUploadTTL = 24 * time.Hour

// UploadSweeper removes pending uploads created before cutoff.
type UploadSweeper interface {
	SweepPendingUploads(ctx context.Context, cutoff time.Time) (int, error)
}

// PendingUploadSweepArgs is a periodic maintenance job that deletes uploads
// no write ever claimed.
type PendingUploadSweepArgs struct{}

// Kind returns the job kind identifier.
func (PendingUploadSweepArgs) Kind() string { return "pending_upload_sweep" }

// InsertOpts keeps at most one sweep per hour in the queue.
func (PendingUploadSweepArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       river.QueueDefault,
		MaxAttempts: 1,
		UniqueOpts: river.UniqueOpts{
			ByPeriod: time.Hour,
			ByQueue:  true,
			ByArgs:   true,
		},
	}
}

// PendingUploadSweepWorker runs the sweep.
type PendingUploadSweepWorker struct {
	river.WorkerDefaults[PendingUploadSweepArgs]
	sweeper UploadSweeper
	ttl     time.Duration
	now     func() time.Time
}

// NewPendingUploadSweepWorker creates a sweep worker. Non-positive ttl falls
// back to DefaultPendingUploadTTL.
func NewPendingUploadSweepWorker(sweeper UploadSweeper, ttl time.Duration) *PendingUploadSweepWorker {
	if ttl <= 0 {
		ttl = DefaultPendingUploadTTL
	}
	return &PendingUploadSweepWorker{
		sweeper: sweeper,
		ttl:     ttl,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Work deletes expired pending uploads.
func (w *PendingUploadSweepWorker) Work(ctx context.Context, _ *river.Job[PendingUploadSweepArgs]) error {
	if w == nil || w.sweeper == nil {
		return fmt.Errorf("pending upload sweep worker is not initialized")
	}
	return w.Sweep(ctx)
}

// Sweep runs one sweep outside River; the embedded-store runtime schedules it
// on the worker pool.
func (w *PendingUploadSweepWorker) Sweep(ctx context.Context) error {
	cutoff := w.now().Add(-w.ttl)
	n, err := w.sweeper.SweepPendingUploads(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("sweep pending uploads before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	logger.Info("pending upload sweep completed",
		zap.Int("deleted_rows", n),
		zap.String("cutoff", cutoff.Format(time.RFC3339)),
		zap.Duration("ttl", w.ttl),
	)
	return nil
}

// PeriodicPendingUploadSweep schedules the sweep every interval, starting
// with one run at client start.
func PeriodicPendingUploadSweep(interval time.Duration) *river.PeriodicJob {
	return river.NewPeriodicJob(
		river.PeriodicInterval(interval),
		func() (river.JobArgs, *river.InsertOpts) {
			return PendingUploadSweepArgs{}, nil
		},
		&river.PeriodicJobOpts{RunOnStart: true},
	)
}
